package radixsort

import "github.com/ChristianF88/radixcl/compute"

// ScanPath records which steps of the prefix scan ran.
type ScanPath uint8

const (
	// SingleBlock: one block, the digit scan of its histogram is final.
	SingleBlock ScanPath = iota
	// SingleTile: all blocks fit one scan tile, no carry between tiles.
	SingleTile
	// MultiTile runs every step.
	MultiTile
)

func (s ScanPath) String() string {
	switch s {
	case SingleBlock:
		return "single-block"
	case SingleTile:
		return "single-tile"
	default:
		return "multi-tile"
	}
}

// Steps lists the kernels the path launches, in order.
func (s ScanPath) Steps() []string {
	switch s {
	case SingleBlock:
		return []string{kernelUnifiedScan}
	case SingleTile:
		return []string{kernelBlockScan, kernelUnifiedScan, kernelMerge}
	default:
		return []string{kernelBlockScan, kernelPrefixSum, kernelBlockAdd, kernelUnifiedScan, kernelMerge}
	}
}

// Path reports the scan path for this pipeline's block layout.
func (p *Pipeline) Path() ScanPath {
	switch {
	case p.numBlocks == 1:
		return SingleBlock
	case p.tiles == 1:
		return SingleTile
	default:
		return MultiTile
	}
}

// Scan turns the histogram into global write offsets in the scanned buffer:
// scanned[b*R+d] is the slot of the first key with digit d from block b.
//
// Block scan: every digit column is scanned across blocks, one tile of
// GroupSize blocks per work-group, and each tile total is kept in sums.
// Cross-block: tile totals are scanned per digit and added back to the
// blocks of later tiles; the per-digit grand totals are then scanned across
// digits into digitBase. Merge: digitBase is added to every entry.
func (p *Pipeline) Scan() ([]compute.Event, error) {
	radix := p.params.Radix()
	g := p.params.GroupSize
	dg := p.digitGroup()
	path := p.Path()

	if path == SingleBlock {
		ev, err := p.launch(kernelUnifiedScan, compute.Range1D(radix, radix),
			p.hist, p.scanned, compute.Local(2*radix))
		if err != nil {
			return nil, err
		}
		return []compute.Event{ev}, nil
	}

	var events []compute.Event
	ev, err := p.launch(kernelBlockScan, compute.Range2D(p.tiles*g, radix, g, 1),
		p.hist, p.scanned, p.sums, p.numBlocks, radix, compute.Local(2*g))
	if err != nil {
		return events, err
	}
	events = append(events, ev)

	totals := p.sums
	if path == MultiTile {
		ev, err = p.launch(kernelPrefixSum, compute.Range1D(radix, dg),
			p.sums, p.summary, p.tiles, radix)
		if err != nil {
			return events, err
		}
		events = append(events, ev)

		ev, err = p.launch(kernelBlockAdd, compute.Range2D(p.numBlocks, radix, 1, dg),
			p.sums, p.scanned, g, radix)
		if err != nil {
			return events, err
		}
		events = append(events, ev)
		totals = p.summary
	}

	ev, err = p.launch(kernelUnifiedScan, compute.Range1D(radix, radix),
		totals, p.digitBase, compute.Local(2*radix))
	if err != nil {
		return events, err
	}
	events = append(events, ev)

	ev, err = p.launch(kernelMerge, compute.Range2D(p.numBlocks, radix, 1, dg),
		p.digitBase, p.scanned, radix)
	if err != nil {
		return events, err
	}
	return append(events, ev), nil
}
