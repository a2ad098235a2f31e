package radixsort

import "github.com/ChristianF88/radixcl/compute"

// Histogram counts, for every block of the current key buffer, how many keys
// carry each digit value at shift. One work-group handles one block.
func (p *Pipeline) Histogram(shift uint) (compute.Event, error) {
	g := p.params.GroupSize
	radix := p.params.Radix()
	return p.launch(kernelHistogram, compute.Range1D(p.numBlocks*g, g),
		p.keys.Current(),
		p.hist,
		p.n,
		p.params.BlockSize,
		uint32(shift),
		radix,
		p.descending(),
		compute.Local(radix),
	)
}
