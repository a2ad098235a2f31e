package radixsort

import "github.com/ChristianF88/radixcl/compute"

// Permute scatters the current key buffer into the next one using the
// scanned histogram as base offsets. Every key lands in a distinct slot.
func (p *Pipeline) Permute(shift uint) (compute.Event, error) {
	g := p.params.GroupSize
	radix := p.params.Radix()
	return p.launch(kernelPermute, compute.Range1D(p.numBlocks*g, g),
		p.keys.Current(),
		p.scanned,
		p.keys.Next(),
		p.n,
		p.params.BlockSize,
		uint32(shift),
		radix,
		p.descending(),
		compute.Local(g*radix),
	)
}
