package radixsort

import (
	"errors"

	"github.com/ChristianF88/radixcl/compute"
)

// DoubleBuffer holds the two key buffers of the pass loop. Current is the
// input of the running pass and Next receives its scatter output.
type DoubleBuffer struct {
	bufs    [2]compute.Buffer
	current int
}

// NewDoubleBuffer allocates two key buffers of n words, the first initialised from keys.
func NewDoubleBuffer(ctx compute.Context, n int, keys []uint32) (*DoubleBuffer, error) {
	a, err := ctx.NewBuffer(compute.ReadWrite, n, keys)
	if err != nil {
		return nil, err
	}
	b, err := ctx.NewBuffer(compute.ReadWrite, n, nil)
	if err != nil {
		a.Release()
		return nil, err
	}
	return &DoubleBuffer{bufs: [2]compute.Buffer{a, b}}, nil
}

func (d *DoubleBuffer) Current() compute.Buffer { return d.bufs[d.current] }
func (d *DoubleBuffer) Next() compute.Buffer    { return d.bufs[1-d.current] }

// Index reports which physical buffer is current.
func (d *DoubleBuffer) Index() int { return d.current }

// Swap makes Next the new Current.
func (d *DoubleBuffer) Swap() { d.current = 1 - d.current }

// Release frees both buffers.
func (d *DoubleBuffer) Release() error {
	return errors.Join(d.bufs[0].Release(), d.bufs[1].Release())
}
