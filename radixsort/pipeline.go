package radixsort

import (
	"errors"
	"fmt"
	"math"

	"github.com/ChristianF88/radixcl/compute"
)

// Pipeline owns every device object used by one sort: the queue, the kernel
// program, the key double buffer and the histogram and scan buffers. Buffers
// are sized once for n keys and reused by every pass.
type Pipeline struct {
	ctx    compute.Context
	params Params

	n         int
	numBlocks int
	tiles     int

	queue   compute.Queue
	program compute.Program
	kernels map[string]compute.Kernel

	keys      *DoubleBuffer
	hist      compute.Buffer
	scanned   compute.Buffer
	sums      compute.Buffer
	summary   compute.Buffer
	digitBase compute.Buffer
}

// NewPipeline checks params against the device, builds the kernel program and
// uploads keys. On error everything allocated so far is released.
func NewPipeline(ctx compute.Context, keys []uint32, params Params) (p *Pipeline, err error) {
	params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n := len(keys)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty key set", ErrInvalidParams)
	}
	if uint64(n) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d", ErrTooManyKeys, n)
	}
	if err := checkDevice(ctx.Device(), params); err != nil {
		return nil, err
	}

	p = &Pipeline{
		ctx:     ctx,
		params:  params,
		n:       n,
		kernels: make(map[string]compute.Kernel),
	}
	p.numBlocks = (n + params.BlockSize - 1) / params.BlockSize
	p.tiles = (p.numBlocks + params.GroupSize - 1) / params.GroupSize

	defer func() {
		if err != nil {
			p.Release()
			p = nil
		}
	}()

	if p.queue, err = ctx.NewQueue(true); err != nil {
		return p, fmt.Errorf("creating queue: %w", err)
	}
	if p.program, err = ctx.BuildProgram(Library()); err != nil {
		return p, fmt.Errorf("building kernels: %w", err)
	}
	for _, name := range []string{kernelHistogram, kernelBlockScan, kernelPrefixSum, kernelBlockAdd, kernelUnifiedScan, kernelMerge, kernelPermute} {
		k, kerr := p.program.Kernel(name)
		if kerr != nil {
			return p, fmt.Errorf("creating kernel: %w", kerr)
		}
		p.kernels[name] = k
	}

	if p.keys, err = NewDoubleBuffer(ctx, n, keys); err != nil {
		return p, fmt.Errorf("allocating key buffers: %w", err)
	}
	radix := params.Radix()
	allocs := []struct {
		dst   *compute.Buffer
		words int
		name  string
	}{
		{&p.hist, p.numBlocks * radix, "histogram"},
		{&p.scanned, p.numBlocks * radix, "scanned histogram"},
		{&p.sums, p.tiles * radix, "block sums"},
		{&p.summary, radix, "summary"},
		{&p.digitBase, radix, "digit base"},
	}
	for _, a := range allocs {
		if *a.dst, err = ctx.NewBuffer(compute.ReadWrite, a.words, nil); err != nil {
			return p, fmt.Errorf("allocating %s buffer: %w", a.name, err)
		}
	}
	return p, nil
}

// checkDevice rejects parameter sets whose work-groups or local memory do
// not fit the device.
func checkDevice(dev compute.DeviceInfo, params Params) error {
	radix := params.Radix()
	needs := []struct {
		what  string
		value int
		limit int
	}{
		{"work-group size", params.GroupSize, dev.MaxWorkGroupSize},
		{"digit scan group size", radix, dev.MaxWorkGroupSize},
		{"permute local memory", params.GroupSize * radix, dev.LocalMemWords},
		{"block scan local memory", 2 * params.GroupSize, dev.LocalMemWords},
		{"digit scan local memory", 2 * radix, dev.LocalMemWords},
	}
	for _, need := range needs {
		if need.value > need.limit {
			return fmt.Errorf("%w: %s %d exceeds %s limit %d", ErrInvalidParams, need.what, need.value, dev.Name, need.limit)
		}
	}
	return nil
}

// Len is the number of keys.
func (p *Pipeline) Len() int { return p.n }

// NumBlocks is the number of key blocks per pass.
func (p *Pipeline) NumBlocks() int { return p.numBlocks }

// Tiles is the number of block-scan tiles.
func (p *Pipeline) Tiles() int { return p.tiles }

// Params returns the normalized parameters.
func (p *Pipeline) Params() Params { return p.params }

// Keys exposes the key double buffer.
func (p *Pipeline) Keys() *DoubleBuffer { return p.keys }

func (p *Pipeline) digitGroup() int { return min(p.params.Radix(), p.params.GroupSize) }

func (p *Pipeline) descending() uint32 {
	if p.params.Order == Descending {
		return 1
	}
	return 0
}

// setArgs binds args to the kernel in order.
func (p *Pipeline) setArgs(name string, args ...any) (compute.Kernel, error) {
	k := p.kernels[name]
	for i, a := range args {
		if err := k.SetArg(i, a); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// launch binds args and enqueues the kernel.
func (p *Pipeline) launch(name string, r compute.NDRange, args ...any) (compute.Event, error) {
	k, err := p.setArgs(name, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	ev, err := p.queue.Launch(k, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return ev, nil
}

// Advance turns the output of the finished pass into the input of the next.
// The returned event is nil for a swap.
func (p *Pipeline) Advance() (compute.Event, error) {
	if p.params.Transition == CopyBack {
		return p.queue.CopyBuffer(p.keys.Next(), p.keys.Current(), p.n)
	}
	p.keys.Swap()
	return nil, nil
}

// ReadKeys copies the current key buffer to the host.
func (p *Pipeline) ReadKeys() ([]uint32, error) {
	return p.read(p.keys.Current(), p.n)
}

// ReadHistogram copies the histogram buffer, block-major, to the host.
func (p *Pipeline) ReadHistogram() ([]uint32, error) {
	return p.read(p.hist, p.numBlocks*p.params.Radix())
}

// ReadScanned copies the scanned histogram, block-major, to the host.
func (p *Pipeline) ReadScanned() ([]uint32, error) {
	return p.read(p.scanned, p.numBlocks*p.params.Radix())
}

func (p *Pipeline) read(b compute.Buffer, words int) ([]uint32, error) {
	out := make([]uint32, words)
	ev, err := p.queue.ReadBuffer(b, out)
	if err != nil {
		return nil, err
	}
	if err := ev.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Release frees every device object. It is safe on a partially built pipeline.
func (p *Pipeline) Release() error {
	var errs []error
	release := func(r interface{ Release() error }) {
		if r != nil {
			errs = append(errs, r.Release())
		}
	}
	for _, b := range []compute.Buffer{p.digitBase, p.summary, p.sums, p.scanned, p.hist} {
		if b != nil {
			release(b)
		}
	}
	if p.keys != nil {
		release(p.keys)
	}
	for name, k := range p.kernels {
		release(k)
		delete(p.kernels, name)
	}
	if p.program != nil {
		release(p.program)
	}
	if p.queue != nil {
		release(p.queue)
	}
	return errors.Join(errs...)
}
