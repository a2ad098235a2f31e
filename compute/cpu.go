package compute

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alphadose/haxmap"
	"golang.org/x/sync/errgroup"
)

// CPUName is the registry name of the CPU back end.
const CPUName = "cpu"

func init() {
	Register(NewCPUBackend())
}

// DefaultCPUDevice describes the host as a compute device.
func DefaultCPUDevice() DeviceInfo {
	return DeviceInfo{
		Name:             "host",
		Vendor:           runtime.GOARCH,
		Type:             "CPU",
		ComputeUnits:     runtime.NumCPU(),
		MaxWorkGroupSize: 1024,
		LocalMemWords:    16384,
		MaxAllocWords:    math.MaxInt32,
	}
}

type cpuBackend struct {
	devices []DeviceInfo
}

// NewCPUBackend returns a back end that runs kernels on host goroutines.
// Without arguments it exposes DefaultCPUDevice.
func NewCPUBackend(devices ...DeviceInfo) Backend {
	if len(devices) == 0 {
		devices = []DeviceInfo{DefaultCPUDevice()}
	}
	return &cpuBackend{devices: devices}
}

func (b *cpuBackend) Name() string    { return CPUName }
func (b *cpuBackend) Available() bool { return true }

func (b *cpuBackend) Devices() ([]DeviceInfo, error) {
	out := make([]DeviceInfo, len(b.devices))
	copy(out, b.devices)
	return out, nil
}

func (b *cpuBackend) NewContext(device int) (Context, error) {
	if device < 0 || device >= len(b.devices) {
		return nil, fmt.Errorf("%w: cpu device %d of %d", ErrNoDevice, device, len(b.devices))
	}
	return &cpuContext{
		device: b.devices[device],
		live:   haxmap.New[uint64, string](64),
	}, nil
}

type cpuContext struct {
	device   DeviceInfo
	live     *haxmap.Map[uint64, string]
	nextID   atomic.Uint64
	released atomic.Bool
}

func (c *cpuContext) track(kind string) uint64 {
	id := c.nextID.Add(1)
	c.live.Set(id, kind)
	return id
}

func (c *cpuContext) untrack(id uint64) {
	c.live.Del(id)
}

func (c *cpuContext) Device() DeviceInfo { return c.device }

func (c *cpuContext) Live() int { return int(c.live.Len()) }

func (c *cpuContext) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	if c.live.Len() == 0 {
		return nil
	}
	var kinds []string
	c.live.ForEach(func(_ uint64, kind string) bool {
		kinds = append(kinds, kind)
		return true
	})
	sort.Strings(kinds)
	return fmt.Errorf("%w: %s", ErrLeaked, strings.Join(kinds, ", "))
}

func (c *cpuContext) NewBuffer(access Access, words int, host []uint32) (Buffer, error) {
	if c.released.Load() {
		return nil, ErrReleased
	}
	if words <= 0 {
		return nil, fmt.Errorf("%w: buffer of %d words", ErrInvalidSize, words)
	}
	if words > c.device.MaxAllocWords {
		return nil, fmt.Errorf("%w: buffer of %d words exceeds device limit %d", ErrOutOfResources, words, c.device.MaxAllocWords)
	}
	if host != nil && len(host) != words {
		return nil, fmt.Errorf("%w: host data has %d words, buffer %d", ErrInvalidSize, len(host), words)
	}
	data := make([]uint32, words)
	copy(data, host)
	b := &cpuBuffer{ctx: c, access: access, data: data}
	b.id = c.track(fmt.Sprintf("buffer(%d)", words))
	return b, nil
}

func (c *cpuContext) NewQueue(profiling bool) (Queue, error) {
	if c.released.Load() {
		return nil, ErrReleased
	}
	q := &cpuQueue{ctx: c, profiling: profiling}
	q.id = c.track("queue")
	return q, nil
}

func (c *cpuContext) BuildProgram(src Source) (Program, error) {
	if c.released.Load() {
		return nil, ErrReleased
	}
	var log strings.Builder
	if len(src.Host) == 0 {
		fmt.Fprintf(&log, "%s: no host kernels\n", src.Name)
	}
	names := make([]string, 0, len(src.Host))
	for name := range src.Host {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "" {
			fmt.Fprintf(&log, "%s: kernel with empty name\n", src.Name)
		}
		if src.Host[name] == nil {
			fmt.Fprintf(&log, "%s: kernel %q has no body\n", src.Name, name)
		}
	}
	if log.Len() > 0 {
		return nil, &BuildError{Program: src.Name, Log: log.String()}
	}
	p := &cpuProgram{ctx: c, name: src.Name, kernels: src.Host}
	p.log = fmt.Sprintf("%s: %d kernels built for %s\n", src.Name, len(names), c.device.Name)
	p.id = c.track("program " + src.Name)
	return p, nil
}

type cpuBuffer struct {
	ctx      *cpuContext
	id       uint64
	access   Access
	data     []uint32
	released atomic.Bool
}

func (b *cpuBuffer) Len() int       { return len(b.data) }
func (b *cpuBuffer) Access() Access { return b.access }

func (b *cpuBuffer) Release() error {
	if !b.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	b.ctx.untrack(b.id)
	return nil
}

type cpuProgram struct {
	ctx      *cpuContext
	id       uint64
	name     string
	log      string
	kernels  map[string]KernelFunc
	released atomic.Bool
}

func (p *cpuProgram) BuildLog() string { return p.log }

func (p *cpuProgram) Kernel(name string) (Kernel, error) {
	if p.released.Load() {
		return nil, ErrReleased
	}
	fn, ok := p.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in program %q", ErrUnknownKernel, name, p.name)
	}
	k := &cpuKernel{ctx: p.ctx, name: name, fn: fn}
	k.id = p.ctx.track("kernel " + name)
	return k, nil
}

func (p *cpuProgram) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	p.ctx.untrack(p.id)
	return nil
}

const maxKernelArgs = 32

type cpuKernel struct {
	ctx      *cpuContext
	id       uint64
	name     string
	fn       KernelFunc
	mu       sync.Mutex
	args     []any
	released atomic.Bool
}

func (k *cpuKernel) Name() string { return k.name }

func (k *cpuKernel) SetArg(index int, value any) error {
	if index < 0 || index >= maxKernelArgs {
		return fmt.Errorf("%w: %s index %d", ErrInvalidArg, k.name, index)
	}
	var arg any
	switch v := value.(type) {
	case *cpuBuffer:
		if v.ctx != k.ctx {
			return fmt.Errorf("%w: %s argument %d", ErrForeignObject, k.name, index)
		}
		arg = v
	case Buffer:
		return fmt.Errorf("%w: %s argument %d is a %T", ErrForeignObject, k.name, index, v)
	case uint32:
		arg = v
	case int:
		if v < 0 || uint64(v) > math.MaxUint32 {
			return fmt.Errorf("%w: %s argument %d value %d out of range", ErrInvalidArg, k.name, index, v)
		}
		arg = uint32(v)
	case Local:
		if v <= 0 {
			return fmt.Errorf("%w: %s argument %d local size %d", ErrInvalidArg, k.name, index, v)
		}
		arg = v
	default:
		return fmt.Errorf("%w: %s argument %d has unsupported type %T", ErrInvalidArg, k.name, index, value)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for len(k.args) <= index {
		k.args = append(k.args, nil)
	}
	k.args[index] = arg
	return nil
}

func (k *cpuKernel) Release() error {
	if !k.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	k.ctx.untrack(k.id)
	return nil
}

// snapshot copies the bound arguments so later SetArg calls do not affect
// an already enqueued launch.
func (k *cpuKernel) snapshot(localLimit int) ([]any, error) {
	k.mu.Lock()
	args := make([]any, len(k.args))
	copy(args, k.args)
	k.mu.Unlock()

	localWords := 0
	for i, a := range args {
		switch v := a.(type) {
		case nil:
			return nil, fmt.Errorf("%w: %s argument %d not set", ErrInvalidArg, k.name, i)
		case *cpuBuffer:
			if v.released.Load() {
				return nil, fmt.Errorf("%w: %s argument %d", ErrReleased, k.name, i)
			}
		case Local:
			localWords += int(v)
		}
	}
	if localWords > localLimit {
		return nil, fmt.Errorf("%w: %s needs %d local words, device has %d", ErrOutOfResources, k.name, localWords, localLimit)
	}
	return args, nil
}

type cpuQueue struct {
	ctx       *cpuContext
	id        uint64
	profiling bool

	mu       sync.Mutex
	tail     *cpuEvent
	released atomic.Bool
}

// enqueue chains run behind the current tail of the queue.
func (q *cpuQueue) enqueue(kind string, run func() error) (Event, error) {
	if q.released.Load() {
		return nil, ErrReleased
	}
	ev := newEvent(kind)

	q.mu.Lock()
	prev := q.tail
	q.tail = ev
	q.mu.Unlock()

	go func() {
		if prev != nil {
			if err := prev.Wait(); err != nil {
				ev.complete(fmt.Errorf("%w: %s after %s: %v", ErrDependency, kind, prev.kind, err), false)
				return
			}
		}
		ev.begin(q.profiling)
		ev.complete(run(), q.profiling)
	}()
	return ev, nil
}

func (q *cpuQueue) checkBuffer(b Buffer) (*cpuBuffer, error) {
	cb, ok := b.(*cpuBuffer)
	if !ok || cb.ctx != q.ctx {
		return nil, fmt.Errorf("%w: %T", ErrForeignObject, b)
	}
	if cb.released.Load() {
		return nil, ErrReleased
	}
	return cb, nil
}

func (q *cpuQueue) Launch(k Kernel, r NDRange) (Event, error) {
	ck, ok := k.(*cpuKernel)
	if !ok || ck.ctx != q.ctx {
		return nil, fmt.Errorf("%w: kernel %T", ErrForeignObject, k)
	}
	if ck.released.Load() {
		return nil, fmt.Errorf("%w: kernel %s", ErrReleased, ck.name)
	}
	if err := r.validate(q.ctx.device.MaxWorkGroupSize); err != nil {
		return nil, fmt.Errorf("%s: %w", ck.name, err)
	}
	args, err := ck.snapshot(q.ctx.device.LocalMemWords)
	if err != nil {
		return nil, err
	}
	return q.enqueue("launch "+ck.name, func() error {
		return runGroups(ck, r, args)
	})
}

// runGroups executes every work-group of the range, in parallel.
func runGroups(k *cpuKernel, r NDRange, args []any) error {
	var numGroups [3]int
	total := 1
	for d := 0; d < 3; d++ {
		l := max(r.Local[d], 1)
		numGroups[d] = max(r.Global[d], 1) / l
		total *= numGroups[d]
	}
	local := [3]int{max(r.Local[0], 1), max(r.Local[1], 1), max(r.Local[2], 1)}

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for linear := 0; linear < total; linear++ {
		id := [3]int{
			linear % numGroups[0],
			(linear / numGroups[0]) % numGroups[1],
			linear / (numGroups[0] * numGroups[1]),
		}
		eg.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("%w: %s group %v: %v", ErrLaunchFailed, k.name, id, p)
				}
			}()
			g := &WorkGroup{id: id, numGroups: numGroups, local: local, args: args}
			for i, a := range args {
				if words, ok := a.(Local); ok {
					if g.scratch == nil {
						g.scratch = make(map[int][]uint32, 1)
					}
					g.scratch[i] = make([]uint32, int(words))
				}
			}
			if err := k.fn(g); err != nil {
				return fmt.Errorf("%w: %s group %v: %v", ErrLaunchFailed, k.name, id, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (q *cpuQueue) CopyBuffer(src, dst Buffer, words int) (Event, error) {
	s, err := q.checkBuffer(src)
	if err != nil {
		return nil, err
	}
	d, err := q.checkBuffer(dst)
	if err != nil {
		return nil, err
	}
	if words < 0 || words > s.Len() || words > d.Len() {
		return nil, fmt.Errorf("%w: copy of %d words from %d to %d", ErrInvalidSize, words, s.Len(), d.Len())
	}
	return q.enqueue("copy", func() error {
		copy(d.data[:words], s.data[:words])
		return nil
	})
}

func (q *cpuQueue) ReadBuffer(b Buffer, dst []uint32) (Event, error) {
	cb, err := q.checkBuffer(b)
	if err != nil {
		return nil, err
	}
	if len(dst) > cb.Len() {
		return nil, fmt.Errorf("%w: read of %d words from buffer of %d", ErrInvalidSize, len(dst), cb.Len())
	}
	return q.enqueue("read", func() error {
		copy(dst, cb.data)
		return nil
	})
}

func (q *cpuQueue) WriteBuffer(b Buffer, src []uint32) (Event, error) {
	cb, err := q.checkBuffer(b)
	if err != nil {
		return nil, err
	}
	if len(src) > cb.Len() {
		return nil, fmt.Errorf("%w: write of %d words to buffer of %d", ErrInvalidSize, len(src), cb.Len())
	}
	return q.enqueue("write", func() error {
		copy(cb.data, src)
		return nil
	})
}

func (q *cpuQueue) Finish() error {
	q.mu.Lock()
	tail := q.tail
	q.mu.Unlock()
	if tail == nil {
		return nil
	}
	return tail.Wait()
}

func (q *cpuQueue) Release() error {
	if !q.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	// Pending commands still run to completion.
	_ = q.Finish()
	q.ctx.untrack(q.id)
	return nil
}
