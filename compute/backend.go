// Package compute is a small data-parallel compute abstraction modelled on
// the OpenCL host API: back ends expose devices, contexts allocate buffers and
// build programs, and in-order queues launch kernels over an NDRange and hand
// back events.
package compute

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Backend is implemented by compute back ends (CPU, OpenCL, ...).
type Backend interface {
	Name() string
	Available() bool
	Devices() ([]DeviceInfo, error)
	NewContext(device int) (Context, error)
}

// DeviceInfo describes one device of a back end. Sizes are in 32-bit words.
type DeviceInfo struct {
	Name             string
	Vendor           string
	Type             string
	ComputeUnits     int
	MaxWorkGroupSize int
	LocalMemWords    int
	MaxAllocWords    int
}

// Context owns every object created through it.
type Context interface {
	Device() DeviceInfo
	NewBuffer(access Access, words int, host []uint32) (Buffer, error)
	NewQueue(profiling bool) (Queue, error)
	BuildProgram(src Source) (Program, error)
	// Live reports the number of objects created and not yet released.
	Live() int
	Release() error
}

// Access is a usage hint for device buffers, as seen from kernels.
type Access uint8

const (
	ReadWrite Access = iota
	ReadOnly
	WriteOnly
)

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	default:
		return "read-write"
	}
}

// Buffer is a device allocation of uint32 words.
type Buffer interface {
	Len() int
	Access() Access
	Release() error
}

// Source is the input of a program build. Device back ends compile Text;
// the CPU back end runs the Host kernel bodies.
type Source struct {
	Name string
	Text string
	Host map[string]KernelFunc
}

// Program is a built kernel library.
type Program interface {
	Kernel(name string) (Kernel, error)
	BuildLog() string
	Release() error
}

// Kernel is a launchable entry point with bound arguments.
// SetArg accepts a Buffer, a uint32, a non-negative int or a Local size.
type Kernel interface {
	Name() string
	SetArg(index int, value any) error
	Release() error
}

// Local requests a per-work-group scratch allocation of the given number of words.
type Local int

// NDRange is a 1 to 3 dimensional index space split into work-groups.
type NDRange struct {
	Dims   int
	Global [3]int
	Local  [3]int
}

// Range1D builds a one-dimensional NDRange.
func Range1D(global, local int) NDRange {
	return NDRange{Dims: 1, Global: [3]int{global, 1, 1}, Local: [3]int{local, 1, 1}}
}

// Range2D builds a two-dimensional NDRange.
func Range2D(global0, global1, local0, local1 int) NDRange {
	return NDRange{Dims: 2, Global: [3]int{global0, global1, 1}, Local: [3]int{local0, local1, 1}}
}

func (r NDRange) validate(maxGroup int) error {
	if r.Dims < 1 || r.Dims > 3 {
		return fmt.Errorf("%w: %d dimensions", ErrInvalidWorkSize, r.Dims)
	}
	items := 1
	for d := 0; d < 3; d++ {
		g, l := r.Global[d], r.Local[d]
		if d >= r.Dims {
			if g > 1 || l > 1 {
				return fmt.Errorf("%w: size set on unused dimension %d", ErrInvalidWorkSize, d)
			}
			continue
		}
		if g <= 0 || l <= 0 {
			return fmt.Errorf("%w: global %d local %d in dimension %d", ErrInvalidWorkSize, g, l, d)
		}
		if g%l != 0 {
			return fmt.Errorf("%w: global %d not a multiple of local %d in dimension %d", ErrInvalidWorkSize, g, l, d)
		}
		items *= l
	}
	if items > maxGroup {
		return fmt.Errorf("%w: work-group of %d items exceeds device limit %d", ErrInvalidWorkSize, items, maxGroup)
	}
	return nil
}

// Queue is an in-order command queue. Every command starts after the previous
// one completes; a failed command fails everything enqueued after it.
type Queue interface {
	Launch(k Kernel, r NDRange) (Event, error)
	CopyBuffer(src, dst Buffer, words int) (Event, error)
	ReadBuffer(b Buffer, dst []uint32) (Event, error)
	WriteBuffer(b Buffer, src []uint32) (Event, error)
	// Finish blocks until every enqueued command completed.
	Finish() error
	Release() error
}

// Status of an enqueued command.
type Status uint8

const (
	Queued Status = iota
	Running
	Complete
	Failed
)

func (s Status) String() string {
	switch s {
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Complete:
		return "complete"
	default:
		return "failed"
	}
}

// Profile holds command timestamps. Start and End are zero unless the queue
// was created with profiling enabled.
type Profile struct {
	Queued time.Time
	Start  time.Time
	End    time.Time
}

// Duration is the execution time of the command.
func (p Profile) Duration() time.Duration {
	if p.Start.IsZero() || p.End.IsZero() {
		return 0
	}
	return p.End.Sub(p.Start)
}

// Event signals completion of one enqueued command.
type Event interface {
	Wait() error
	Status() Status
	Profile() Profile
}

// WaitAll waits for every event and returns the first error.
func WaitAll(events ...Event) error {
	var firstErr error
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if err := ev.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Backend{}
)

// Register adds a back end under its name, replacing any earlier one.
func Register(b Backend) {
	registryMu.Lock()
	registry[b.Name()] = b
	registryMu.Unlock()
}

// Lookup returns the back end registered under name.
func Lookup(name string) (Backend, error) {
	registryMu.RLock()
	b, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoBackend, name)
	}
	return b, nil
}

// Names lists registered back ends in lexical order.
func Names() []string {
	registryMu.RLock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	registryMu.RUnlock()
	sort.Strings(names)
	return names
}

// Open looks up a back end and creates a context on one of its devices.
func Open(name string, device int) (Context, error) {
	b, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if !b.Available() {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, name)
	}
	devices, err := b.Devices()
	if err != nil {
		return nil, err
	}
	if device < 0 || device >= len(devices) {
		return nil, fmt.Errorf("%w: %s device %d of %d", ErrNoDevice, name, device, len(devices))
	}
	return b.NewContext(device)
}
