package compute

import (
	"sync"
	"time"
)

type cpuEvent struct {
	kind string
	done chan struct{}

	mu      sync.Mutex
	status  Status
	err     error
	profile Profile
}

func newEvent(kind string) *cpuEvent {
	return &cpuEvent{
		kind:    kind,
		done:    make(chan struct{}),
		profile: Profile{Queued: time.Now()},
	}
}

func (e *cpuEvent) Wait() error {
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *cpuEvent) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *cpuEvent) Profile() Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile
}

func (e *cpuEvent) begin(profiling bool) {
	e.mu.Lock()
	e.status = Running
	if profiling {
		e.profile.Start = time.Now()
	}
	e.mu.Unlock()
}

func (e *cpuEvent) complete(err error, profiling bool) {
	e.mu.Lock()
	if profiling && !e.profile.Start.IsZero() {
		e.profile.End = time.Now()
	}
	e.err = err
	if err != nil {
		e.status = Failed
	} else {
		e.status = Complete
	}
	e.mu.Unlock()
	close(e.done)
}
