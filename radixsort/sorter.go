package radixsort

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ChristianF88/radixcl/compute"
)

// PassStats describes one digit pass.
type PassStats struct {
	Pass       int
	Shift      uint
	Path       ScanPath
	Histogram  time.Duration
	Scan       time.Duration
	Permute    time.Duration
	Transition time.Duration
	// Counts is the block-major histogram of the pass, set only when
	// Params.CaptureHistograms is true.
	Counts []uint32
}

// Total is the device time of the pass.
func (s PassStats) Total() time.Duration {
	return s.Histogram + s.Scan + s.Permute + s.Transition
}

// Result of a sort.
type Result struct {
	Keys      []uint32
	Passes    []PassStats
	NumBlocks int
	Tiles     int
	Elapsed   time.Duration
}

// Observer is called after every completed pass.
type Observer func(PassStats)

// Option configures a Sorter.
type Option func(*Sorter)

// WithLogger sets the logger used for pass diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sorter) { s.logger = l }
}

// WithObserver registers a per-pass callback.
func WithObserver(o Observer) Option {
	return func(s *Sorter) { s.observer = o }
}

// Sorter drives the pass loop on one compute context.
type Sorter struct {
	ctx      compute.Context
	params   Params
	logger   *slog.Logger
	observer Observer
}

// NewSorter validates params and binds them to ctx.
func NewSorter(ctx compute.Context, params Params, opts ...Option) (*Sorter, error) {
	params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := checkDevice(ctx.Device(), params); err != nil {
		return nil, err
	}
	s := &Sorter{ctx: ctx, params: params, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Params returns the normalized parameters.
func (s *Sorter) Params() Params { return s.params }

// Sort returns keys sorted by the configured order. The input slice is not
// modified. Any stage failure aborts the sort; device objects are released
// on every path.
func (s *Sorter) Sort(keys []uint32) (res *Result, err error) {
	start := time.Now()
	if len(keys) == 0 {
		return &Result{Keys: []uint32{}}, nil
	}

	p, err := NewPipeline(s.ctx, keys, s.params)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := p.Release(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("releasing pipeline: %w", rerr))
		}
	}()

	s.logger.Debug("radix sort started",
		"keys", len(keys),
		"passes", s.params.Passes(),
		"blocks", p.NumBlocks(),
		"tiles", p.Tiles(),
		"scan", p.Path().String(),
		"order", s.params.Order.String(),
		"transition", s.params.Transition.String())

	res = &Result{NumBlocks: p.NumBlocks(), Tiles: p.Tiles()}
	for pass := 0; pass < s.params.Passes(); pass++ {
		stats, err := s.runPass(p, pass)
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", pass, err)
		}
		res.Passes = append(res.Passes, stats)
		if s.observer != nil {
			s.observer(stats)
		}
	}

	if res.Keys, err = p.ReadKeys(); err != nil {
		return nil, fmt.Errorf("reading sorted keys: %w", err)
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// runPass runs histogram, scan, permute and the buffer transition for one
// digit. Each stage waits for the previous one to complete.
func (s *Sorter) runPass(p *Pipeline, pass int) (PassStats, error) {
	shift := uint(pass * s.params.DigitBits)
	stats := PassStats{Pass: pass, Shift: shift, Path: p.Path()}

	ev, err := p.Histogram(shift)
	if err != nil {
		return stats, fmt.Errorf("histogram: %w", err)
	}
	if err := ev.Wait(); err != nil {
		return stats, fmt.Errorf("histogram: %w", err)
	}
	stats.Histogram = ev.Profile().Duration()

	if s.params.CaptureHistograms {
		if stats.Counts, err = p.ReadHistogram(); err != nil {
			return stats, fmt.Errorf("reading histogram: %w", err)
		}
	}

	events, err := p.Scan()
	if err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}
	for _, ev := range events {
		if err := ev.Wait(); err != nil {
			return stats, fmt.Errorf("scan: %w", err)
		}
		stats.Scan += ev.Profile().Duration()
	}

	ev, err = p.Permute(shift)
	if err != nil {
		return stats, fmt.Errorf("permute: %w", err)
	}
	if err := ev.Wait(); err != nil {
		return stats, fmt.Errorf("permute: %w", err)
	}
	stats.Permute = ev.Profile().Duration()

	ev, err = p.Advance()
	if err != nil {
		return stats, fmt.Errorf("transition: %w", err)
	}
	if ev != nil {
		if err := ev.Wait(); err != nil {
			return stats, fmt.Errorf("transition: %w", err)
		}
		stats.Transition = ev.Profile().Duration()
	}

	s.logger.Debug("pass complete",
		"pass", pass,
		"shift", shift,
		"histogram", stats.Histogram,
		"scan", stats.Scan,
		"permute", stats.Permute,
		"transition", stats.Transition)
	return stats, nil
}
