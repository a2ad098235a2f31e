package output

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ChristianF88/radixcl/radixsort"
	"github.com/ChristianF88/radixcl/version"
)

// Report represents the complete output of a sort run
type Report struct {
	Metadata     Metadata      `json:"metadata"`
	General      General       `json:"general"`
	Passes       []Pass        `json:"passes"`
	Verification *Verification `json:"verification,omitempty"`
	ServeStats   *ServeStats   `json:"serve_stats,omitempty"`
	Warnings     []Warning     `json:"warnings"`
	Errors       []Error       `json:"errors"`

	// Mutex for thread-safe warning/error appending
	mu sync.Mutex `json:"-"`
}

// Metadata contains information about the run
type Metadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	Command     string    `json:"command"`
	Version     string    `json:"version"`
	DurationMS  int64     `json:"duration_ms"`
}

// General describes the input and the sort configuration
type General struct {
	InputFile  string `json:"input_file,omitempty"`
	Keys       int    `json:"keys"`
	Seed       *int64 `json:"seed,omitempty"`
	Backend    string `json:"backend"`
	Device     string `json:"device"`
	Order      string `json:"order"`
	Transition string `json:"transition"`
	KeyBits    int    `json:"key_bits"`
	DigitBits  int    `json:"digit_bits"`
	GroupSize  int    `json:"group_size"`
	BlockSize  int    `json:"block_size"`
	NumBlocks  int    `json:"num_blocks"`
	Tiles      int    `json:"tiles"`
	SortMS     int64  `json:"sort_ms"`
	// KeysPerSecond is zero when the sort finished too fast to measure.
	KeysPerSecond int64 `json:"keys_per_second"`
}

// Pass holds the device timings of one digit pass
type Pass struct {
	Pass         int      `json:"pass"`
	Shift        uint     `json:"shift"`
	ScanPath     string   `json:"scan_path"`
	ScanSteps    []string `json:"scan_steps"`
	HistogramUS  int64    `json:"histogram_us"`
	ScanUS       int64    `json:"scan_us"`
	PermuteUS    int64    `json:"permute_us"`
	TransitionUS int64    `json:"transition_us"`
	TotalUS      int64    `json:"total_us"`
}

// Verification is the host reference comparison
type Verification struct {
	Passed        bool `json:"passed"`
	Matched       int  `json:"matched"`
	Failed        int  `json:"failed"`
	Total         int  `json:"total"`
	FirstMismatch int  `json:"first_mismatch"`
}

// ServeStats contains statistics for one serve iteration
type ServeStats struct {
	Batches      int    `json:"batches"`
	Keys         int    `json:"keys"`
	Dropped      int    `json:"dropped"`
	LoopDuration int64  `json:"loop_duration_ms"`
	Min          uint32 `json:"min"`
	Max          uint32 `json:"max"`
}

// Warning represents a warning message
type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// Error represents an error message
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// NewReport creates a new Report with default metadata
func NewReport(command string, startTime time.Time) *Report {
	return &Report{
		Metadata: Metadata{
			GeneratedAt: time.Now().UTC(),
			Command:     command,
			Version:     version.Version,
			DurationMS:  time.Since(startTime).Milliseconds(),
		},
		Passes:   []Pass{},
		Warnings: []Warning{},
		Errors:   []Error{},
	}
}

// SetParams fills the configuration part of the general section.
func (r *Report) SetParams(p radixsort.Params) {
	r.General.Order = p.Order.String()
	r.General.Transition = p.Transition.String()
	r.General.KeyBits = p.KeyBits
	r.General.DigitBits = p.DigitBits
	r.General.GroupSize = p.GroupSize
	r.General.BlockSize = p.BlockSize
}

// SetResult records the shape, timings and passes of a finished sort.
func (r *Report) SetResult(res *radixsort.Result) {
	r.General.Keys = len(res.Keys)
	r.General.NumBlocks = res.NumBlocks
	r.General.Tiles = res.Tiles
	r.General.SortMS = res.Elapsed.Milliseconds()
	if secs := res.Elapsed.Seconds(); secs > 0 {
		r.General.KeysPerSecond = int64(float64(len(res.Keys)) / secs)
	}

	r.Passes = make([]Pass, 0, len(res.Passes))
	for _, ps := range res.Passes {
		r.Passes = append(r.Passes, Pass{
			Pass:         ps.Pass,
			Shift:        ps.Shift,
			ScanPath:     ps.Path.String(),
			ScanSteps:    ps.Path.Steps(),
			HistogramUS:  ps.Histogram.Microseconds(),
			ScanUS:       ps.Scan.Microseconds(),
			PermuteUS:    ps.Permute.Microseconds(),
			TransitionUS: ps.Transition.Microseconds(),
			TotalUS:      ps.Total().Microseconds(),
		})
	}
}

// SetVerification records the host comparison.
func (r *Report) SetVerification(v radixsort.Verification) {
	r.Verification = &Verification{
		Passed:        v.Passed,
		Matched:       v.Matched,
		Failed:        v.Total - v.Matched,
		Total:         v.Total,
		FirstMismatch: v.FirstMismatch,
	}
}

// ToJSON converts the report to pretty-printed JSON
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToCompactJSON converts the report to compact JSON
func (r *Report) ToCompactJSON() ([]byte, error) {
	return json.Marshal(r)
}

// AddWarning adds a warning to the report (thread-safe)
func (r *Report) AddWarning(warningType, message string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, Warning{
		Type:    warningType,
		Message: message,
		Count:   count,
	})
}

// AddError adds an error to the report (thread-safe)
func (r *Report) AddError(errorType, message string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, Error{
		Type:    errorType,
		Message: message,
		Count:   count,
	})
}

// UpdateDuration updates the duration in metadata
func (r *Report) UpdateDuration(startTime time.Time) {
	r.Metadata.DurationMS = time.Since(startTime).Milliseconds()
}
