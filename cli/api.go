package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ChristianF88/radixcl/compute"
	"github.com/ChristianF88/radixcl/config"
	"github.com/ChristianF88/radixcl/ingestor"
	"github.com/ChristianF88/radixcl/keys"
	"github.com/ChristianF88/radixcl/output"
	"github.com/ChristianF88/radixcl/radixsort"
	"github.com/ChristianF88/radixcl/tui"
)

// OutputConfig contains output formatting options
type OutputConfig struct {
	Compact bool
	Plain   bool
	TUI     bool
}

// newLogger returns a text logger on w, at Debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ============================================================================
// MAIN ENTRY POINTS
// ============================================================================

// SortFromConfig runs one sort described by cfg and writes the report to w.
func SortFromConfig(cfg *config.Config, outputConfig OutputConfig, logger *slog.Logger, w io.Writer) error {
	if outputConfig.TUI {
		return executeTUI(cfg, logger)
	}

	report, _, err := executeSort(cfg, logger, sortHooks{})
	if report != nil {
		if oerr := outputResult(w, report, outputConfig); oerr != nil {
			return errors.Join(err, oerr)
		}
	}
	if err != nil {
		return err
	}
	if v := report.Verification; v != nil && !v.Passed {
		return fmt.Errorf("verification failed: %d of %d keys differ, first at index %d", v.Failed, v.Total, v.FirstMismatch)
	}
	return nil
}

// ListDevices writes every registered back end and its devices to w.
func ListDevices(w io.Writer) error {
	for _, name := range compute.Names() {
		backend, err := compute.Lookup(name)
		if err != nil {
			return err
		}
		if !backend.Available() {
			fmt.Fprintf(w, "%s: unavailable\n", name)
			continue
		}
		devices, err := backend.Devices()
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(w, "%s:\n", name)
		for i, d := range devices {
			fmt.Fprintf(w, "  [%d] %s (%s, %s) units=%d maxGroup=%d localWords=%s maxAllocWords=%s\n",
				i, d.Name, d.Vendor, d.Type, d.ComputeUnits, d.MaxWorkGroupSize,
				formatNumber(d.LocalMemWords), formatNumber(d.MaxAllocWords))
		}
	}
	return nil
}

// ============================================================================
// CORE EXECUTION LOGIC
// ============================================================================

// sortHooks are the extras the TUI attaches to a sort.
type sortHooks struct {
	observer radixsort.Observer
	capture  bool
}

// loadKeys reads the input file or generates seeded random keys.
func loadKeys(cfg *config.Config) ([]uint32, error) {
	if cfg.Sort.InputFile != "" {
		return keys.ReadFile(cfg.Sort.InputFile)
	}
	return keys.Random(cfg.Sort.Size, cfg.Sort.Seed), nil
}

// executeSort runs the whole sort. The report is returned even on failure so
// that errors can be shown in it.
func executeSort(cfg *config.Config, logger *slog.Logger, hooks sortHooks) (*output.Report, *radixsort.Result, error) {
	start := time.Now()
	report := output.NewReport("sort", start)
	report.General.Backend = cfg.Sort.Backend
	report.General.InputFile = cfg.Sort.InputFile
	if cfg.Sort.InputFile == "" {
		seed := cfg.Sort.Seed
		report.General.Seed = &seed
	}

	params, err := cfg.Params()
	if err != nil {
		report.AddError("params", err.Error(), 1)
		return report, nil, err
	}
	if hooks.capture {
		params.CaptureHistograms = true
	}
	report.SetParams(params)

	input, err := loadKeys(cfg)
	if err != nil {
		report.AddError("input", err.Error(), 1)
		return report, nil, err
	}
	report.General.Keys = len(input)
	logger.Debug("keys loaded", "count", len(input), "source", sourceName(cfg))

	ctx, err := compute.Open(cfg.Sort.Backend, cfg.Sort.Device)
	if err != nil {
		report.AddError("backend", err.Error(), 1)
		return report, nil, err
	}
	defer func() {
		if rerr := ctx.Release(); rerr != nil {
			report.AddWarning("leak", rerr.Error(), ctx.Live())
			logger.Warn("compute context released with live objects", "err", rerr)
		}
	}()
	report.General.Device = ctx.Device().Name

	opts := []radixsort.Option{radixsort.WithLogger(logger)}
	if hooks.observer != nil {
		opts = append(opts, radixsort.WithObserver(hooks.observer))
	}
	sorter, err := radixsort.NewSorter(ctx, params, opts...)
	if err != nil {
		report.AddError("params", err.Error(), 1)
		return report, nil, err
	}

	res, err := sorter.Sort(input)
	if err != nil {
		var buildErr *compute.BuildError
		if errors.As(err, &buildErr) {
			report.AddError("build", buildErr.Log, 1)
			logger.Error("kernel build failed", "program", buildErr.Program, "log", buildErr.Log)
		} else {
			report.AddError("sort", err.Error(), 1)
		}
		return report, nil, err
	}
	report.SetResult(res)
	logger.Info("sort finished", "keys", len(res.Keys), "elapsed", res.Elapsed)

	if cfg.Sort.Verify {
		want := radixsort.Reference(input, params)
		v := radixsort.Verify(res.Keys, want)
		report.SetVerification(v)
		if !v.Passed {
			logger.Error("verification failed", "matched", v.Matched, "total", v.Total, "first_mismatch", v.FirstMismatch)
		}
	}

	if cfg.Sort.OutputFile != "" {
		if err := keys.WriteFile(cfg.Sort.OutputFile, res.Keys); err != nil {
			report.AddError("output", err.Error(), 1)
			return report, res, err
		}
	}

	if cfg.Output.PlotPath != "" {
		plotStart := time.Now()
		if err := output.PlotHistogram(res, params.Radix(), cfg.Output.PlotPath); err != nil {
			report.AddWarning("plot", err.Error(), 1)
		} else {
			report.AddWarning("info", fmt.Sprintf("Histogram plot generated in %v at %s", time.Since(plotStart), cfg.Output.PlotPath), 0)
		}
	}

	report.UpdateDuration(start)
	return report, res, nil
}

func sourceName(cfg *config.Config) string {
	if cfg.Sort.InputFile != "" {
		return cfg.Sort.InputFile
	}
	return fmt.Sprintf("random (seed %d)", cfg.Sort.Seed)
}

// executeTUI runs the sort in the background and shows it in the TUI
func executeTUI(cfg *config.Config, logger *slog.Logger) error {
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	n := cfg.Sort.Size
	if cfg.Sort.InputFile != "" {
		n = 0
	}
	app := tui.NewApp(sourceName(cfg), n, params)

	// The TUI owns the terminal; only debug runs keep logging.
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	go func() {
		report, res, err := executeSort(cfg, logger, sortHooks{observer: app.OnPass, capture: true})
		if err != nil {
			app.ShowError(fmt.Sprintf("Sort failed: %v", err))
			return
		}
		app.SetResults(report, res)
	}()

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// Serve receives key batches over lumberjack v2 and sorts whatever arrived
// every interval until ctx is cancelled or a termination signal arrives.
func Serve(ctx context.Context, cfg *config.Config, outputConfig OutputConfig, logger *slog.Logger, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ing, err := ingestor.NewKeyIngestor(":"+cfg.Serve.Port, cfg.Serve.ReadTimeout, cfg.Serve.MaxBatch)
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}
	logger.Info("waiting for lumberjack clients", "addr", ing.Addr().String())
	return serveLoop(ctx, ing, cfg, outputConfig, logger, w)
}

// serveLoop owns ing and closes it on return.
func serveLoop(ctx context.Context, ing *ingestor.KeyIngestor, cfg *config.Config, outputConfig OutputConfig, logger *slog.Logger, w io.Writer) (err error) {
	var closeOnce sync.Once
	closeIngestor := func() {
		closeOnce.Do(func() {
			if cerr := ing.Close(); cerr != nil {
				logger.Debug("closing ingestor", "err", cerr)
			}
		})
	}
	defer closeIngestor()

	params, err := cfg.Params()
	if err != nil {
		return err
	}
	cctx, err := compute.Open(cfg.Sort.Backend, cfg.Sort.Device)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := cctx.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	sorter, err := radixsort.NewSorter(cctx, params, radixsort.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := ing.Accept(); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		logger.Info("shutting down serve loop")
		closeIngestor()
	}()

	ticker := time.NewTicker(cfg.Serve.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		loopStart := time.Now()
		batch, stats, err := ing.ReadBatch()
		if err != nil {
			return fmt.Errorf("reading batch: %w", err)
		}
		if len(batch) == 0 {
			ing.Release(batch)
			if ing.IsClosed() {
				logger.Info("ingestor closed, leaving serve loop")
				return nil
			}
			continue
		}

		report := serveIteration(sorter, cctx.Device().Name, cfg, batch, stats, logger)
		ing.Release(batch)
		report.ServeStats.LoopDuration = time.Since(loopStart).Milliseconds()
		report.UpdateDuration(loopStart)
		if err := outputResult(w, report, outputConfig); err != nil {
			return err
		}
	}
}

// serveIteration sorts one drained batch and reports on it.
func serveIteration(sorter *radixsort.Sorter, device string, cfg *config.Config, batch []uint32, stats ingestor.BatchStats, logger *slog.Logger) *output.Report {
	report := output.NewReport("serve", time.Now())
	report.General.Backend = cfg.Sort.Backend
	report.General.Device = device
	report.SetParams(sorter.Params())
	report.ServeStats = &output.ServeStats{
		Batches: stats.Batches,
		Keys:    len(batch),
		Dropped: stats.Invalid,
	}
	if stats.Invalid > 0 {
		report.AddWarning("invalid_events", "events without parsable keys were dropped", stats.Invalid)
	}

	lo, hi := batch[0], batch[0]
	for _, k := range batch[1:] {
		lo, hi = min(lo, k), max(hi, k)
	}
	report.ServeStats.Min, report.ServeStats.Max = lo, hi

	res, err := sorter.Sort(batch)
	if err != nil {
		report.AddError("sort", err.Error(), 1)
		logger.Error("sorting batch failed", "keys", len(batch), "err", err)
		return report
	}
	report.SetResult(res)

	if cfg.Sort.Verify {
		report.SetVerification(radixsort.Verify(res.Keys, radixsort.Reference(batch, sorter.Params())))
	}
	return report
}

// ============================================================================
// OUTPUT FUNCTIONS - Unified output handling
// ============================================================================

// outputResult is the unified output function that handles all output formats
func outputResult(w io.Writer, report *output.Report, outputConfig OutputConfig) error {
	if outputConfig.Plain {
		outputPlain(w, report)
		return nil
	}

	var jsonBytes []byte
	var err error

	if outputConfig.Compact {
		jsonBytes, err = report.ToCompactJSON()
	} else {
		jsonBytes, err = report.ToJSON()
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonBytes))
	return err
}

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════"
	lightRule = "───────────────────────────────────────────────────────────────────────────────"
)

// outputPlain formats the report as human-readable plain text
func outputPlain(w io.Writer, report *output.Report) {
	g := report.General
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintln(w, "                               radixcl Sort Results")
	fmt.Fprintf(w, "%s\n\n", heavyRule)

	fmt.Fprintln(w, "SORT OVERVIEW")
	fmt.Fprintln(w, lightRule)
	if g.InputFile != "" {
		fmt.Fprintf(w, "Input File:      %s\n", g.InputFile)
	} else if g.Seed != nil {
		fmt.Fprintf(w, "Input:           random, seed %d\n", *g.Seed)
	}
	fmt.Fprintf(w, "Keys:            %s\n", formatNumber(g.Keys))
	fmt.Fprintf(w, "Backend:         %s (%s)\n", g.Backend, g.Device)
	fmt.Fprintf(w, "Order:           %s\n", g.Order)
	fmt.Fprintf(w, "Transition:      %s\n", g.Transition)
	fmt.Fprintf(w, "Digits:          %d key bits, %d bits per pass\n", g.KeyBits, g.DigitBits)
	fmt.Fprintf(w, "Work Layout:     group %d, block %d, %d blocks, %d tiles\n", g.GroupSize, g.BlockSize, g.NumBlocks, g.Tiles)
	fmt.Fprintf(w, "Sort Time:       %d ms (%s keys/sec)\n", g.SortMS, formatNumber(int(g.KeysPerSecond)))
	fmt.Fprintf(w, "Duration:        %d ms\n", report.Metadata.DurationMS)
	fmt.Fprintln(w)

	if s := report.ServeStats; s != nil {
		fmt.Fprintln(w, "SERVE ITERATION")
		fmt.Fprintln(w, lightRule)
		fmt.Fprintf(w, "Batches:         %d\n", s.Batches)
		fmt.Fprintf(w, "Keys:            %s (dropped events: %d)\n", formatNumber(s.Keys), s.Dropped)
		fmt.Fprintf(w, "Range:           %d .. %d\n", s.Min, s.Max)
		fmt.Fprintf(w, "Loop Time:       %d ms\n", s.LoopDuration)
		fmt.Fprintln(w)
	}

	if len(report.Passes) > 0 {
		fmt.Fprintf(w, "PASSES (%d)\n", len(report.Passes))
		fmt.Fprintln(w, lightRule)
		fmt.Fprintln(w, "  Pass  Shift  Scan Path      Histogram      Scan   Permute  Transition     Total")
		for _, p := range report.Passes {
			fmt.Fprintf(w, "  %4d  %5d  %-12s %9dμs %8dμs %8dμs %9dμs %8dμs\n",
				p.Pass, p.Shift, p.ScanPath, p.HistogramUS, p.ScanUS, p.PermuteUS, p.TransitionUS, p.TotalUS)
		}
		fmt.Fprintf(w, "  Scan steps: %s\n", strings.Join(report.Passes[0].ScanSteps, " → "))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "VERIFICATION")
	fmt.Fprintln(w, lightRule)
	if v := report.Verification; v == nil {
		fmt.Fprintln(w, "Skipped")
	} else {
		if v.Passed {
			fmt.Fprintln(w, "Result:          PASSED")
		} else {
			fmt.Fprintln(w, "Result:          FAILED")
		}
		fmt.Fprintf(w, "Passed: %d\n", v.Matched)
		fmt.Fprintf(w, "Failed: %d\n", v.Failed)
		if !v.Passed {
			fmt.Fprintf(w, "First Mismatch:  index %d\n", v.FirstMismatch)
		}
	}
	fmt.Fprintln(w)

	if len(report.Warnings) > 0 || len(report.Errors) > 0 {
		fmt.Fprintln(w, "DIAGNOSTICS")
		fmt.Fprintln(w, lightRule)
		if len(report.Warnings) > 0 {
			fmt.Fprintln(w, "Warnings:")
			for _, warning := range report.Warnings {
				fmt.Fprintf(w, "  • %s\n", warning.Message)
			}
		}
		if len(report.Errors) > 0 {
			fmt.Fprintln(w, "Errors:")
			for _, e := range report.Errors {
				// Build logs span several lines; indent them under the bullet.
				fmt.Fprintf(w, "  • [%s] %s\n", e.Type, strings.ReplaceAll(strings.TrimRight(e.Message, "\n"), "\n", "\n    "))
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, heavyRule)
}

// formatNumber adds thousand separators to numbers
func formatNumber(n int) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	start := 0
	if str[0] == '-' {
		result.WriteByte('-')
		start = 1
	}
	digits := str[start:]
	for i, digit := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return result.String()
}
