package tui

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChristianF88/radixcl/output"
	"github.com/ChristianF88/radixcl/radixsort"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// App represents the TUI application
type App struct {
	app          *tview.Application
	pages        *tview.Pages
	progressView *tview.TextView
	resultsView  *tview.Flex
	statusBar    *tview.TextView

	// Results panels
	summary        *tview.TextView
	passesView     *tview.TextView
	verification   *tview.TextView
	distribution   *tview.TextView
	focusableItems []tview.Primitive
	currentFocus   int

	source string
	params radixsort.Params
	keys   int

	// Shared mutable state protected by mu (accessed from the sort goroutine)
	mu         sync.Mutex
	done       []radixsort.PassStats
	report     *output.Report
	result     *radixsort.Result
	distPass   int
	errMessage string

	// Atomic flags for cross-goroutine signaling (no mutex needed)
	sortComplete atomic.Bool
	failed       atomic.Bool
}

// NewApp creates a TUI for sorting keys from source with the given parameters.
func NewApp(source string, keys int, params radixsort.Params) *App {
	params.Normalize()
	a := &App{
		app:    tview.NewApplication(),
		pages:  tview.NewPages(),
		source: source,
		params: params,
		keys:   keys,
	}
	a.setupUI()
	return a
}

// OnPass records a finished pass. Pass it to radixsort.WithObserver.
func (a *App) OnPass(ps radixsort.PassStats) {
	a.mu.Lock()
	a.done = append(a.done, ps)
	a.mu.Unlock()
}

// SetResults shows the finished report and switches to the results page.
func (a *App) SetResults(report *output.Report, res *radixsort.Result) {
	if report == nil {
		return
	}
	a.mu.Lock()
	a.report = report
	a.result = res
	a.distPass = firstCapturedPass(res)
	a.mu.Unlock()

	a.sortComplete.Store(true)

	a.app.QueueUpdateDraw(func() {
		a.displayResults()
		a.pages.SwitchToPage("results")
		a.updateStatusBar()
	})
}

// ShowError displays an error message in the TUI and stops the progress animation
func (a *App) ShowError(message string) {
	a.mu.Lock()
	a.errMessage = message
	a.mu.Unlock()
	a.failed.Store(true)

	a.app.QueueUpdateDraw(func() {
		a.progressView.SetText(fmt.Sprintf("[red]Error:[white] %s\n\n[yellow]Press 'q' to quit[white]", message))
		a.statusBar.SetText("[red]Sort failed[white] | Press 'q' to quit")
	})
}

func (a *App) setupUI() {
	a.progressView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false).
		SetWrap(false)
	a.progressView.SetBorder(true).SetTitle(" radixcl Sort Progress ").SetTitleAlign(tview.AlignCenter)

	a.resultsView = tview.NewFlex().SetDirection(tview.FlexRow)
	a.setupResultsView()

	a.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetText("[yellow]Sorting...[white] | Press 'q' to quit")
	a.statusBar.SetBorder(false)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.progressView, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	results := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.resultsView, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.pages.AddPage("progress", main, true, true)
	a.pages.AddPage("results", results, true, false)

	a.app.SetInputCapture(a.handleKey)
	a.app.SetRoot(a.pages, true)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q', 'Q':
		a.app.Stop()
		return nil
	case 'r', 'R':
		if a.sortComplete.Load() {
			a.pages.SwitchToPage("results")
			a.updateStatusBar()
		}
		return nil
	case 'p', 'P':
		a.pages.SwitchToPage("progress")
		a.updateStatusBar()
		return nil
	case 'n', 'N':
		if a.sortComplete.Load() {
			a.nextDistributionPass()
		}
		return nil
	}

	frontPageName, _ := a.pages.GetFrontPage()
	if !a.sortComplete.Load() || frontPageName != "results" {
		return event
	}
	switch event.Key() {
	case tcell.KeyTab:
		a.nextFocus()
		return nil
	case tcell.KeyBacktab:
		a.prevFocus()
		return nil
	case tcell.KeyDown:
		a.scrollFocused(1)
		return nil
	case tcell.KeyUp:
		a.scrollFocused(-1)
		return nil
	case tcell.KeyPgDn:
		a.scrollFocused(10)
		return nil
	case tcell.KeyPgUp:
		a.scrollFocused(-10)
		return nil
	}
	return event
}

func (a *App) setupResultsView() {
	a.summary = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	a.summary.SetBorder(true).SetTitle(" Summary ").SetTitleAlign(tview.AlignLeft)

	a.passesView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)

	a.verification = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)

	a.distribution = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)

	for _, tv := range []*tview.TextView{a.passesView, a.verification, a.distribution} {
		tv.SetBorder(true).SetTitleAlign(tview.AlignLeft)
	}

	a.focusableItems = []tview.Primitive{a.passesView, a.verification, a.distribution}
	a.currentFocus = 0
	a.updateFocusBorders()

	topRow := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(a.summary, 0, 1, false)

	bottomRow := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(a.passesView, 0, 2, false).
		AddItem(a.verification, 0, 1, false).
		AddItem(a.distribution, 0, 2, false)

	a.resultsView.
		AddItem(topRow, 9, 0, false).
		AddItem(bottomRow, 0, 1, false)
}

// Run starts the TUI application
func (a *App) Run() error {
	stop := make(chan struct{})
	defer close(stop)
	go a.animateProgress(stop)
	return a.app.Run()
}

// Stop terminates the TUI from any goroutine.
func (a *App) Stop() {
	a.app.Stop()
}

// animateProgress redraws the progress page until the sort ends.
func (a *App) animateProgress(stop <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	frame := 0
	for !a.sortComplete.Load() && !a.failed.Load() {
		a.mu.Lock()
		done := append([]radixsort.PassStats(nil), a.done...)
		a.mu.Unlock()

		content := buildProgressText(a.source, a.keys, a.params, done, frame)
		a.app.QueueUpdateDraw(func() {
			if !a.failed.Load() {
				a.progressView.SetText(content)
			}
		})

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		frame++
	}
}

func (a *App) displayResults() {
	a.mu.Lock()
	report, res, pass := a.report, a.result, a.distPass
	a.mu.Unlock()

	a.summary.SetText(buildSummaryText(report))
	a.passesView.SetText(buildPassesText(report))
	a.verification.SetText(buildVerificationText(report))
	a.distribution.SetText(a.buildDistributionText(res, pass))
	a.updateFocusBorders()
}

func (a *App) nextDistributionPass() {
	a.mu.Lock()
	res := a.result
	if res == nil || len(res.Passes) == 0 {
		a.mu.Unlock()
		return
	}
	for i := 1; i <= len(res.Passes); i++ {
		next := (a.distPass + i) % len(res.Passes)
		if len(res.Passes[next].Counts) > 0 {
			a.distPass = next
			break
		}
	}
	pass := a.distPass
	a.mu.Unlock()

	a.distribution.SetText(a.buildDistributionText(res, pass))
	a.updateFocusBorders()
}

func (a *App) buildDistributionText(res *radixsort.Result, pass int) string {
	if res == nil || pass < 0 || pass >= len(res.Passes) {
		return "[dim]No histogram captured[white]"
	}
	return renderDistribution(res.Passes[pass].Counts, res.NumBlocks, a.params.Radix(), 40)
}

func (a *App) scrollFocused(delta int) {
	tv, ok := a.getFocusedItem().(*tview.TextView)
	if !ok {
		return
	}
	row, col := tv.GetScrollOffset()
	tv.ScrollTo(max(row+delta, 0), col)
}

func (a *App) nextFocus() {
	a.currentFocus = (a.currentFocus + 1) % len(a.focusableItems)
	a.updateFocusBorders()
	a.updateStatusBar()
}

func (a *App) prevFocus() {
	a.currentFocus = (a.currentFocus - 1 + len(a.focusableItems)) % len(a.focusableItems)
	a.updateFocusBorders()
	a.updateStatusBar()
}

func (a *App) getFocusedItem() tview.Primitive {
	if a.currentFocus >= 0 && a.currentFocus < len(a.focusableItems) {
		return a.focusableItems[a.currentFocus]
	}
	return nil
}

func (a *App) panelTitles() []string {
	a.mu.Lock()
	pass := a.distPass
	a.mu.Unlock()
	return []string{"Passes", "Verification", fmt.Sprintf("Digit Distribution (pass %d)", pass)}
}

func (a *App) updateFocusBorders() {
	for i, title := range a.panelTitles() {
		tv := a.focusableItems[i].(*tview.TextView)
		if i == a.currentFocus {
			tv.SetBorderColor(tcell.ColorYellow).SetTitle(" [::b]" + title + "[FOCUSED] ")
		} else {
			tv.SetBorderColor(tcell.ColorDefault).SetTitle(" " + title + " ")
		}
	}
}

func (a *App) updateStatusBar() {
	if a.failed.Load() {
		a.statusBar.SetText("[red]Sort failed[white] | Press 'q' to quit")
		return
	}
	if !a.sortComplete.Load() {
		a.statusBar.SetText("[yellow]Sorting...[white] | 'r' for results, 'q' to quit")
		return
	}
	frontPageName, _ := a.pages.GetFrontPage()
	if frontPageName == "progress" {
		a.statusBar.SetText("[green]Sort complete![white] | 'r': results, 'q': quit")
		return
	}
	currentPanel := a.panelTitles()[a.currentFocus]
	a.statusBar.SetText(fmt.Sprintf("[green]Sort complete![white] | [yellow]%s[white] focused | Tab/Shift+Tab: panels, ↑↓: scroll, 'n': next pass, 'p': progress, 'q': quit", currentPanel))
}

func firstCapturedPass(res *radixsort.Result) int {
	if res == nil {
		return 0
	}
	for i, ps := range res.Passes {
		if len(ps.Counts) > 0 {
			return i
		}
	}
	return 0
}

func buildProgressText(source string, keys int, params radixsort.Params, done []radixsort.PassStats, frame int) string {
	spinner := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	passes := params.Passes()

	var content strings.Builder
	content.WriteString("\n[white::b]radixcl Radix Sort[white::-]\n\n")
	fmt.Fprintf(&content, "[dim]Source:[white] %s\n", source)
	fmt.Fprintf(&content, "[dim]Keys:[white] %d\n", keys)
	fmt.Fprintf(&content, "[dim]Digits:[white] %d bits, radix %d, %d passes, %s\n\n",
		params.DigitBits, params.Radix(), passes, params.Order)

	for p := 0; p < passes; p++ {
		switch {
		case p < len(done):
			ps := done[p]
			fmt.Fprintf(&content, "[green]✔[white] pass %d  shift %2d  %-12s %v\n", p, ps.Shift, ps.Path, ps.Total())
		case p == len(done):
			fmt.Fprintf(&content, "[yellow]%s[white] pass %d  shift %2d\n", spinner[frame%len(spinner)], p, p*params.DigitBits)
		default:
			fmt.Fprintf(&content, "[dim]·[white] pass %d  shift %2d\n", p, p*params.DigitBits)
		}
	}
	content.WriteString("\n[dim]Press 'q' to quit[white]\n")
	return content.String()
}

func buildSummaryText(r *output.Report) string {
	if r == nil {
		return ""
	}
	g := r.General
	var content strings.Builder
	source := g.InputFile
	if source == "" && g.Seed != nil {
		source = fmt.Sprintf("random (seed %d)", *g.Seed)
	}
	fmt.Fprintf(&content, "[yellow]Source:[white] %s   [yellow]Keys:[white] %d\n", source, g.Keys)
	fmt.Fprintf(&content, "[yellow]Backend:[white] %s   [yellow]Device:[white] %s\n", g.Backend, g.Device)
	fmt.Fprintf(&content, "[yellow]Order:[white] %s   [yellow]Transition:[white] %s\n", g.Order, g.Transition)
	fmt.Fprintf(&content, "[yellow]Key bits:[white] %d   [yellow]Digit bits:[white] %d   [yellow]Group:[white] %d   [yellow]Block:[white] %d\n",
		g.KeyBits, g.DigitBits, g.GroupSize, g.BlockSize)
	fmt.Fprintf(&content, "[yellow]Blocks:[white] %d   [yellow]Tiles:[white] %d\n", g.NumBlocks, g.Tiles)
	fmt.Fprintf(&content, "[yellow]Sort time:[white] %d ms   [yellow]Rate:[white] %d keys/s   [yellow]Total:[white] %d ms",
		g.SortMS, g.KeysPerSecond, r.Metadata.DurationMS)
	return content.String()
}

func buildPassesText(r *output.Report) string {
	if r == nil || len(r.Passes) == 0 {
		return "[dim]No passes ran[white]"
	}
	var content strings.Builder
	content.WriteString("[white::b]Pass Shift Path          Hist(us) Scan(us) Perm(us) Trans(us)[white::-]\n")
	for _, p := range r.Passes {
		fmt.Fprintf(&content, "%4d %5d %-13s %8d %8d %8d %9d\n",
			p.Pass, p.Shift, p.ScanPath, p.HistogramUS, p.ScanUS, p.PermuteUS, p.TransitionUS)
		fmt.Fprintf(&content, "[dim]     steps: %s[white]\n", strings.Join(p.ScanSteps, " → "))
	}
	return content.String()
}

func buildVerificationText(r *output.Report) string {
	if r == nil {
		return ""
	}
	var content strings.Builder
	if v := r.Verification; v == nil {
		content.WriteString("[dim]Verification skipped[white]\n")
	} else if v.Passed {
		fmt.Fprintf(&content, "[green]PASSED[white]\n\nPassed: %d\nFailed: %d\n", v.Matched, v.Failed)
	} else {
		fmt.Fprintf(&content, "[red]FAILED[white]\n\nPassed: %d\nFailed: %d\nFirst mismatch: %d\n", v.Matched, v.Failed, v.FirstMismatch)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&content, "\n[yellow]%s:[white] %s", w.Type, w.Message)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&content, "\n[red]%s:[white] %s", e.Type, e.Message)
	}
	return content.String()
}
