package episodes

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type point struct {
	ts       time.Time
	episodes int64
}

// Internal aggregates and exporter loop

var (
	internalEpisodes atomic.Int64 // episodes observed since process start
	lastRunLine      atomic.Value // string, most recent finished-run summary

	exporterMu   sync.Mutex
	exporterStop chan struct{}
	exporterDone chan struct{}
	currCfg      atomic.Value // stores Config

	// rolling window points for the rate KPI (protected by windowMu)
	windowPoints []point
	windowMu     sync.Mutex

	livePrinted   atomic.Bool
	liveMode      atomic.Bool
	ansiSupported atomic.Bool
	colorOn       atomic.Bool

	prevSimpleLen atomic.Int64
)

func startOrUpdateExporter(cfg Config) {
	exporterMu.Lock()
	defer exporterMu.Unlock()

	currCfg.Store(cfg)

	// configure live mode and colors (env overrides allowed)
	lm := os.Getenv("BENCH_LIVE")
	if lm == "0" || strings.EqualFold(lm, "false") {
		liveMode.Store(false)
	} else {
		liveMode.Store(true)
	}
	colorOn.Store(os.Getenv("NO_COLOR") == "")
	ansiSupported.Store(detectANSISupport())

	// Stop previous loop if running
	if exporterStop != nil {
		close(exporterStop)
		<-exporterDone
		exporterStop, exporterDone = nil, nil
	}
	if !cfg.Enabled || cfg.LogInterval <= 0 {
		return
	}
	exporterStop = make(chan struct{})
	exporterDone = make(chan struct{})
	go exporterLoop(exporterStop, exporterDone)
}

func exporterLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	cfg, _ := currCfg.Load().(Config)
	// cfg.LogInterval is guaranteed > 0 by the starter
	ticker := time.NewTicker(cfg.LogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			publishSnapshot()
		case <-stop:
			return
		}
	}
}

func publishSnapshot() {
	cfg, _ := currCfg.Load().(Config)

	now := time.Now()
	pt := point{ts: now, episodes: internalEpisodes.Load()}

	windowMu.Lock()
	windowPoints = append(windowPoints, pt)
	winStart := now.Add(-cfg.Window)
	idx := 0
	for idx < len(windowPoints) && windowPoints[idx].ts.Before(winStart) {
		idx++
	}
	if idx > 0 {
		windowPoints = windowPoints[idx:]
	}
	old := windowPoints[0]
	windowMu.Unlock()

	elapsed := pt.ts.Sub(old.ts).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(pt.episodes-old.episodes) / elapsed
	}
	episodeRate.Set(rate)

	rateTxt := fmt.Sprintf("%.0f", rate)
	if colorOn.Load() {
		rateTxt = colorRate(rate, rateTxt)
	}
	summary := fmt.Sprintf("bench summary: episodes=%d rate=%s/s window=%s", pt.episodes, rateTxt, cfg.Window)

	runLine := "last run: (none yet)"
	if v, ok := lastRunLine.Load().(string); ok && v != "" {
		runLine = v
	}

	if liveMode.Load() {
		if ansiSupported.Load() {
			renderLive(summary, runLine)
		} else {
			renderSimple(summary, runLine)
		}
		return
	}

	ts := now.Format(time.RFC3339)
	fmt.Printf("[%s] %s\n", ts, summary)
	fmt.Printf("  - %s\n", runLine)
}

// --- recording helpers (called from prom_counters.go) ---

func exporterRecordRun(algorithm string, parties, episodes int, episodesPerSec float64) {
	lastRunLine.Store(fmt.Sprintf("last run: alg=%s parties=%d episodes=%d rate=%.0f/s",
		algorithm, parties, episodes, episodesPerSec))
}

// --- Live rendering and coloring helpers ---

const (
	ansiClearLine  = "\x1b[2K"
	ansiPrevLines2 = "\x1b[2F" // move cursor to beginning of the line, 2 lines up
	ansiReset      = "\x1b[0m"
	ansiBold       = "\x1b[1m"
	ansiGreen      = "\x1b[32m"
	ansiYellow     = "\x1b[33m"
	ansiCyan       = "\x1b[36m"
)

func renderLive(summary, runLine string) {
	if !livePrinted.Load() {
		fmt.Printf("%s\n%s\n", summary, runLine)
		livePrinted.Store(true)
		return
	}
	fmt.Print(ansiPrevLines2)
	fmt.Printf("%s%s\n", ansiClearLine, summary)
	fmt.Printf("%s%s\n", ansiClearLine, runLine)
}

// renderSimple overwrites a single line using carriage return so consoles
// without ANSI cursor movement don't spam new lines.
func renderSimple(summary, runLine string) {
	line := summary
	if runLine != "" && runLine != "last run: (none yet)" {
		line = line + " | " + runLine
	}
	visLen := printableLen(line)
	prev := prevSimpleLen.Load()
	if !livePrinted.Load() {
		fmt.Print(line)
		livePrinted.Store(true)
		prevSimpleLen.Store(int64(visLen))
		return
	}
	pad := int(prev) - visLen
	if pad < 0 {
		pad = 0
	}
	if pad > 0 {
		fmt.Printf("\r%s%s", line, strings.Repeat(" ", pad))
	} else {
		fmt.Printf("\r%s", line)
	}
	prevSimpleLen.Store(int64(visLen))
}

// printableLen returns the visible character length after stripping ANSI
// escapes.
func printableLen(s string) int {
	if !strings.Contains(s, "\x1b") {
		return len(s)
	}
	n := 0
	inEsc := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inEsc {
			if c >= 0x40 && c <= 0x7E && c != '[' {
				inEsc = false
			}
			continue
		}
		if c == 0x1b {
			inEsc = true
			continue
		}
		n++
	}
	return n
}

// detectANSISupport best-effort heuristic for cursor movement capability.
func detectANSISupport() bool {
	if os.Getenv("BENCH_LIVE") == "0" || strings.EqualFold(os.Getenv("BENCH_LIVE"), "false") {
		return false
	}
	term := strings.ToLower(os.Getenv("TERM"))
	if term == "" {
		return false
	}
	return strings.Contains(term, "xterm") || strings.Contains(term, "screen") ||
		strings.Contains(term, "tmux") || strings.Contains(term, "ansi")
}

func colorRate(val float64, txt string) string {
	if !colorOn.Load() {
		return txt
	}
	switch {
	case val >= 1e6:
		return ansiBold + ansiGreen + txt + ansiReset
	case val >= 1e4:
		return ansiCyan + txt + ansiReset
	case val > 0:
		return ansiYellow + txt + ansiReset
	default:
		return txt
	}
}
