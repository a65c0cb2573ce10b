package episodes

import (
	"testing"
	"time"
)

// TestEnable_TogglesModule checks that Enable flips the module on and off and
// that the hot-path observers are no-ops while disabled.
func TestEnable_TogglesModule(t *testing.T) {
	t.Setenv("BENCH_LIVE", "0")

	Enable(Config{Enabled: false})
	if Enabled() {
		t.Fatalf("module reported enabled after Enable(false)")
	}
	before := internalEpisodes.Load()
	ObserveEpisode(time.Microsecond)
	ObserveAction()
	ObserveRun("central", 4, 100, 1000)
	if internalEpisodes.Load() != before {
		t.Fatalf("disabled module recorded an episode")
	}

	Enable(Config{Enabled: true})
	defer Enable(Config{Enabled: false})
	if !Enabled() {
		t.Fatalf("module reported disabled after Enable(true)")
	}
	ObserveEpisode(time.Microsecond)
	if internalEpisodes.Load() != before+1 {
		t.Fatalf("enabled module did not record the episode")
	}
}

// TestEnable_DefaultWindow checks that a zero KPI window defaults to one
// minute.
func TestEnable_DefaultWindow(t *testing.T) {
	t.Setenv("BENCH_LIVE", "0")

	Enable(Config{Enabled: true})
	defer Enable(Config{Enabled: false})

	cfg, _ := currCfg.Load().(Config)
	if cfg.Window != time.Minute {
		t.Fatalf("expected default window 1m, got %v", cfg.Window)
	}
}

// TestObserveRun_UpdatesLastRunLine checks that a finished run shows up in
// the exporter's last-run summary line.
func TestObserveRun_UpdatesLastRunLine(t *testing.T) {
	t.Setenv("BENCH_LIVE", "0")

	Enable(Config{Enabled: true})
	defer Enable(Config{Enabled: false})

	ObserveRun("tournament", 8, 5000, 123456)
	line, _ := lastRunLine.Load().(string)
	want := "last run: alg=tournament parties=8 episodes=5000 rate=123456/s"
	if line != want {
		t.Fatalf("got %q want %q", line, want)
	}
}

// TestPrintableLen verifies ANSI escape stripping when measuring visible
// line width.
func TestPrintableLen(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"Plain", "hello", 5},
		{"Empty", "", 0},
		{"Colored", ansiGreen + "ok" + ansiReset, 2},
		{"BoldColored", ansiBold + ansiYellow + "123" + ansiReset, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := printableLen(tc.in); got != tc.want {
				t.Fatalf("printableLen(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

// TestDetectANSISupport covers the TERM heuristic and the BENCH_LIVE
// override.
func TestDetectANSISupport(t *testing.T) {
	cases := []struct {
		name string
		live string
		term string
		want bool
	}{
		{"XTerm", "", "xterm-256color", true},
		{"Tmux", "", "tmux-256color", true},
		{"Dumb", "", "dumb", false},
		{"NoTerm", "", "", false},
		{"LiveDisabled", "0", "xterm", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("BENCH_LIVE", tc.live)
			t.Setenv("TERM", tc.term)
			if got := detectANSISupport(); got != tc.want {
				t.Fatalf("detectANSISupport() = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestColorRate checks the rate coloring thresholds.
func TestColorRate(t *testing.T) {
	colorOn.Store(true)
	cases := []struct {
		name string
		rate float64
		want string
	}{
		{"Hot", 2e6, ansiBold + ansiGreen + "x" + ansiReset},
		{"Warm", 5e4, ansiCyan + "x" + ansiReset},
		{"Cold", 10, ansiYellow + "x" + ansiReset},
		{"Zero", 0, "x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := colorRate(tc.rate, "x"); got != tc.want {
				t.Fatalf("colorRate(%v) = %q, want %q", tc.rate, got, tc.want)
			}
		})
	}

	colorOn.Store(false)
	if got := colorRate(2e6, "x"); got != "x" {
		t.Fatalf("expected plain text with colors off, got %q", got)
	}
}
