package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

// harnessResult holds parsed metrics from the harness output.
type harnessResult struct {
	Variant  string
	Parties  int
	Episodes int64
	Duration time.Duration
	P50us    float64
	P95us    float64
	P99us    float64
}

var (
	reVariant  = regexp.MustCompile(`^Variant:\s+(\w+)\s+Parties:\s+(\d+)\s+Episodes:\s+(\d+)\b`)
	reDuration = regexp.MustCompile(`^Duration:\s+([^\s]+)\s+Episodes/sec:`)
	reLatency  = regexp.MustCompile(`^Episode p50:\s+([0-9.]+)µs\s+p95:\s+([0-9.]+)µs\s+p99:\s+([0-9.]+)µs`)
)

func parseHarnessOutput(out string) (h harnessResult, _ error) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if m := reVariant.FindStringSubmatch(line); m != nil {
			h.Variant = m[1]
			if v, err := strconv.Atoi(m[2]); err == nil {
				h.Parties = v
			}
			if v, err := strconv.ParseInt(m[3], 10, 64); err == nil {
				h.Episodes = v
			}
			continue
		}
		if m := reDuration.FindStringSubmatch(line); m != nil {
			if dur, err := time.ParseDuration(m[1]); err == nil {
				h.Duration = dur
			}
			continue
		}
		if m := reLatency.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				h.P50us = v
			}
			if v, err := strconv.ParseFloat(m[2], 64); err == nil {
				h.P95us = v
			}
			if v, err := strconv.ParseFloat(m[3], 64); err == nil {
				h.P99us = v
			}
			continue
		}
	}
	return h, scanner.Err()
}

// TestParseHarnessOutput checks the regexes against a canned transcript so a
// format drift in main.go breaks here rather than silently zeroing the sweep.
func TestParseHarnessOutput(t *testing.T) {
	out := strings.Join([]string{
		"Variant: tournament  Parties: 8  Episodes: 200000  Reduction: false",
		"Duration: 1.25s  Episodes/sec: 160.0k",
		"Episode p50: 4.1µs  p95: 9.8µs  p99: 15.2µs",
		"Episode latency histogram (non-zero buckets):",
		"  2–5µs: 120000",
		"Memory: Alloc=1.2 MiB  TotalAlloc=3.4 MiB  Sys=12.0 MiB  NumGC=2",
		"Summary: variant=tournament parties=8 episodes=200000 duration_ns=1250000000 reduction=false p50_ns=4100 p95_ns=9800 p99_ns=15200",
	}, "\n")

	h, err := parseHarnessOutput(out)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if h.Variant != "tournament" {
		t.Errorf("variant = %q, want tournament", h.Variant)
	}
	if h.Parties != 8 {
		t.Errorf("parties = %d, want 8", h.Parties)
	}
	if h.Episodes != 200000 {
		t.Errorf("episodes = %d, want 200000", h.Episodes)
	}
	if h.Duration != 1250*time.Millisecond {
		t.Errorf("duration = %v, want 1.25s", h.Duration)
	}
	if h.P50us != 4.1 || h.P95us != 9.8 || h.P99us != 15.2 {
		t.Errorf("latency = %.1f/%.1f/%.1f, want 4.1/9.8/15.2", h.P50us, h.P95us, h.P99us)
	}
}

// runHarness runs `go run .` inside the benchmarks/harness directory (this test's package)
// with the provided args, and returns parsed metrics and raw output.
func runHarness(t *testing.T, args ...string) (harnessResult, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", append([]string{"run", "."}, args...)...)
	// Inherit environment but allow callers to override via env vars
	cmd.Env = os.Environ()
	// Ensure predictable CPU parallelism for repeatability
	if os.Getenv("GOMAXPROCS") == "" {
		cmd.Env = append(cmd.Env, "GOMAXPROCS="+strconv.Itoa(runtime.GOMAXPROCS(0)))
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		t.Fatalf("harness failed: %v\nOutput:\n%s", err, buf.String())
	}
	res, err := parseHarnessOutput(buf.String())
	if err != nil {
		t.Fatalf("parse error: %v\nOutput:\n%s", err, buf.String())
	}
	return res, buf.String()
}

// TestABSweepAgainstBaselines runs every spin variant and both blocking
// baselines for the same wall-clock budget and verifies each spin algorithm
// completes at least as many episodes as the slower of the two baselines.
func TestABSweepAgainstBaselines(t *testing.T) {
	if testing.Short() || os.Getenv("HARNESS_AB") == "" {
		t.Skip("skipping A/B sweep (set HARNESS_AB=1 to run)")
	}

	// Common knobs (tunable via env)
	duration := getenvDefault("HARNESS_DURATION", "250ms")
	parties := getenvDefault("HARNESS_PARTIES", "8")

	baselines := []string{"cond", "channel"}
	spins := []string{"central", "dissemination", "butterfly", "tournament", "statictree"}

	var worstBaseline int64
	for _, v := range baselines {
		res, out := runHarness(t,
			"-variant="+v,
			"-duration="+duration,
			"-parties="+parties,
			"-max_latency_samples=50000",
			"-sample_every=8",
		)
		t.Logf("%s baseline\n%s", v, trimToTail(out, 20))
		if res.Episodes == 0 {
			t.Fatalf("zero episodes reported for baseline %s", v)
		}
		if worstBaseline == 0 || res.Episodes < worstBaseline {
			worstBaseline = res.Episodes
		}
	}

	for _, v := range spins {
		res, out := runHarness(t,
			"-variant="+v,
			"-duration="+duration,
			"-parties="+parties,
			"-max_latency_samples=50000",
			"-sample_every=8",
		)
		t.Logf("%s\n%s", v, trimToTail(out, 20))
		if res.Episodes == 0 {
			t.Fatalf("zero episodes reported for %s", v)
		}
		if res.Duration == 0 {
			t.Fatalf("zero duration parsed for %s", v)
		}
		if res.Episodes < worstBaseline {
			t.Errorf("%s completed %d episodes, below the slowest baseline's %d",
				v, res.Episodes, worstBaseline)
		}
	}
}

// TestReductionSweep runs a small matrix of reduction-enabled variants to
// confirm the harness accepts the overlay knobs and still terminates.
func TestReductionSweep(t *testing.T) {
	if testing.Short() || os.Getenv("HARNESS_TUNE") == "" {
		t.Skip("skipping reduction sweep (set HARNESS_TUNE=1 to run)")
	}
	cases := []struct {
		variant string
		parties string
	}{
		{"central", "5"},
		{"tournament", "8"},
		{"butterfly", "4"},
	}
	for _, c := range cases {
		args := []string{
			"-variant=" + c.variant,
			"-parties=" + c.parties,
			"-duration=200ms",
			"-reduction",
			"-max_latency_samples=20000",
			"-sample_every=8",
		}
		res, out := runHarness(t, args...)
		if res.Episodes == 0 {
			t.Fatalf("no episodes for case %+v\n%s", c, out)
		}
		t.Logf("reduction case %+v: episodes=%d p99=%.1fµs", c, res.Episodes, res.P99us)
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// trimToTail returns the last n lines of s.
func trimToTail(s string, n int) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
