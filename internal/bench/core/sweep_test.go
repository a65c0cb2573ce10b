package core

import (
	"context"
	"testing"
)

// TestMatrix_SkipsInvalidCombinations checks that the cross product drops
// combinations the algorithm rejects while keeping every valid one, in
// algorithm-major order.
func TestMatrix_SkipsInvalidCombinations(t *testing.T) {
	configs := Matrix([]string{AlgorithmCentral, AlgorithmDissemination}, []int{3, 4}, 10, false, false)

	// central accepts 3 and 4; dissemination accepts only 4.
	want := []Config{
		{Algorithm: AlgorithmCentral, Parties: 3, Episodes: 10},
		{Algorithm: AlgorithmCentral, Parties: 4, Episodes: 10},
		{Algorithm: AlgorithmDissemination, Parties: 4, Episodes: 10},
	}
	if len(configs) != len(want) {
		t.Fatalf("expected %d configs, got %d: %+v", len(want), len(configs), configs)
	}
	for i := range want {
		if configs[i] != want[i] {
			t.Fatalf("config %d mismatch: got %+v want %+v", i, configs[i], want[i])
		}
	}
}

// TestMatrix_PropagatesFlags checks that reduction and thread pinning carry
// into every expanded config.
func TestMatrix_PropagatesFlags(t *testing.T) {
	configs := Matrix([]string{AlgorithmTournament}, []int{2, 5}, 7, true, true)
	if len(configs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(configs))
	}
	for _, cfg := range configs {
		if !cfg.Reduction || !cfg.PinThreads || cfg.Episodes != 7 {
			t.Fatalf("flags not propagated: %+v", cfg)
		}
	}
}

// TestSweep_RunsAllConfigs runs a tiny two-config sweep and checks that the
// callback sees each finished report in order.
func TestSweep_RunsAllConfigs(t *testing.T) {
	configs := Matrix([]string{AlgorithmCentral, AlgorithmStaticTree}, []int{2}, 50, false, false)
	if len(configs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(configs))
	}

	var seen []string
	reports, err := Sweep(context.Background(), configs, func(r Report) {
		seen = append(seen, r.Config.Algorithm)
	})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if seen[0] != AlgorithmCentral || seen[1] != AlgorithmStaticTree {
		t.Fatalf("unexpected callback order: %v", seen)
	}
	for _, r := range reports {
		if r.EpisodesDone < 50 {
			t.Fatalf("run %s finished only %d episodes", r.RunID, r.EpisodesDone)
		}
	}
}

// TestSweep_StopsOnCancelledContext checks that a sweep with an already
// cancelled context runs nothing and returns the context error.
func TestSweep_StopsOnCancelledContext(t *testing.T) {
	configs := Matrix(Algorithms, []int{4}, 1000, false, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := Sweep(ctx, configs, nil)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected no reports, got %d", len(reports))
	}
}

// TestSweep_SurfacesBadConfig checks that an invalid config stops the sweep
// with an error, returning the reports finished so far.
func TestSweep_SurfacesBadConfig(t *testing.T) {
	configs := []Config{
		{Algorithm: AlgorithmCentral, Parties: 2, Episodes: 10},
		{Algorithm: "mystery", Parties: 2, Episodes: 10},
	}
	reports, err := Sweep(context.Background(), configs, nil)
	if err == nil {
		t.Fatalf("expected error for unknown algorithm")
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 finished report, got %d", len(reports))
	}
}
