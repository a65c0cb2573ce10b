package benchmarks

import (
	"sync"
	"sync/atomic"
	"testing"

	"barrier"
)

// Stress-style checks that back the micro-benchmarks: the numbers above are
// only meaningful if every variant actually synchronizes.

// runLockstep drives parties goroutines through episodes and fails if any
// goroutine observes a peer more than one episode away at a rendezvous.
func runLockstep(t *testing.T, parties, episodes int, bar awaiter) {
	t.Helper()
	phases := make([]atomic.Int64, parties)
	var bad atomic.Int64

	var wg sync.WaitGroup
	wg.Add(parties)
	for id := 0; id < parties; id++ {
		go func(id int) {
			defer wg.Done()
			for e := 0; e < episodes; e++ {
				phases[id].Store(int64(e))
				bar.Await(id)
				for peer := 0; peer < parties; peer++ {
					p := phases[peer].Load()
					if p < int64(e) || p > int64(e+1) {
						bad.Add(1)
					}
				}
				bar.Await(id)
			}
		}(id)
	}
	wg.Wait()

	if n := bad.Load(); n != 0 {
		t.Fatalf("%d lockstep violations across %d episodes", n, episodes)
	}
}

// TestLockstep_SpinBarriers runs the lockstep check on every spin algorithm.
func TestLockstep_SpinBarriers(t *testing.T) {
	const episodes = 2000
	cases := []struct {
		name    string
		parties int
		build   func(p int) (awaiter, error)
	}{
		{"Central", 8, func(p int) (awaiter, error) { return barrier.NewCentral(p) }},
		{"CentralOdd", 5, func(p int) (awaiter, error) { return barrier.NewCentral(p) }},
		{"Dissemination", 8, func(p int) (awaiter, error) { return barrier.NewDissemination(p) }},
		{"Butterfly", 8, func(p int) (awaiter, error) { return barrier.NewButterfly(p) }},
		{"Tournament", 8, func(p int) (awaiter, error) { return barrier.NewTournament(p) }},
		{"TournamentOdd", 7, func(p int) (awaiter, error) { return barrier.NewTournament(p) }},
		{"StaticTree", 8, func(p int) (awaiter, error) { return barrier.NewStaticTree(p) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bar, err := tc.build(tc.parties)
			if err != nil {
				t.Fatal(err)
			}
			runLockstep(t, tc.parties, episodes, bar)
		})
	}
}

// TestLockstep_Baselines runs the same check on the comparison barriers so a
// regression there doesn't silently skew the A/B numbers.
func TestLockstep_Baselines(t *testing.T) {
	const episodes = 1000
	t.Run("Cond", func(t *testing.T) {
		runLockstep(t, 8, episodes, NewCondBarrier(8))
	})
	t.Run("Channel", func(t *testing.T) {
		runLockstep(t, 8, episodes, NewChannelBarrier(8))
	})
}

// TestReduction_StressSum hammers the sum overlay on every algorithm and
// verifies the fold every episode.
func TestReduction_StressSum(t *testing.T) {
	const episodes = 2000
	builders := []struct {
		name    string
		parties int
		build   func(p int) (interface{ Await(id int, v int64) int64 }, error)
	}{
		{"Central", 8, func(p int) (interface{ Await(id int, v int64) int64 }, error) {
			return barrier.NewCentralReduction[int64](p, barrier.Sum)
		}},
		{"Dissemination", 8, func(p int) (interface{ Await(id int, v int64) int64 }, error) {
			return barrier.NewDisseminationReduction[int64](p, barrier.Sum)
		}},
		{"Butterfly", 8, func(p int) (interface{ Await(id int, v int64) int64 }, error) {
			return barrier.NewButterflyReduction[int64](p, barrier.Sum)
		}},
		{"Tournament", 5, func(p int) (interface{ Await(id int, v int64) int64 }, error) {
			return barrier.NewTournamentReduction[int64](p, barrier.Sum)
		}},
		{"StaticTree", 8, func(p int) (interface{ Await(id int, v int64) int64 }, error) {
			return barrier.NewStaticTreeReduction[int64](p, barrier.Sum)
		}},
	}
	for _, tc := range builders {
		t.Run(tc.name, func(t *testing.T) {
			bar, err := tc.build(tc.parties)
			if err != nil {
				t.Fatal(err)
			}
			want := int64(tc.parties) * int64(tc.parties+1) / 2
			var mismatches atomic.Int64
			var wg sync.WaitGroup
			wg.Add(tc.parties)
			for id := 0; id < tc.parties; id++ {
				go func(id int) {
					defer wg.Done()
					for e := 0; e < episodes; e++ {
						if got := bar.Await(id, int64(id+1)); got != want {
							mismatches.Add(1)
						}
					}
				}(id)
			}
			wg.Wait()
			if n := mismatches.Load(); n != 0 {
				t.Fatalf("%d episodes folded to the wrong sum (want %d)", n, want)
			}
		})
	}
}
