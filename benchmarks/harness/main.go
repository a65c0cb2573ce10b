// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"barrier"
)

type variantType string

const (
	variantCentral       variantType = "central"
	variantDissemination variantType = "dissemination"
	variantButterfly     variantType = "butterfly"
	variantTournament    variantType = "tournament"
	variantStaticTree    variantType = "statictree"
	variantCond          variantType = "cond"
	variantChannel       variantType = "channel"
)

// ---- Blocking baselines (local copies so the harness stays self-contained) ----
//
// Both run the episode action in the releasing goroutine before waking the
// others, so the loop-control flag set inside the action is visible to every
// party when its Await returns.

type condBarrier struct {
	parties int
	action  func()
	mu      sync.Mutex
	cond    *sync.Cond
	count   int
	sense   bool
}

func newCondBarrier(parties int, action func()) *condBarrier {
	b := &condBarrier{parties: parties, action: action}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *condBarrier) Await(id int) {
	b.mu.Lock()
	sense := b.sense
	b.count++
	if b.count == b.parties {
		b.count = 0
		if b.action != nil {
			b.action()
		}
		b.sense = !sense
		b.cond.Broadcast()
		b.mu.Unlock()
		return
	}
	for b.sense == sense {
		b.cond.Wait()
	}
	b.mu.Unlock()
}

type channelBarrier struct {
	parties int
	action  func()
	mu      sync.Mutex
	count   int
	release chan struct{}
}

func newChannelBarrier(parties int, action func()) *channelBarrier {
	return &channelBarrier{parties: parties, action: action, release: make(chan struct{})}
}

func (b *channelBarrier) Await(id int) {
	b.mu.Lock()
	release := b.release
	b.count++
	if b.count == b.parties {
		b.count = 0
		if b.action != nil {
			b.action()
		}
		b.release = make(chan struct{})
		b.mu.Unlock()
		close(release)
	} else {
		b.mu.Unlock()
	}
	<-release
}

func buildVariant(v variantType, parties int, reduction bool, action func()) (func(id int), error) {
	if reduction {
		switch v {
		case variantCentral:
			b, err := barrier.NewCentralReductionWithAction[int64](parties, barrier.Sum, action)
			if err != nil {
				return nil, err
			}
			return func(id int) { _ = b.Await(id, int64(id+1)) }, nil
		case variantDissemination:
			b, err := barrier.NewDisseminationReductionWithAction[int64](parties, barrier.Sum, action)
			if err != nil {
				return nil, err
			}
			return func(id int) { _ = b.Await(id, int64(id+1)) }, nil
		case variantButterfly:
			b, err := barrier.NewButterflyReductionWithAction[int64](parties, barrier.Sum, action)
			if err != nil {
				return nil, err
			}
			return func(id int) { _ = b.Await(id, int64(id+1)) }, nil
		case variantTournament:
			b, err := barrier.NewTournamentReductionWithAction[int64](parties, barrier.Sum, action)
			if err != nil {
				return nil, err
			}
			return func(id int) { _ = b.Await(id, int64(id+1)) }, nil
		case variantStaticTree:
			b, err := barrier.NewStaticTreeReductionWithAction[int64](parties, barrier.Sum, action)
			if err != nil {
				return nil, err
			}
			return func(id int) { _ = b.Await(id, int64(id+1)) }, nil
		default:
			return nil, fmt.Errorf("variant %s has no reduction overlay", v)
		}
	}

	opts := barrier.Options{Action: action}
	var (
		b   barrier.Barrier
		err error
	)
	switch v {
	case variantCentral:
		b, err = barrier.NewCentralWithOptions(parties, opts)
	case variantDissemination:
		b, err = barrier.NewDisseminationWithOptions(parties, opts)
	case variantButterfly:
		b, err = barrier.NewButterflyWithOptions(parties, opts)
	case variantTournament:
		b, err = barrier.NewTournamentWithOptions(parties, opts)
	case variantStaticTree:
		b, err = barrier.NewStaticTreeWithOptions(parties, opts)
	case variantCond:
		return newCondBarrier(parties, action).Await, nil
	case variantChannel:
		return newChannelBarrier(parties, action).Await, nil
	default:
		return nil, fmt.Errorf("unknown variant %s", v)
	}
	if err != nil {
		return nil, err
	}
	return b.Await, nil
}

func main() {
	var (
		variantStr = flag.String("variant", "central", "central|dissemination|butterfly|tournament|statictree|cond|channel")
		parties    = flag.Int("parties", 8, "goroutines meeting at the barrier")
		episodes   = flag.Int("episodes", 200_000, "episodes to run (ignored when -duration > 0)")
		duration   = flag.Duration("duration", 0, "run for this duration instead of a fixed -episodes (0 to disable)")
		reduction  = flag.Bool("reduction", false, "use the int64 sum reduction overlay (spin variants only)")
		pinThreads = flag.Bool("pin_threads", false, "lock each worker goroutine to an OS thread")

		pprofOn     = flag.Bool("pprof", false, "enable pprof on localhost:6060")
		sampleEvery = flag.Int("sample_every", 1, "record episode latency every N episodes (1=all)")
		maxSamples  = flag.Int("max_latency_samples", 200_000, "cap on stored latency samples to bound memory; 0 disables recording")
	)
	flag.Parse()

	if *pprofOn {
		go func() { _ = http.ListenAndServe("localhost:6060", nil) }()
	}

	sample := *sampleEvery
	if sample <= 0 {
		sample = 1
	}
	recordLatency := *maxSamples != 0
	var latencies []time.Duration
	if recordLatency {
		latencies = make([]time.Duration, 0, 1<<16)
	}

	durationMode := *duration > 0
	deadline := time.Now().Add(*duration)

	// The action runs exclusively, once per episode, before the release. The
	// stop decision made here is therefore observed by every party in the
	// same episode, so all workers leave the loop together.
	done := 0
	stopped := false
	var lastTrip time.Time
	start := time.Now()
	action := func() {
		done++
		if recordLatency {
			now := time.Now()
			if done%sample == 0 && !lastTrip.IsZero() && (*maxSamples < 0 || len(latencies) < *maxSamples) {
				latencies = append(latencies, now.Sub(lastTrip))
			}
			lastTrip = now
		}
		if durationMode {
			if done%64 == 0 && time.Now().After(deadline) {
				stopped = true
			}
		} else if done >= *episodes {
			stopped = true
		}
	}

	v := variantType(strings.ToLower(*variantStr))
	await, err := buildVariant(v, *parties, *reduction, action)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	start = time.Now()
	var wg sync.WaitGroup
	wg.Add(*parties)
	for i := 0; i < *parties; i++ {
		go func(id int) {
			defer wg.Done()
			if *pinThreads {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
			}
			for {
				await(id)
				if stopped {
					return
				}
			}
		}(i)
	}
	wg.Wait()
	runDur := time.Since(start)

	// stats
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	if *maxSamples > 0 && len(latencies) > *maxSamples {
		latencies = latencies[:*maxSamples]
	}
	var p50, p95, p99 time.Duration
	if len(latencies) > 0 {
		p50 = latencies[(len(latencies)-1)*50/100]
		p95 = latencies[(len(latencies)-1)*95/100]
		p99 = latencies[(len(latencies)-1)*99/100]
	}
	hist := buildLatencyHistogram(latencies)

	latencies = nil
	runtime.GC()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	rate := float64(done) / runDur.Seconds()
	fmt.Printf("Variant: %s  Parties: %d  Episodes: %d  Reduction: %t\n", v, *parties, done, *reduction)
	fmt.Printf("Duration: %s  Episodes/sec: %s\n", runDur.Round(time.Millisecond), humanRate(rate))
	fmt.Printf("Episode p50: %sµs  p95: %sµs  p99: %sµs\n", formatMicros(p50), formatMicros(p95), formatMicros(p99))
	fmt.Println("Episode latency histogram (non-zero buckets):")
	for _, b := range hist {
		fmt.Printf("  %s: %d\n", b.label, b.count)
	}
	fmt.Printf("Memory: Alloc=%s  TotalAlloc=%s  Sys=%s  NumGC=%d\n",
		humanBytes(ms.Alloc), humanBytes(ms.TotalAlloc), humanBytes(ms.Sys), ms.NumGC)

	// Machine-readable one-line summary for scripts
	fmt.Printf("Summary: variant=%s parties=%d episodes=%d duration_ns=%d reduction=%t p50_ns=%d p95_ns=%d p99_ns=%d\n",
		v, *parties, done, runDur.Nanoseconds(), *reduction, int64(p50), int64(p95), int64(p99))
}

// ---- Helpers ----

type histBucket struct {
	label  string
	lo, hi time.Duration
	count  int64
}

func buildLatencyHistogram(durations []time.Duration) []histBucket {
	b := []histBucket{
		{"<100ns", 0, 100 * time.Nanosecond, 0},
		{"100–200ns", 100 * time.Nanosecond, 200 * time.Nanosecond, 0},
		{"200–500ns", 200 * time.Nanosecond, 500 * time.Nanosecond, 0},
		{"0.5–1µs", 500 * time.Nanosecond, 1 * time.Microsecond, 0},
		{"1–2µs", 1 * time.Microsecond, 2 * time.Microsecond, 0},
		{"2–5µs", 2 * time.Microsecond, 5 * time.Microsecond, 0},
		{"5–10µs", 5 * time.Microsecond, 10 * time.Microsecond, 0},
		{"10–20µs", 10 * time.Microsecond, 20 * time.Microsecond, 0},
		{"20–50µs", 20 * time.Microsecond, 50 * time.Microsecond, 0},
		{"50–100µs", 50 * time.Microsecond, 100 * time.Microsecond, 0},
		{"0.1–0.2ms", 100 * time.Microsecond, 200 * time.Microsecond, 0},
		{"0.2–0.5ms", 200 * time.Microsecond, 500 * time.Microsecond, 0},
		{"0.5–1ms", 500 * time.Microsecond, 1 * time.Millisecond, 0},
		{">=1ms", 1 * time.Millisecond, time.Duration(1<<63 - 1), 0},
	}
	for _, d := range durations {
		for i := range b {
			if d >= b[i].lo && d < b[i].hi {
				b[i].count++
				break
			}
		}
	}
	out := make([]histBucket, 0, len(b))
	for _, x := range b {
		if x.count > 0 {
			out = append(out, x)
		}
	}
	return out
}

// formatMicros returns a string with microseconds value using adaptive precision
// to avoid clamped zeros for sub-microsecond durations.
func formatMicros(d time.Duration) string {
	us := float64(d) / 1e3 // d is ns
	if us < 1 {
		return fmt.Sprintf("%.3f", us)
	}
	if us < 100 {
		return fmt.Sprintf("%.1f", us)
	}
	return fmt.Sprintf("%.0f", us)
}

func humanRate(x float64) string {
	if x >= 1_000_000 {
		return fmt.Sprintf("%.1fM", x/1_000_000)
	}
	if x >= 1_000 {
		return fmt.Sprintf("%.1fk", x/1_000)
	}
	return fmt.Sprintf("%.0f", x)
}

func humanBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	d := float64(b)
	units := []string{"KiB", "MiB", "GiB", "TiB"}
	i := 0
	for d >= unit && i < len(units)-1 {
		d /= unit
		i++
	}
	return fmt.Sprintf("%.1f %s", d, units[i])
}
