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

// Package core provides the core business logic for the barrier benchmark
// service: building a barrier from a run configuration, driving a fixed set
// of worker goroutines through a number of episodes, and reporting the
// outcome.
package core

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"barrier"
	"barrier/internal/bench/telemetry/episodes"
)

// Algorithm names accepted in a Config.
const (
	AlgorithmCentral       = "central"
	AlgorithmDissemination = "dissemination"
	AlgorithmButterfly     = "butterfly"
	AlgorithmTournament    = "tournament"
	AlgorithmStaticTree    = "statictree"
)

// Algorithms lists every supported algorithm name, in sweep order.
var Algorithms = []string{
	AlgorithmCentral,
	AlgorithmDissemination,
	AlgorithmButterfly,
	AlgorithmTournament,
	AlgorithmStaticTree,
}

// Config selects the algorithm and workload shape for one run.
//
// Reduction switches the run from the plain rendezvous to the int64 Sum
// reduction overlay, in which every party contributes id+1 and verifies the
// returned fold each episode. PinThreads locks each worker goroutine to an OS
// thread for the duration of the run.
type Config struct {
	Algorithm  string `json:"algorithm"`
	Parties    int    `json:"parties"`
	Episodes   int    `json:"episodes"`
	Reduction  bool   `json:"reduction"`
	PinThreads bool   `json:"pin_threads"`
}

// Validate checks the config against the construction rules of the selected
// algorithm.
func (c Config) Validate() error {
	if c.Parties < 2 {
		return fmt.Errorf("bench: parties must be at least 2, got %d", c.Parties)
	}
	if c.Episodes < 1 {
		return fmt.Errorf("bench: episodes must be at least 1, got %d", c.Episodes)
	}
	switch c.Algorithm {
	case AlgorithmCentral, AlgorithmTournament:
	case AlgorithmDissemination, AlgorithmButterfly, AlgorithmStaticTree:
		if c.Parties&(c.Parties-1) != 0 {
			return fmt.Errorf("bench: algorithm %q requires a power-of-two party count, got %d", c.Algorithm, c.Parties)
		}
	default:
		return fmt.Errorf("bench: unknown algorithm %q", c.Algorithm)
	}
	return nil
}

// Report is the outcome of a completed run.
type Report struct {
	RunID          string  `json:"run_id"`
	Config         Config  `json:"config"`
	StartedAt      string  `json:"started_at"`
	FinishedAt     string  `json:"finished_at"`
	WallNanos      int64   `json:"wall_nanos"`
	EpisodesDone   int     `json:"episodes_done"`
	EpisodesPerSec float64 `json:"episodes_per_sec"`
	Actions        int64   `json:"actions"`
	CheckFailures  int64   `json:"check_failures"`
	Cancelled      bool    `json:"cancelled"`
}

// Runner drives one configured run to completion.
type Runner struct {
	cfg Config
}

// NewRunner validates the config and returns a runner for it.
func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg}, nil
}

// Run launches the worker goroutines and blocks until the configured number
// of episodes has completed or ctx is cancelled. Cancellation is observed at
// episode boundaries through the barrier action, so all workers stop at the
// same episode and nobody is left spinning.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	cfg := r.cfg

	actions := int64(0)
	stopped := false
	done := 0
	var lastTrip time.Time
	action := func() {
		actions++
		done++
		if episodes.Enabled() {
			now := time.Now()
			if !lastTrip.IsZero() {
				episodes.ObserveEpisode(now.Sub(lastTrip))
			} else {
				episodes.ObserveEpisode(0)
			}
			lastTrip = now
			episodes.ObserveAction()
		}
		if ctx.Err() != nil || done >= cfg.Episodes {
			stopped = true
		}
	}

	await, err := buildAwait(cfg, action)
	if err != nil {
		return Report{}, err
	}

	started := time.Now()
	var checkFailures int64
	var failMu sync.Mutex
	want := int64(cfg.Parties) * int64(cfg.Parties+1) / 2

	var wg sync.WaitGroup
	wg.Add(cfg.Parties)
	for i := 0; i < cfg.Parties; i++ {
		go func(id int) {
			defer wg.Done()
			if cfg.PinThreads {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
			}
			fails := int64(0)
			for {
				got := await(id)
				if cfg.Reduction && got != want {
					fails++
				}
				if stopped {
					break
				}
			}
			if fails > 0 {
				failMu.Lock()
				checkFailures += fails
				failMu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	wall := time.Since(started)

	RecordEpisodes(int64(done))
	RecordActions(actions)
	RecordRun()

	report := Report{
		RunID:          fmt.Sprintf("%s-p%d-e%d-%d", cfg.Algorithm, cfg.Parties, cfg.Episodes, started.UnixNano()),
		Config:         cfg,
		StartedAt:      started.UTC().Format(time.RFC3339Nano),
		FinishedAt:     started.Add(wall).UTC().Format(time.RFC3339Nano),
		WallNanos:      wall.Nanoseconds(),
		EpisodesDone:   done,
		EpisodesPerSec: float64(done) / wall.Seconds(),
		Actions:        actions,
		CheckFailures:  checkFailures,
		Cancelled:      ctx.Err() != nil,
	}
	episodes.ObserveRun(cfg.Algorithm, cfg.Parties, done, report.EpisodesPerSec)
	return report, ctx.Err()
}

// buildAwait constructs the configured barrier and wraps it behind a uniform
// per-party call. For reduction runs the party contributes id+1 and the
// returned value is the episode's fold; for plain runs the return value is
// always zero.
func buildAwait(cfg Config, action func()) (func(id int) int64, error) {
	if cfg.Reduction {
		switch cfg.Algorithm {
		case AlgorithmCentral:
			b, err := barrier.NewCentralReductionWithAction[int64](cfg.Parties, barrier.Sum, action)
			if err != nil {
				return nil, err
			}
			return func(id int) int64 { return b.Await(id, int64(id+1)) }, nil
		case AlgorithmDissemination:
			b, err := barrier.NewDisseminationReductionWithAction[int64](cfg.Parties, barrier.Sum, action)
			if err != nil {
				return nil, err
			}
			return func(id int) int64 { return b.Await(id, int64(id+1)) }, nil
		case AlgorithmButterfly:
			b, err := barrier.NewButterflyReductionWithAction[int64](cfg.Parties, barrier.Sum, action)
			if err != nil {
				return nil, err
			}
			return func(id int) int64 { return b.Await(id, int64(id+1)) }, nil
		case AlgorithmTournament:
			b, err := barrier.NewTournamentReductionWithAction[int64](cfg.Parties, barrier.Sum, action)
			if err != nil {
				return nil, err
			}
			return func(id int) int64 { return b.Await(id, int64(id+1)) }, nil
		case AlgorithmStaticTree:
			b, err := barrier.NewStaticTreeReductionWithAction[int64](cfg.Parties, barrier.Sum, action)
			if err != nil {
				return nil, err
			}
			return func(id int) int64 { return b.Await(id, int64(id+1)) }, nil
		}
		return nil, fmt.Errorf("bench: unknown algorithm %q", cfg.Algorithm)
	}

	var b barrier.Barrier
	var err error
	opts := barrier.Options{Action: action}
	switch cfg.Algorithm {
	case AlgorithmCentral:
		b, err = barrier.NewCentralWithOptions(cfg.Parties, opts)
	case AlgorithmDissemination:
		b, err = barrier.NewDisseminationWithOptions(cfg.Parties, opts)
	case AlgorithmButterfly:
		b, err = barrier.NewButterflyWithOptions(cfg.Parties, opts)
	case AlgorithmTournament:
		b, err = barrier.NewTournamentWithOptions(cfg.Parties, opts)
	case AlgorithmStaticTree:
		b, err = barrier.NewStaticTreeWithOptions(cfg.Parties, opts)
	default:
		return nil, fmt.Errorf("bench: unknown algorithm %q", cfg.Algorithm)
	}
	if err != nil {
		return nil, err
	}
	return func(id int) int64 { b.Await(id); return 0 }, nil
}
