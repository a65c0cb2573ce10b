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

// Package main provides the entry point for the barrier benchmark service.
//
// This application is a concrete, runnable demonstration of the core barrier
// library. It sweeps the selected algorithms across a list of party counts,
// measures episode throughput for each combination, and can publish finished
// run reports to Redis, expose Prometheus metrics, and serve a small control
// API for driving runs remotely.
//
// This file is responsible for orchestrating the whole service:
// 1. Parsing the sweep configuration flags.
// 2. Enabling telemetry and the optional results sink.
// 3. Running the sweep (or starting the control server in serve mode).
// 4. Printing a final end-of-process summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"barrier/internal/bench/api"
	"barrier/internal/bench/core"
	"barrier/internal/bench/results"
	"barrier/internal/bench/telemetry/episodes"
)

func main() {
	// --- What this is ---
	// This binary benchmarks five spin-based barrier algorithms (central,
	// dissemination, butterfly, tournament, static tree) by driving a fixed
	// set of goroutines through many synchronization episodes and reporting
	// episodes/second for each configuration.
	//
	// How to try it quickly:
	//   1) Run a sweep in this terminal:
	//        barrier-bench -algorithms=all -parties=2,4,8 -episodes=100000
	//   2) Or start it as a service and drive it over HTTP:
	//        barrier-bench -serve -http_addr=:8080
	//        curl -X POST localhost:8080/run -d '{"algorithm":"tournament","parties":8,"episodes":100000}'

	// 1. Parse configuration flags.
	// - algorithms: comma list of algorithm names, or "all"
	// - parties: comma list of party counts to sweep
	// - episodes: episodes per run; each episode is one full rendezvous
	// - reduction: run the int64 sum reduction overlay instead of the plain rendezvous
	// - pin_threads: lock each worker goroutine to an OS thread
	algorithmsFlag := flag.String("algorithms", "all", "Comma-separated algorithm names (central,dissemination,butterfly,tournament,statictree) or \"all\"")
	partiesFlag := flag.String("parties", "2,4,8", "Comma-separated party counts to sweep")
	episodesN := flag.Int("episodes", 100_000, "Episodes per run")
	reduction := flag.Bool("reduction", false, "Benchmark the int64 sum reduction overlay instead of the plain rendezvous")
	pinThreads := flag.Bool("pin_threads", false, "Lock each worker goroutine to an OS thread")
	timeout := flag.Duration("timeout", 0, "Overall sweep timeout; 0 disables")
	// Service mode
	serve := flag.Bool("serve", false, "Run as a service: serve the control API instead of sweeping")
	httpAddr := flag.String("http_addr", ":8080", "HTTP listen address for the control API (serve mode)")
	// Results sink
	redisAddr := flag.String("redis_addr", "", "If non-empty, publish finished reports to Redis at this address (e.g., 127.0.0.1:6379)")
	redisDemo := flag.Bool("redis_demo", false, "Use the logging demo Redis client instead of a real connection")
	markerTTL := flag.Duration("redis_marker_ttl", 24*time.Hour, "TTL for the idempotent run markers in Redis")
	// Telemetry flags (opt-in)
	benchMetrics := flag.Bool("bench_metrics", false, "Enable in-process episode telemetry (opt-in)")
	metricsAddr := flag.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address (e.g., :9090)")
	logInterval := flag.Duration("bench_log_interval", 5*time.Second, "If > 0, periodically log an episode-rate summary. 0 disables.")
	kpiWindow := flag.Duration("bench_kpi_window", time.Minute, "Rolling window the episodes/second KPI is computed over")
	flag.Parse()

	// Capture configuration for final metrics printing.
	core.SetKnob("algorithms", *algorithmsFlag)
	core.SetKnob("parties", *partiesFlag)
	core.SetKnob("episodes", *episodesN)
	core.SetKnob("reduction", *reduction)
	core.SetKnob("pin_threads", *pinThreads)
	core.SetKnob("serve", *serve)
	if *serve {
		core.SetKnob("http_addr", *httpAddr)
	}
	if *redisAddr != "" || *redisDemo {
		core.SetKnob("redis_addr", *redisAddr)
		core.SetKnob("redis_marker_ttl", *markerTTL)
	}
	// Telemetry knobs
	core.SetKnob("bench_metrics", *benchMetrics)
	core.SetKnob("metrics_addr", *metricsAddr)
	core.SetKnob("bench_log_interval", *logInterval)
	core.SetKnob("bench_kpi_window", *kpiWindow)

	// Initialize episode telemetry (no-op if disabled).
	episodes.Enable(episodes.Config{
		Enabled:     *benchMetrics,
		MetricsAddr: *metricsAddr,
		LogInterval: *logInterval,
		Window:      *kpiWindow,
	})

	// 2. Build the results sink.
	// The demo client lets you see the publish traffic without a real Redis.
	var sink results.Sink
	switch {
	case *redisDemo:
		sink = results.NewRedisSink(results.LoggingRedisEvaler{}, *markerTTL)
	case *redisAddr != "":
		sink = results.NewRedisSink(results.NewGoRedisEvaler(*redisAddr), *markerTTL)
	}

	if *serve {
		runServer(sink, *httpAddr)
		return
	}

	algorithms, err := parseAlgorithms(*algorithmsFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	parties, err := parseParties(*partiesFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	configs := core.Matrix(algorithms, parties, *episodesN, *reduction, *pinThreads)
	if len(configs) == 0 {
		fmt.Fprintln(os.Stderr, "no runnable configurations (check -algorithms and -parties)")
		os.Exit(2)
	}

	// 3. Run the sweep, cancelling on SIGINT/SIGTERM so a long sweep can be
	// cut short and still print what it measured so far.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	onReport := func(r core.Report) {
		fmt.Printf("run %-40s episodes=%d rate=%.0f/s wall=%s\n",
			r.RunID, r.EpisodesDone, r.EpisodesPerSec, time.Duration(r.WallNanos).Truncate(time.Millisecond))
		if sink != nil {
			if err := sink.Publish(ctx, r); err != nil {
				fmt.Printf("results publish failed run=%s: %v\n", r.RunID, err)
			}
		}
	}

	reports, err := core.Sweep(ctx, configs, onReport)
	if err != nil && ctx.Err() == nil {
		log.Fatalf("sweep failed: %v", err)
	}
	if ctx.Err() != nil {
		fmt.Printf("\nsweep interrupted after %d of %d runs\n", len(reports), len(configs))
	}

	// 4. Print a single end-of-process summary.
	core.PrintFinalSummary()
}

// runServer starts the control API and blocks until SIGINT/SIGTERM, then
// shuts the HTTP server down gracefully.
func runServer(sink results.Sink, addr string) {
	apiServer := api.NewServer(sink, 0, 0)

	// Configure the http.Server here in main so shutdown stays graceful.
	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		fmt.Printf("Barrier bench control server listening on %s\n", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", addr, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	core.PrintFinalSummary()
	fmt.Println("Server gracefully stopped.")
}

func parseAlgorithms(s string) ([]string, error) {
	if strings.EqualFold(strings.TrimSpace(s), "all") {
		return core.Algorithms, nil
	}
	known := make(map[string]bool, len(core.Algorithms))
	for _, a := range core.Algorithms {
		known[a] = true
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if !known[name] {
			return nil, fmt.Errorf("unknown algorithm %q (want one of %s)", name, strings.Join(core.Algorithms, ","))
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("-algorithms is empty")
	}
	return out, nil
}

func parseParties(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad party count %q: %w", part, err)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("-parties is empty")
	}
	return out, nil
}
