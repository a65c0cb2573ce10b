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

// Package api implements the control HTTP server for the barrier benchmark
// service. It accepts run requests, drives them through the core runner, and
// returns the finished report as JSON.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"barrier/internal/bench/core"
	"barrier/internal/bench/results"
)

// Server handles the HTTP requests for the benchmark service.
// It serializes runs: the worker goroutines of a run saturate the CPUs, so
// concurrent runs would only corrupt each other's timings.
type Server struct {
	sink        results.Sink
	maxParties  int
	maxEpisodes int

	runMu sync.Mutex
}

// NewServer creates and configures a new control server. sink may be nil, in
// which case finished reports are only returned to the caller. maxParties and
// maxEpisodes bound what a single request may ask for; zero means the
// defaults of 1024 parties and 10M episodes.
func NewServer(sink results.Sink, maxParties, maxEpisodes int) *Server {
	if maxParties <= 0 {
		maxParties = 1024
	}
	if maxEpisodes <= 0 {
		maxEpisodes = 10_000_000
	}
	return &Server{
		sink:        sink,
		maxParties:  maxParties,
		maxEpisodes: maxEpisodes,
	}
}

// RegisterRoutes sets up the HTTP routes for the server on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/algorithms", s.handleAlgorithms)
	mux.HandleFunc("/healthz", s.handleHealthz)
}

// handleRun decodes a run config from the request body, executes the run, and
// writes the report back as JSON. Runs are serialized; a request that arrives
// while another run is in flight waits its turn.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cfg core.Config
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("bad request body: %v", err), http.StatusBadRequest)
		return
	}

	if cfg.Parties > s.maxParties {
		http.Error(w, fmt.Sprintf("parties %d exceeds limit %d", cfg.Parties, s.maxParties), http.StatusBadRequest)
		return
	}
	if cfg.Episodes > s.maxEpisodes {
		http.Error(w, fmt.Sprintf("episodes %d exceeds limit %d", cfg.Episodes, s.maxEpisodes), http.StatusBadRequest)
		return
	}

	runner, err := core.NewRunner(cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.runMu.Lock()
	report, err := runner.Run(r.Context())
	s.runMu.Unlock()
	if err != nil {
		// Client went away mid-run; nothing useful to write.
		return
	}

	if s.sink != nil {
		if perr := s.sink.Publish(r.Context(), report); perr != nil {
			fmt.Printf("results publish failed run=%s: %v\n", report.RunID, perr)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		fmt.Printf("encode report run=%s: %v\n", report.RunID, err)
	}
}

// handleAlgorithms lists the supported algorithm names.
func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]string{"algorithms": core.Algorithms})
}

// handleHealthz is a trivial liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok")
}

// ListenAndServe starts the HTTP server on the specified address.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Minute, // runs can be long
		IdleTimeout:  120 * time.Second,
	}

	fmt.Printf("Barrier bench control server listening on %s\n", addr)
	return httpServer.ListenAndServe()
}
