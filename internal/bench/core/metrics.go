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

// Package core contains shared, process-level metrics counters used for
// the final end-of-process summary. These are kept lightweight and use
// atomic counters to avoid allocation and locks on the hot path.
package core

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	episodesDone atomic.Int64
	actionsRun   atomic.Int64
	runsDone     atomic.Int64

	// knobs holds configuration values captured at startup so the final
	// summary can show the settings the numbers were produced under.
	knobsMu sync.Mutex
	knobs   []knob
)

type knob struct {
	name  string
	value string
}

// RecordEpisodes increments the number of completed episodes.
func RecordEpisodes(n int64) {
	if n > 0 {
		episodesDone.Add(n)
	}
}

// RecordActions increments the number of executed barrier actions.
func RecordActions(n int64) {
	if n > 0 {
		actionsRun.Add(n)
	}
}

// RecordRun increments the number of completed runs.
func RecordRun() {
	runsDone.Add(1)
}

// SetKnob records one named configuration value for the final summary.
// Values are rendered once, at capture time; types with a String method
// (time.Duration and friends) keep their usual form. Setting the same name
// twice keeps the later value.
func SetKnob[T any](name string, value T) {
	rendered := fmt.Sprint(value)
	knobsMu.Lock()
	defer knobsMu.Unlock()
	for i := range knobs {
		if knobs[i].name == name {
			knobs[i].value = rendered
			return
		}
	}
	knobs = append(knobs, knob{name: name, value: rendered})
}

// getEventTotals provides a snapshot of current counters.
func getEventTotals() (episodesN, actionsN, runsN int64) {
	return episodesDone.Load(), actionsRun.Load(), runsDone.Load()
}

// sortedKnobs returns the captured knobs ordered by name.
func sortedKnobs() []knob {
	knobsMu.Lock()
	defer knobsMu.Unlock()
	out := make([]knob, len(knobs))
	copy(out, knobs)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// PrintFinalSummary prints a single end-of-process summary of everything the
// process ran, with the captured configuration knobs in sorted order.
func PrintFinalSummary() {
	episodes, actions, runs := getEventTotals()
	fmt.Println("--- final summary ---")
	fmt.Printf("runs=%d episodes=%d actions=%d\n", runs, episodes, actions)
	for _, k := range sortedKnobs() {
		fmt.Printf("  %s=%s\n", k.name, k.value)
	}
}

// resetMetricsForTests zeroes the counters and clears the knob registry.
func resetMetricsForTests() {
	episodesDone.Store(0)
	actionsRun.Store(0)
	runsDone.Store(0)
	knobsMu.Lock()
	knobs = nil
	knobsMu.Unlock()
}
