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

// Package main is a small bulk-synchronous demo of the barrier library.
//
// A fixed set of workers iterates a toy computation in lockstep: each step,
// every worker derives a local value, the tournament reduction barrier folds
// the global maximum, and every worker uses that maximum to steer its next
// step. The point is to show the phased pattern: compute locally, meet at the
// barrier, read the fold, repeat.
package main

import (
	"flag"
	"fmt"
	"log"
	"sync"

	"barrier"
)

func main() {
	workers := flag.Int("workers", 4, "Number of worker goroutines (minimum 2)")
	steps := flag.Int("steps", 10, "Number of lockstep iterations")
	flag.Parse()

	b, err := barrier.NewTournamentReduction[int64](*workers, barrier.Max)
	if err != nil {
		log.Fatalf("barrier-demo: %v", err)
	}

	fmt.Printf("barrier-demo: %d workers, %d steps, tournament max reduction\n", *workers, *steps)

	trajectory := make([]int64, *steps)
	var wg sync.WaitGroup
	wg.Add(*workers)
	for i := 0; i < *workers; i++ {
		go func(id int) {
			defer wg.Done()
			// Each worker chases the running maximum: its local value grows
			// by its id each step, seeded from the previous global max.
			local := int64(id + 1)
			for step := 0; step < *steps; step++ {
				local += int64(id)
				max := b.Await(id, local)
				local = max
				if id == 0 {
					trajectory[step] = max
				}
			}
		}(i)
	}
	wg.Wait()

	for step, max := range trajectory {
		fmt.Printf("step %2d: global max = %d\n", step, max)
	}
}
