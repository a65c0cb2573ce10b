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

package barrier

import (
	"runtime"
	"sync/atomic"
	_ "unsafe"
)

//go:linkname runtime_canSpin sync.runtime_canSpin
func runtime_canSpin(i int) bool

//go:linkname runtime_doSpin sync.runtime_doSpin
func runtime_doSpin()

// spinFlag is a single boolean rendezvous flag padded out to its own cache
// line so that independent flags never share one.
type spinFlag struct {
	v atomic.Bool
	_ [127]byte
}

// spinUntil busy-waits until f holds want. It spins with CPU relaxation while
// the runtime judges spinning profitable and yields the processor otherwise,
// which keeps oversubscribed environments live. The load that observes the
// flag acquires everything published before the matching store.
func spinUntil(f *atomic.Bool, want bool) {
	iter := 0
	for f.Load() != want {
		if runtime_canSpin(iter) {
			runtime_doSpin()
			iter++
		} else {
			runtime.Gosched()
			iter = 0
		}
	}
}
