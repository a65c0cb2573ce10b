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

import "sync/atomic"

// Central is a sense-reversing central counter barrier. Every party
// increments a shared counter; the last arrival resets it, runs the optional
// reduction and action, and flips a shared go flag that releases the rest.
//
// The counter is a single contended word, so Central is the simplest
// algorithm but also the one whose episode latency grows fastest with the
// party count.
type Central struct {
	parties  int
	action   func()
	reductor GenericReductor

	counter atomic.Int64
	_       [120]byte
	goFlag  atomic.Bool
}

// NewCentral creates a central barrier for the given number of parties.
func NewCentral(parties int) (*Central, error) {
	return NewCentralWithOptions(parties, Options{})
}

// NewCentralWithOptions creates a central barrier with an optional action and
// generic reductor.
func NewCentralWithOptions(parties int, opts Options) (*Central, error) {
	if err := validateParties("central", parties, false); err != nil {
		return nil, err
	}
	return &Central{
		parties:  parties,
		action:   opts.Action,
		reductor: opts.Reductor,
	}, nil
}

// Await blocks the calling party until all parties of the current episode
// have arrived. The last arrival folds the generic reduction (if any) with
// party 0 as the accumulator, runs the action (if any), and releases
// everyone.
func (b *Central) Await(id int) {
	local := b.goFlag.Load()
	if b.counter.Add(1) == int64(b.parties) {
		b.counter.Store(0)
		if b.reductor != nil {
			for i := 1; i < b.parties; i++ {
				b.reductor(0, i)
			}
		}
		if b.action != nil {
			b.action()
		}
		b.goFlag.Store(!local)
	} else {
		spinUntil(&b.goFlag, !local)
	}
}

// CentralReduction is a central barrier that additionally folds one typed
// value per party into a global result returned to every party.
type CentralReduction[T Number] struct {
	parties int
	op      Op[T]
	action  func()

	values []paddedValue[T]
	result T

	counter atomic.Int64
	_       [120]byte
	goFlag  atomic.Bool
}

// NewCentralReduction creates a central reduction barrier folding with op.
func NewCentralReduction[T Number](parties int, op Op[T]) (*CentralReduction[T], error) {
	return NewCentralReductionWithAction(parties, op, nil)
}

// NewCentralReductionWithAction creates a central reduction barrier that also
// runs action once per episode, after the fold and before the release.
func NewCentralReductionWithAction[T Number](parties int, op Op[T], action func()) (*CentralReduction[T], error) {
	if err := validateParties("central", parties, false); err != nil {
		return nil, err
	}
	return &CentralReduction[T]{
		parties: parties,
		op:      op,
		action:  action,
		values:  make([]paddedValue[T], parties),
	}, nil
}

// Await deposits the party's contribution, rendezvouses, and returns the fold
// of all parties' contributions for this episode. The last arrival folds the
// slots in ascending id order.
func (b *CentralReduction[T]) Await(id int, value T) T {
	b.values[id].v = value
	local := b.goFlag.Load()
	if b.counter.Add(1) == int64(b.parties) {
		b.counter.Store(0)
		acc := b.values[0].v
		for i := 1; i < b.parties; i++ {
			acc = b.op(acc, b.values[i].v)
		}
		b.result = acc
		if b.action != nil {
			b.action()
		}
		b.goFlag.Store(!local)
	} else {
		spinUntil(&b.goFlag, !local)
	}
	return b.result
}
