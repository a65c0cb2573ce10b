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

// Butterfly is a butterfly barrier for a power-of-two number of parties. It
// has the same episode structure as Dissemination but the round-r partner is
// symmetric: party i exchanges with party i XOR 2^r, so signal and wait go to
// the same peer.
type Butterfly struct {
	parties  int
	rounds   int
	action   func()
	reductor GenericReductor

	members []bflyMember
	flagOut atomic.Bool
}

type bflyMember struct {
	sense    bool
	parity   int
	outSense bool

	flags   [2][]spinFlag
	partner []int
	_       [64]byte
}

// NewButterfly creates a butterfly barrier. parties must be a power of two.
func NewButterfly(parties int) (*Butterfly, error) {
	return NewButterflyWithOptions(parties, Options{})
}

// NewButterflyWithOptions creates a butterfly barrier with an optional action
// and generic reductor. The action, if set, is run by party 0 once per
// episode as soon as party 0 has finished its own rounds, by which point every
// party has arrived; other parties may still be completing their last round.
// The other parties are held until the action completes.
func NewButterflyWithOptions(parties int, opts Options) (*Butterfly, error) {
	if err := validateParties("butterfly", parties, true); err != nil {
		return nil, err
	}
	b := &Butterfly{
		parties:  parties,
		rounds:   log2Ceil(parties),
		action:   opts.Action,
		reductor: opts.Reductor,
		members:  make([]bflyMember, parties),
	}
	for i := range b.members {
		m := &b.members[i]
		m.sense = true
		m.outSense = true
		m.flags[0] = make([]spinFlag, b.rounds)
		m.flags[1] = make([]spinFlag, b.rounds)
		m.partner = make([]int, b.rounds)
		for r := 0; r < b.rounds; r++ {
			m.partner[r] = i ^ powerOfTwo(r)
		}
	}
	return b, nil
}

// Await blocks the calling party until all parties of the current episode
// have arrived.
func (b *Butterfly) Await(id int) {
	m := &b.members[id]
	p := m.parity
	for r := 0; r < b.rounds; r++ {
		b.members[m.partner[r]].flags[p][r].v.Store(m.sense)
		spinUntil(&m.flags[p][r].v, m.sense)
		if b.reductor != nil {
			b.reductor(id, m.partner[r])
		}
	}
	if p == 1 {
		m.sense = !m.sense
	}
	m.parity = 1 - p
	if b.action != nil {
		if id == 0 {
			b.action()
			b.flagOut.Store(m.outSense)
		} else {
			spinUntil(&b.flagOut, m.outSense)
		}
		m.outSense = !m.outSense
	}
}

// ButterflyReduction is a butterfly barrier that folds one typed value per
// party. Every party computes the complete fold locally.
//
// After round r party i's accumulator covers the 2^(r+1)-party block of ids
// that agree with i above bit r, folded as op(own accumulator, partner
// accumulator).
type ButterflyReduction[T Number] struct {
	parties int
	rounds  int
	op      Op[T]
	action  func()

	members []bflyRedMember[T]
	flagOut atomic.Bool
}

type bflyRedMember[T Number] struct {
	sense    bool
	parity   int
	outSense bool

	flags   [2][]spinFlag
	values  [2][]T
	partner []int
	_       [64]byte
}

// NewButterflyReduction creates a butterfly reduction barrier folding with
// op. parties must be a power of two.
func NewButterflyReduction[T Number](parties int, op Op[T]) (*ButterflyReduction[T], error) {
	return NewButterflyReductionWithAction(parties, op, nil)
}

// NewButterflyReductionWithAction creates a butterfly reduction barrier that
// also runs action once per episode, by party 0, before any party is
// released.
func NewButterflyReductionWithAction[T Number](parties int, op Op[T], action func()) (*ButterflyReduction[T], error) {
	if err := validateParties("butterfly", parties, true); err != nil {
		return nil, err
	}
	rounds := log2Ceil(parties)
	b := &ButterflyReduction[T]{
		parties: parties,
		rounds:  rounds,
		op:      op,
		action:  action,
		members: make([]bflyRedMember[T], parties),
	}
	for i := range b.members {
		m := &b.members[i]
		m.sense = true
		m.outSense = true
		m.flags[0] = make([]spinFlag, rounds)
		m.flags[1] = make([]spinFlag, rounds)
		m.values[0] = make([]T, rounds+1)
		m.values[1] = make([]T, rounds+1)
		m.partner = make([]int, rounds)
		for r := 0; r < rounds; r++ {
			m.partner[r] = i ^ powerOfTwo(r)
		}
	}
	return b, nil
}

// Await deposits the party's contribution, rendezvouses, and returns the fold
// of all parties' contributions for this episode.
func (b *ButterflyReduction[T]) Await(id int, value T) T {
	m := &b.members[id]
	p := m.parity
	m.values[p][0] = value
	for r := 0; r < b.rounds; r++ {
		pt := &b.members[m.partner[r]]
		pt.flags[p][r].v.Store(m.sense)
		spinUntil(&m.flags[p][r].v, m.sense)
		m.values[p][r+1] = b.op(m.values[p][r], pt.values[p][r])
	}
	result := m.values[p][b.rounds]
	if p == 1 {
		m.sense = !m.sense
	}
	m.parity = 1 - p
	if b.action != nil {
		if id == 0 {
			b.action()
			b.flagOut.Store(m.outSense)
		} else {
			spinUntil(&b.flagOut, m.outSense)
		}
		m.outSense = !m.outSense
	}
	return result
}
