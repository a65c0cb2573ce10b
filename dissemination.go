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

// Dissemination is a dissemination barrier for a power-of-two number of
// parties. Each episode runs log2(N) rounds; in round r party i signals
// party (i+2^r) mod N and waits for a signal from party (i-2^r) mod N. After
// the last round every party has transitively heard from every other party.
//
// Flags are double-banked: consecutive episodes alternate between two flag
// banks so that a party may race ahead into the next episode without
// clobbering flags a slow peer still spins on. The spin sense toggles every
// second episode, when a bank is about to be reused.
type Dissemination struct {
	parties  int
	rounds   int
	action   func()
	reductor GenericReductor

	members []dissMember
	flagOut atomic.Bool
}

type dissMember struct {
	sense    bool
	parity   int
	outSense bool

	// flags[parity][round] is written by the in-partner for that round.
	flags [2][]spinFlag
	out   []int
	in    []int
	_     [64]byte
}

// NewDissemination creates a dissemination barrier. parties must be a power
// of two.
func NewDissemination(parties int) (*Dissemination, error) {
	return NewDisseminationWithOptions(parties, Options{})
}

// NewDisseminationWithOptions creates a dissemination barrier with an
// optional action and generic reductor. The action, if set, is run by party 0
// once per episode as soon as party 0 has finished its own rounds, by which
// point every party has arrived; other parties may still be completing their
// last round. The other parties are held until the action completes.
func NewDisseminationWithOptions(parties int, opts Options) (*Dissemination, error) {
	if err := validateParties("dissemination", parties, true); err != nil {
		return nil, err
	}
	b := &Dissemination{
		parties:  parties,
		rounds:   log2Ceil(parties),
		action:   opts.Action,
		reductor: opts.Reductor,
		members:  make([]dissMember, parties),
	}
	for i := range b.members {
		initDissMember(&b.members[i], i, parties, b.rounds)
	}
	return b, nil
}

func initDissMember(m *dissMember, id, parties, rounds int) {
	m.sense = true
	m.outSense = true
	m.flags[0] = make([]spinFlag, rounds)
	m.flags[1] = make([]spinFlag, rounds)
	m.out = make([]int, rounds)
	m.in = make([]int, rounds)
	for r := 0; r < rounds; r++ {
		d := powerOfTwo(r)
		m.out[r] = (id + d) % parties
		m.in[r] = (id - d + parties) % parties
	}
}

// Await blocks the calling party until all parties of the current episode
// have arrived.
func (b *Dissemination) Await(id int) {
	m := &b.members[id]
	p := m.parity
	for r := 0; r < b.rounds; r++ {
		b.members[m.out[r]].flags[p][r].v.Store(m.sense)
		spinUntil(&m.flags[p][r].v, m.sense)
		if b.reductor != nil {
			b.reductor(id, m.in[r])
		}
	}
	if p == 1 {
		m.sense = !m.sense
	}
	m.parity = 1 - p
	if b.action != nil {
		b.awaitAction(id, m)
	}
}

// awaitAction funnels the episode through party 0, which runs the action and
// then releases everyone over the shared out flag.
func (b *Dissemination) awaitAction(id int, m *dissMember) {
	if id == 0 {
		b.action()
		b.flagOut.Store(m.outSense)
	} else {
		spinUntil(&b.flagOut, m.outSense)
	}
	m.outSense = !m.outSense
}

// DisseminationReduction is a dissemination barrier that folds one typed
// value per party. Every party computes the complete fold locally, so the
// result is returned without a publishing step.
//
// At party i the fold after round r covers the 2^(r+1) parties ending at i in
// id-ring order, combined as op(own accumulator, incoming accumulator).
type DisseminationReduction[T Number] struct {
	parties int
	rounds  int
	op      Op[T]
	action  func()

	members []dissRedMember[T]
	flagOut atomic.Bool
}

type dissRedMember[T Number] struct {
	sense    bool
	parity   int
	outSense bool

	flags [2][]spinFlag
	// values[parity][r] is this party's accumulator entering round r; the
	// slot is read by the out-partner of round r after the matching flag
	// store, never concurrently with its write.
	values [2][]T
	out    []int
	in     []int
	_      [64]byte
}

// NewDisseminationReduction creates a dissemination reduction barrier
// folding with op. parties must be a power of two.
func NewDisseminationReduction[T Number](parties int, op Op[T]) (*DisseminationReduction[T], error) {
	return NewDisseminationReductionWithAction(parties, op, nil)
}

// NewDisseminationReductionWithAction creates a dissemination reduction
// barrier that also runs action once per episode, by party 0, before any
// party is released.
func NewDisseminationReductionWithAction[T Number](parties int, op Op[T], action func()) (*DisseminationReduction[T], error) {
	if err := validateParties("dissemination", parties, true); err != nil {
		return nil, err
	}
	rounds := log2Ceil(parties)
	b := &DisseminationReduction[T]{
		parties: parties,
		rounds:  rounds,
		op:      op,
		action:  action,
		members: make([]dissRedMember[T], parties),
	}
	for i := range b.members {
		m := &b.members[i]
		m.sense = true
		m.outSense = true
		m.flags[0] = make([]spinFlag, rounds)
		m.flags[1] = make([]spinFlag, rounds)
		m.values[0] = make([]T, rounds+1)
		m.values[1] = make([]T, rounds+1)
		m.out = make([]int, rounds)
		m.in = make([]int, rounds)
		for r := 0; r < rounds; r++ {
			d := powerOfTwo(r)
			m.out[r] = (i + d) % parties
			m.in[r] = (i - d + parties) % parties
		}
	}
	return b, nil
}

// Await deposits the party's contribution, rendezvouses, and returns the fold
// of all parties' contributions for this episode.
func (b *DisseminationReduction[T]) Await(id int, value T) T {
	m := &b.members[id]
	p := m.parity
	m.values[p][0] = value
	for r := 0; r < b.rounds; r++ {
		b.members[m.out[r]].flags[p][r].v.Store(m.sense)
		spinUntil(&m.flags[p][r].v, m.sense)
		m.values[p][r+1] = b.op(m.values[p][r], b.members[m.in[r]].values[p][r])
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
