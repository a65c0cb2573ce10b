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

// tournRole is a party's fixed role in one round of the tournament.
//
// Roles are derived from the party's id within the virtual bracket of
// nextHigherPowerOfTwo(N) slots. A partner id >= N marks a slot with no real
// party behind it; the surviving party holds the wildcard role for that round
// and advances without a rendezvous.
type tournRole uint8

const (
	roleWinner tournRole = iota
	roleLoser
	roleWildcard
	roleRoot
)

// Tournament is a tournament barrier for any number of parties >= 2. Parties
// play a fixed single-elimination bracket: in round r party i meets party
// i XOR 2^r; the party with the lower-order id survives, the other signals
// and waits for the global release. Party 0 wins every round, becomes the
// root, runs the optional action, and releases everyone.
//
// Per-round flags are single-banked; the spin sense flips once per episode at
// entry.
type Tournament struct {
	parties  int
	rounds   int
	action   func()
	reductor GenericReductor

	members []tournMember
	flagOut atomic.Bool
}

type tournMember struct {
	sense bool

	flags   []spinFlag
	roles   []tournRole
	partner []int
	_       [64]byte
}

// NewTournament creates a tournament barrier for the given number of
// parties.
func NewTournament(parties int) (*Tournament, error) {
	return NewTournamentWithOptions(parties, Options{})
}

// NewTournamentWithOptions creates a tournament barrier with an optional
// action and generic reductor. The action runs at the root, after the final
// rendezvous and before any party is released.
func NewTournamentWithOptions(parties int, opts Options) (*Tournament, error) {
	if err := validateParties("tournament", parties, false); err != nil {
		return nil, err
	}
	rounds := log2Ceil(parties)
	b := &Tournament{
		parties:  parties,
		rounds:   rounds,
		action:   opts.Action,
		reductor: opts.Reductor,
		members:  make([]tournMember, parties),
	}
	for i := range b.members {
		m := &b.members[i]
		m.flags = make([]spinFlag, rounds)
		m.roles = make([]tournRole, rounds)
		m.partner = make([]int, rounds)
		for r := 0; r < rounds; r++ {
			assignTournRound(m, i, r, rounds, parties)
		}
	}
	return b, nil
}

func assignTournRound(m *tournMember, id, round, rounds, parties int) {
	pt := id ^ powerOfTwo(round)
	m.partner[round] = pt
	switch {
	case pt >= parties:
		m.roles[round] = roleWildcard
	case id%powerOfTwo(round+1) != 0:
		m.roles[round] = roleLoser
	case id == 0 && round == rounds-1:
		m.roles[round] = roleRoot
	default:
		m.roles[round] = roleWinner
	}
}

// Await blocks the calling party until all parties of the current episode
// have arrived.
func (b *Tournament) Await(id int) {
	m := &b.members[id]
	m.sense = !m.sense
	s := m.sense
	for r := 0; r < b.rounds; r++ {
		switch m.roles[r] {
		case roleWinner:
			spinUntil(&m.flags[r].v, s)
			if b.reductor != nil {
				b.reductor(id, m.partner[r])
			}
		case roleWildcard:
			// no real party behind the partner slot this round
		case roleLoser:
			b.members[m.partner[r]].flags[r].v.Store(s)
			spinUntil(&b.flagOut, s)
			return
		case roleRoot:
			spinUntil(&m.flags[r].v, s)
			if b.reductor != nil {
				b.reductor(id, m.partner[r])
			}
			if b.action != nil {
				b.action()
			}
			b.flagOut.Store(s)
			return
		}
	}
}

// TournamentReduction is a tournament barrier that folds one typed value per
// party into a global result returned to every party. Each surviving party
// folds op(own accumulator, beaten partner's accumulator); the root's final
// fold is the episode result.
type TournamentReduction[T Number] struct {
	parties int
	rounds  int
	op      Op[T]
	action  func()

	members []tournRedMember[T]
	result  T
	flagOut atomic.Bool
}

type tournRedMember[T Number] struct {
	sense bool
	value paddedValue[T]

	flags   []spinFlag
	roles   []tournRole
	partner []int
	_       [64]byte
}

// NewTournamentReduction creates a tournament reduction barrier folding with
// op.
func NewTournamentReduction[T Number](parties int, op Op[T]) (*TournamentReduction[T], error) {
	return NewTournamentReductionWithAction(parties, op, nil)
}

// NewTournamentReductionWithAction creates a tournament reduction barrier
// that also runs action at the root once per episode, after the final fold
// and before any party is released.
func NewTournamentReductionWithAction[T Number](parties int, op Op[T], action func()) (*TournamentReduction[T], error) {
	if err := validateParties("tournament", parties, false); err != nil {
		return nil, err
	}
	rounds := log2Ceil(parties)
	b := &TournamentReduction[T]{
		parties: parties,
		rounds:  rounds,
		op:      op,
		action:  action,
		members: make([]tournRedMember[T], parties),
	}
	for i := range b.members {
		m := &b.members[i]
		m.flags = make([]spinFlag, rounds)
		m.roles = make([]tournRole, rounds)
		m.partner = make([]int, rounds)
		for r := 0; r < rounds; r++ {
			pt := i ^ powerOfTwo(r)
			m.partner[r] = pt
			switch {
			case pt >= parties:
				m.roles[r] = roleWildcard
			case i%powerOfTwo(r+1) != 0:
				m.roles[r] = roleLoser
			case i == 0 && r == rounds-1:
				m.roles[r] = roleRoot
			default:
				m.roles[r] = roleWinner
			}
		}
	}
	return b, nil
}

// Await deposits the party's contribution, rendezvouses, and returns the fold
// of all parties' contributions for this episode.
func (b *TournamentReduction[T]) Await(id int, value T) T {
	m := &b.members[id]
	m.value.v = value
	m.sense = !m.sense
	s := m.sense
	for r := 0; r < b.rounds; r++ {
		switch m.roles[r] {
		case roleWinner:
			spinUntil(&m.flags[r].v, s)
			m.value.v = b.op(m.value.v, b.members[m.partner[r]].value.v)
		case roleWildcard:
			// accumulator carries over unchanged
		case roleLoser:
			b.members[m.partner[r]].flags[r].v.Store(s)
			spinUntil(&b.flagOut, s)
			return b.result
		case roleRoot:
			spinUntil(&m.flags[r].v, s)
			b.result = b.op(m.value.v, b.members[m.partner[r]].value.v)
			if b.action != nil {
				b.action()
			}
			b.flagOut.Store(s)
			return b.result
		}
	}
	return b.result
}
