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

// StaticTree is a static tree barrier for a power-of-two number of parties.
// Arrivals propagate up a fixed binary tree: party i has children 2i+1 and
// 2i+2, parties at or above index (N-1)/2 are leaves, and the root
// additionally adopts party N-1 as a third child. A party signals its own
// flag once its subtree has arrived; the root runs the optional action and
// releases everyone over a shared out flag.
//
// Flags are single-banked with a per-episode sense flip, one flag per party.
type StaticTree struct {
	parties  int
	thresh   int
	action   func()
	reductor GenericReductor

	flags   []spinFlag
	members []treeMember
	flagOut atomic.Bool
}

type treeMember struct {
	sense bool
	_     [127]byte
}

// NewStaticTree creates a static tree barrier. parties must be a power of
// two.
func NewStaticTree(parties int) (*StaticTree, error) {
	return NewStaticTreeWithOptions(parties, Options{})
}

// NewStaticTreeWithOptions creates a static tree barrier with an optional
// action and generic reductor. The action runs at the root, after the whole
// tree has arrived and before any party is released.
func NewStaticTreeWithOptions(parties int, opts Options) (*StaticTree, error) {
	if err := validateParties("static tree", parties, true); err != nil {
		return nil, err
	}
	return &StaticTree{
		parties:  parties,
		thresh:   (parties - 1) / 2,
		action:   opts.Action,
		reductor: opts.Reductor,
		flags:    make([]spinFlag, parties),
		members:  make([]treeMember, parties),
	}, nil
}

// Await blocks the calling party until all parties of the current episode
// have arrived.
func (b *StaticTree) Await(id int) {
	m := &b.members[id]
	m.sense = !m.sense
	s := m.sense
	switch {
	case id == 0:
		spinUntil(&b.flags[1].v, s)
		if b.reductor != nil {
			b.reductor(0, 1)
		}
		if b.parties > 2 {
			spinUntil(&b.flags[2].v, s)
			if b.reductor != nil {
				b.reductor(0, 2)
			}
			spinUntil(&b.flags[b.parties-1].v, s)
			if b.reductor != nil {
				b.reductor(0, b.parties-1)
			}
		}
		if b.action != nil {
			b.action()
		}
		b.flagOut.Store(s)
	case id < b.thresh:
		left, right := 2*id+1, 2*id+2
		spinUntil(&b.flags[left].v, s)
		if b.reductor != nil {
			b.reductor(id, left)
		}
		spinUntil(&b.flags[right].v, s)
		if b.reductor != nil {
			b.reductor(id, right)
		}
		b.flags[id].v.Store(s)
		spinUntil(&b.flagOut, s)
	default:
		b.flags[id].v.Store(s)
		spinUntil(&b.flagOut, s)
	}
}

// StaticTreeReduction is a static tree barrier that folds one typed value
// per party into a global result returned to every party. Interior parties
// fold their children's accumulators into their own before signaling; the
// root folds its children in the order 1, 2, N-1 and publishes the result
// for every valid party count, including N = 2.
type StaticTreeReduction[T Number] struct {
	parties int
	thresh  int
	op      Op[T]
	action  func()

	flags   []spinFlag
	members []treeRedMember[T]
	result  T
	flagOut atomic.Bool
}

type treeRedMember[T Number] struct {
	sense bool
	value paddedValue[T]
	_     [64]byte
}

// NewStaticTreeReduction creates a static tree reduction barrier folding
// with op. parties must be a power of two.
func NewStaticTreeReduction[T Number](parties int, op Op[T]) (*StaticTreeReduction[T], error) {
	return NewStaticTreeReductionWithAction(parties, op, nil)
}

// NewStaticTreeReductionWithAction creates a static tree reduction barrier
// that also runs action at the root once per episode, after the fold and
// before any party is released.
func NewStaticTreeReductionWithAction[T Number](parties int, op Op[T], action func()) (*StaticTreeReduction[T], error) {
	if err := validateParties("static tree", parties, true); err != nil {
		return nil, err
	}
	return &StaticTreeReduction[T]{
		parties: parties,
		thresh:  (parties - 1) / 2,
		op:      op,
		action:  action,
		flags:   make([]spinFlag, parties),
		members: make([]treeRedMember[T], parties),
	}, nil
}

// Await deposits the party's contribution, rendezvouses, and returns the fold
// of all parties' contributions for this episode.
func (b *StaticTreeReduction[T]) Await(id int, value T) T {
	m := &b.members[id]
	m.value.v = value
	m.sense = !m.sense
	s := m.sense
	switch {
	case id == 0:
		acc := value
		spinUntil(&b.flags[1].v, s)
		acc = b.op(acc, b.members[1].value.v)
		if b.parties > 2 {
			spinUntil(&b.flags[2].v, s)
			acc = b.op(acc, b.members[2].value.v)
			spinUntil(&b.flags[b.parties-1].v, s)
			acc = b.op(acc, b.members[b.parties-1].value.v)
		}
		b.result = acc
		if b.action != nil {
			b.action()
		}
		b.flagOut.Store(s)
	case id < b.thresh:
		left, right := 2*id+1, 2*id+2
		spinUntil(&b.flags[left].v, s)
		m.value.v = b.op(m.value.v, b.members[left].value.v)
		spinUntil(&b.flags[right].v, s)
		m.value.v = b.op(m.value.v, b.members[right].value.v)
		b.flags[id].v.Store(s)
		spinUntil(&b.flagOut, s)
	default:
		b.flags[id].v.Store(s)
		spinUntil(&b.flagOut, s)
	}
	return b.result
}
