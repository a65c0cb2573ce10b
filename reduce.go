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

// Number constrains the element types the typed reduction barriers operate
// on.
type Number interface {
	~int32 | ~int64 | ~float32 | ~float64
}

// Op is a binary reduction operator. Reduction barriers fold all parties'
// contributions pairwise through an Op; the operator should be associative
// and commutative for the global result to be independent of arrival timing.
type Op[T Number] func(a, b T) T

// Min returns the smaller of a and b, preferring a on ties.
func Min[T Number](a, b T) T {
	if b < a {
		return b
	}
	return a
}

// Max returns the larger of a and b, preferring a on ties.
func Max[T Number](a, b T) T {
	if b > a {
		return b
	}
	return a
}

// Sum returns a + b.
func Sum[T Number](a, b T) T {
	return a + b
}

// paddedValue is a per-party contribution slot spaced a cache line apart from
// its neighbors. The slot is written before the party's releasing flag store
// and read only after the matching acquire spin, so a plain field suffices.
type paddedValue[T Number] struct {
	v T
	_ [120]byte
}
