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

import "math/bits"

// isPowerOfTwo reports whether k is a positive power of two.
func isPowerOfTwo(k int) bool {
	return k > 0 && k&(k-1) == 0
}

// nextHigherPowerOfTwo returns the smallest power of two >= k. For k <= 1 it
// returns 1.
func nextHigherPowerOfTwo(k int) int {
	if k <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(k-1))
}

// powerOfTwo returns 2^n.
func powerOfTwo(n int) int {
	return 1 << n
}

// log2Ceil returns ceil(log2(n)) for n >= 1.
func log2Ceil(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}
