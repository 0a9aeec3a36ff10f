/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package internal

import (
	"math"

	"golang.org/x/exp/constraints"
)

// CheckBounds reports whether [offset, offset+length) lies inside a buffer of
// the given capacity, without overflowing.
func CheckBounds[T constraints.Integer](offset, length, capacity T) bool {
	var zero T
	if offset < zero || length < zero || capacity < zero {
		return false
	}
	return offset <= capacity && length <= capacity-offset
}

// MulFits reports whether a*b is representable as a non-negative int.
func MulFits[T constraints.Integer](a, b T) bool {
	var zero T
	if a < zero || b < zero {
		return false
	}
	if a == zero || b == zero {
		return true
	}
	return uint64(a) <= uint64(math.MaxInt)/uint64(b)
}

// OrderedBits maps a float64 onto a uint64 whose unsigned order matches the
// numeric order of the input, so deltas between ascending counts stay small.
func OrderedBits(v float64) uint64 {
	b := math.Float64bits(v)
	if b&(1<<63) != 0 {
		return ^b
	}
	return b | (1 << 63)
}

// FromOrderedBits is the inverse of OrderedBits.
func FromOrderedBits(b uint64) float64 {
	if b&(1<<63) != 0 {
		return math.Float64frombits(b &^ (1 << 63))
	}
	return math.Float64frombits(^b)
}

func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
