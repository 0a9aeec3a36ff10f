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
	"cmp"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectFunc(t *testing.T) {
	testCases := []struct {
		name     string
		arr      []int
		rank     int
		expected int
	}{
		{name: "median", arr: []int{3, 1, 4, 1, 5, 9, 2, 6}, rank: 4, expected: 4},
		{name: "minimum", arr: []int{3, 1, 4, 1, 5, 9, 2, 6}, rank: 0, expected: 1},
		{name: "maximum", arr: []int{3, 1, 4, 1, 5, 9, 2, 6}, rank: 7, expected: 9},
		{name: "single element", arr: []int{42}, rank: 0, expected: 42},
		{name: "two elements first", arr: []int{5, 3}, rank: 0, expected: 3},
		{name: "two elements second", arr: []int{5, 3}, rank: 1, expected: 5},
		{name: "already sorted", arr: []int{1, 2, 3, 4, 5}, rank: 2, expected: 3},
		{name: "reverse sorted", arr: []int{5, 4, 3, 2, 1}, rank: 1, expected: 2},
		{name: "duplicates", arr: []int{3, 3, 3, 3, 3}, rank: 2, expected: 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			arrCopy := slices.Clone(tc.arr)
			result := SelectFunc(arrCopy, tc.rank, cmp.Compare[int])
			assert.Equal(t, tc.expected, result)
			assert.ElementsMatch(t, tc.arr, arrCopy)
		})
	}
}

func TestSelectFuncDescendingComparator(t *testing.T) {
	arr := []float64{3.14, 1.41, 2.71, 0.57, 1.61}
	desc := func(a, b float64) int { return cmp.Compare(b, a) }
	assert.Equal(t, 3.14, SelectFunc(slices.Clone(arr), 0, desc))
	assert.Equal(t, 1.61, SelectFunc(slices.Clone(arr), 2, desc))
	assert.Equal(t, 0.57, SelectFunc(slices.Clone(arr), 4, desc))
}

func TestSelectFuncMatchesSort(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 1; n < 200; n += 13 {
		arr := make([]int, n)
		for i := range arr {
			arr[i] = rng.Intn(50)
		}
		sorted := slices.Clone(arr)
		slices.Sort(sorted)
		for rank := 0; rank < n; rank++ {
			assert.Equal(t, sorted[rank], SelectFunc(slices.Clone(arr), rank, cmp.Compare[int]))
		}
	}
}
