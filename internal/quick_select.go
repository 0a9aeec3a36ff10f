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

// SelectFunc returns the element that would sit at index rank if arr were
// sorted with compare. arr is partially reordered in place; callers that need
// the original order must pass a scratch copy.
func SelectFunc[T any](arr []T, rank int, compare func(a, b T) int) T {
	lo := 0
	hi := len(arr) - 1
	for hi > lo {
		medianOfThreeToFront(arr, lo, hi, compare)
		j := partitionFunc(arr, lo, hi, compare)
		switch {
		case j == rank:
			return arr[rank]
		case j > rank:
			hi = j - 1
		default:
			lo = j + 1
		}
	}
	return arr[rank]
}

// medianOfThreeToFront moves the median of arr[lo], arr[mid] and arr[hi] to
// arr[lo], where partitionFunc takes its pivot from. It keeps already sorted
// input from degrading to quadratic time.
func medianOfThreeToFront[T any](arr []T, lo int, hi int, compare func(a, b T) int) {
	mid := lo + (hi-lo)/2
	if compare(arr[mid], arr[lo]) < 0 {
		arr[mid], arr[lo] = arr[lo], arr[mid]
	}
	if compare(arr[hi], arr[lo]) < 0 {
		arr[hi], arr[lo] = arr[lo], arr[hi]
	}
	if compare(arr[hi], arr[mid]) < 0 {
		arr[hi], arr[mid] = arr[mid], arr[hi]
	}
	// arr[lo] <= arr[mid] <= arr[hi]
	arr[lo], arr[mid] = arr[mid], arr[lo]
}

func partitionFunc[T any](arr []T, lo int, hi int, compare func(a, b T) int) int {
	i := lo
	j := hi + 1
	pivot := arr[lo]
	for {
		for compare(arr[i+1], pivot) < 0 {
			i++
			if i == hi {
				break
			}
		}
		i++
		for compare(pivot, arr[j-1]) < 0 {
			j--
			if j == lo {
				break
			}
		}
		j--
		if i >= j {
			break
		}
		arr[i], arr[j] = arr[j], arr[i]
	}
	arr[lo], arr[j] = arr[j], arr[lo]
	return j
}
