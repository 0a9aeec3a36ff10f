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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckBounds(t *testing.T) {
	assert.True(t, CheckBounds(0, 8, 8))
	assert.True(t, CheckBounds(8, 0, 8))
	assert.False(t, CheckBounds(1, 8, 8))
	assert.False(t, CheckBounds(-1, 1, 8))
	assert.False(t, CheckBounds(0, -1, 8))
	assert.False(t, CheckBounds(math.MaxInt, math.MaxInt, 8))
	assert.True(t, CheckBounds(int32(4), int32(4), int32(8)))
}

func TestMulFits(t *testing.T) {
	assert.True(t, MulFits(0, math.MaxInt))
	assert.True(t, MulFits(1<<20, 1<<20))
	assert.False(t, MulFits(math.MaxInt, 2))
	assert.False(t, MulFits(-1, 2))
}

func TestOrderedBitsPreservesOrder(t *testing.T) {
	values := []float64{math.Inf(-1), -1e300, -2.5, -1, -math.SmallestNonzeroFloat64, 0, math.SmallestNonzeroFloat64, 1, 2.5, 1e300, math.Inf(1)}
	for i := 1; i < len(values); i++ {
		assert.Less(t, OrderedBits(values[i-1]), OrderedBits(values[i]))
	}
	for _, v := range values {
		assert.Equal(t, v, FromOrderedBits(OrderedBits(v)))
	}
}

func TestBoolToInt(t *testing.T) {
	assert.Equal(t, 1, BoolToInt(true))
	assert.Equal(t, 0, BoolToInt(false))
}
