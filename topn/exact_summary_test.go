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

package topn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newExact(t *testing.T, capacity int, widths []int, cfg *Config, offers ...offer) *ExactSummary {
	t.Helper()
	e, err := NewExactSummary(KindSpaceSaving, capacity, true, widths, cfg)
	require.NoError(t, err)
	offerAll(t, e, offers...)
	return e
}

func TestExactSummaryInvalid(t *testing.T) {
	_, err := NewExactSummary(KindSpaceSaving, 3, true, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewExactSummary(KindSpaceSaving, 0, true, []int{1}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	e := newExact(t, 3, []int{2}, nil)
	assert.Equal(t, []int{2}, e.KeyLayout())
	assert.ErrorIs(t, e.Offer("a", 1), ErrInvalidArgument)
	assert.False(t, e.Occur("a"))
	assert.True(t, e.IsEmpty())
}

func TestExactSummaryDisjointMergeIsUnion(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cfg := DefaultConfig()
	cfg.Logger = zap.New(core)

	e := newExact(t, 2, []int{1}, cfg, offer{"a", 5}, offer{"b", 3}, offer{"c", 1})
	other := newExact(t, 2, []int{1}, cfg, offer{"x", 4}, offer{"y", 2}, offer{"z", 1})
	require.True(t, e.IsFull())
	require.True(t, other.IsFull())

	require.NoError(t, e.Merge(other))
	assert.Equal(t, counters(offer{"a", 5}, offer{"x", 4}), e.Counters())
	assert.Equal(t, 1, logs.FilterMessage("merging disjoint key spaces").Len())
	for _, item := range []string{"a", "b", "c", "x", "y", "z"} {
		assert.True(t, e.Occur(item), item)
	}

	// the same inputs without the index pick up both boundaries
	plain, err := NewSpaceSavingSummary(2, nil)
	require.NoError(t, err)
	offerAll(t, plain, offer{"a", 5}, offer{"b", 3}, offer{"c", 1})
	plainOther, err := NewSpaceSavingSummary(2, nil)
	require.NoError(t, err)
	offerAll(t, plainOther, offer{"x", 4}, offer{"y", 2}, offer{"z", 1})
	require.NoError(t, plain.Merge(plainOther))
	assert.Equal(t, counters(offer{"a", 7}, offer{"x", 7}), plain.Counters())
}

func TestExactSummaryDisjointMatchesOccurAwareMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeRetainFactor = 4
	build := func() (*ExactSummary, *ExactSummary) {
		e := newExact(t, 2, []int{1, 1}, cfg, offer{"ax", 6}, offer{"ay", 4}, offer{"bx", 1})
		other := newExact(t, 2, []int{1, 1}, cfg, offer{"cx", 5}, offer{"cy", 3}, offer{"dz", 2})
		return e, other
	}

	fast, other := build()
	require.True(t, fast.Index().Disjoint(other.Index()))
	require.NoError(t, fast.Merge(other))

	slow, other := build()
	slow.summary.approximateMerge(other.summary, slow.index.Occur, other.index.Occur)
	require.NoError(t, slow.summary.retainAfterMerge())

	assert.Equal(t, slow.Counters(), fast.Counters())
	assert.Equal(t,
		counters(offer{"ax", 6}, offer{"cx", 5}, offer{"ay", 4}, offer{"cy", 3}, offer{"dz", 2}, offer{"bx", 1}),
		fast.Counters())
}

func TestExactSummaryOccurAwareMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeRetainFactor = 3
	e := newExact(t, 2, []int{1, 1}, cfg, offer{"ax", 6}, offer{"by", 4}, offer{"cz", 1})
	other := newExact(t, 2, []int{1, 1}, cfg, offer{"ay", 3}, offer{"dw", 2})
	require.Equal(t, 4.0, e.MergeBoundary())
	require.Equal(t, 2.0, other.MergeBoundary())
	require.False(t, e.Index().Disjoint(other.Index()))

	require.NoError(t, e.Merge(other))
	assert.Equal(t,
		counters(offer{"ay", 7}, offer{"ax", 6}, offer{"by", 4}, offer{"dw", 2}, offer{"cz", 1}),
		e.Counters())
	assert.Equal(t, uint64(4), e.Index().Cardinality(0))
	assert.Equal(t, uint64(4), e.Index().Cardinality(1))
	assert.Equal(t, 2, other.Size())
}

func TestExactSummaryEvictedKeysStillOccur(t *testing.T) {
	e := newExact(t, 1, []int{1}, nil, offer{"a", 9}, offer{"b", 1})
	require.NoError(t, e.Retain(1))
	_, ok := e.Estimate("b")
	assert.False(t, ok)
	assert.True(t, e.Occur("b"))
}

func TestExactSummaryMergeIncompatible(t *testing.T) {
	e := newExact(t, 2, []int{1}, nil, offer{"a", 1})

	wider := newExact(t, 2, []int{2}, nil, offer{"ab", 1})
	assert.ErrorIs(t, e.Merge(wider), ErrIncompatible)

	plain, err := NewSpaceSavingSummary(2, nil)
	require.NoError(t, err)
	require.NoError(t, plain.Offer("a", 1))
	assert.ErrorIs(t, e.Merge(plain), ErrIncompatible)

	xx := DefaultConfig()
	xx.DimensionHash = "xxhash"
	hashedMurmur := newExact(t, 2, []int{8}, nil, offer{"abcdefgh", 1})
	hashedXX := newExact(t, 2, []int{8}, xx, offer{"abcdefgh", 1})
	assert.ErrorIs(t, hashedMurmur.Merge(hashedXX), ErrIncompatible)

	before := e.Counters()
	empty := newExact(t, 2, []int{1}, nil)
	require.NoError(t, e.Merge(empty))
	assert.Equal(t, before, e.Counters())
}

func TestExactSummaryCopyAndReset(t *testing.T) {
	e := newExact(t, 2, []int{1}, nil, offer{"a", 2}, offer{"b", 1})
	cp := e.Copy().(*ExactSummary)
	require.NoError(t, e.Offer("c", 5))
	assert.False(t, cp.Occur("c"))
	assert.Equal(t, 2, cp.Size())

	e.Reset()
	assert.True(t, e.IsEmpty())
	assert.False(t, e.Occur("a"))
	assert.True(t, cp.Occur("a"))
	assert.Contains(t, e.String(), "ExactTopNSummary")
}
