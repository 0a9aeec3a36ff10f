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
	"fmt"

	"go.uber.org/zap"
)

// ExactSummary decorates a Summary with an ExactnessIndex over the key
// dimensions. Merges of summaries whose key spaces are provably disjoint
// become plain unions, and the approximate merge only credits a boundary to
// keys the other side may actually have seen.
type ExactSummary struct {
	summary *Summary
	index   *ExactnessIndex
}

var _ Sketch = (*ExactSummary)(nil)

// NewExactSummary returns an empty exact-merge summary of the given kind for
// keys made of dimensions of the given byte widths.
func NewExactSummary(kind Kind, capacity int, descending bool, widths []int, cfg *Config) (*ExactSummary, error) {
	if len(widths) == 0 {
		return nil, fmt.Errorf("%w: at least one dimension is required", ErrInvalidArgument)
	}
	s, err := newSummaryWithLayout(kind, capacity, descending, widths, cfg)
	if err != nil {
		return nil, err
	}
	index, err := NewExactnessIndex(widths, s.cfg.DimensionHash)
	if err != nil {
		return nil, err
	}
	return &ExactSummary{summary: s, index: index}, nil
}

// Index returns the membership index. It must not be modified.
func (e *ExactSummary) Index() *ExactnessIndex {
	return e.index
}

// Occur reports whether item may have been offered to this summary or to
// any summary merged into it.
func (e *ExactSummary) Occur(item string) bool {
	return e.index.Occur(item)
}

func (e *ExactSummary) Offer(item string, increment float64) error {
	if err := e.summary.Offer(item, increment); err != nil {
		return err
	}
	return e.index.Add(item)
}

func (e *ExactSummary) Merge(other Sketch) error {
	o, ok := other.(*ExactSummary)
	if !ok {
		return fmt.Errorf("%w: cannot merge %T into *topn.ExactSummary", ErrIncompatible, other)
	}
	if err := e.summary.checkMergeable(o.summary); err != nil {
		return err
	}
	if err := e.index.compatible(o.index); err != nil {
		return err
	}
	if o.IsEmpty() {
		return nil
	}
	if e.index.Disjoint(o.index) {
		e.summary.cfg.logger().Debug("merging disjoint key spaces",
			zap.Int("size", e.summary.Size()),
			zap.Int("otherSize", o.summary.Size()))
		e.summary.unionMerge(o.summary)
	} else {
		e.summary.approximateMerge(o.summary, e.index.Occur, o.index.Occur)
	}
	e.index.Or(o.index)
	return e.summary.retainAfterMerge()
}

func (e *ExactSummary) Retain(capacity int) error {
	return e.summary.Retain(capacity)
}

func (e *ExactSummary) TopK(k int) []Counter {
	return e.summary.TopK(k)
}

func (e *ExactSummary) Counters() []Counter {
	return e.summary.Counters()
}

func (e *ExactSummary) Estimate(item string) (float64, bool) {
	return e.summary.Estimate(item)
}

func (e *ExactSummary) MergeBoundary() float64 {
	return e.summary.MergeBoundary()
}

func (e *ExactSummary) IsFull() bool {
	return e.summary.IsFull()
}

func (e *ExactSummary) IsEmpty() bool {
	return e.summary.IsEmpty()
}

func (e *ExactSummary) Size() int {
	return e.summary.Size()
}

func (e *ExactSummary) Capacity() int {
	return e.summary.Capacity()
}

func (e *ExactSummary) Descending() bool {
	return e.summary.Descending()
}

func (e *ExactSummary) Kind() Kind {
	return e.summary.Kind()
}

func (e *ExactSummary) KeyLayout() []int {
	return e.summary.KeyLayout()
}

func (e *ExactSummary) Copy() Sketch {
	return &ExactSummary{
		summary: e.summary.copySummary(),
		index:   e.index.Clone(),
	}
}

func (e *ExactSummary) Reset() {
	e.summary.Reset()
	e.index.reset()
}

func (e *ExactSummary) String() string {
	return "Exact" + e.summary.String()
}
