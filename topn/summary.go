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

// Package topn is dedicated to approximate "top N" summaries of a weighted
// stream of keys, built on the Space-Saving family of algorithms.
//
// A summary tracks a bounded number of candidate keys and their counts. Partial
// summaries built by different workers or over different time windows can be
// merged; the merge adds a boundary estimate for keys that may have been seen
// by one side but were not recorded, so merged counts are upper bounds whose
// error is bounded by the boundaries of the inputs.
//
// Three shapes are provided: the plain Space-Saving summary, a symmetric
// summary that keeps both the highest and the lowest ranked keys, and an
// exact-merge summary that decorates either with a per dimension membership
// bitmap so merges of provably disjoint key spaces skip the error terms.
//
// Summaries are not safe for concurrent use. Give each worker its own summary
// and merge afterwards, or hand readers a Copy.
package topn

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type Kind int

const (
	// KindSpaceSaving keeps the capacity highest ranked counters.
	KindSpaceSaving Kind = iota
	// KindSymmetric keeps the capacity highest and the capacity lowest ranked
	// counters.
	KindSymmetric
)

func (k Kind) String() string {
	switch k {
	case KindSpaceSaving:
		return "SpaceSaving"
	case KindSymmetric:
		return "Symmetric"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Sketch is the contract shared by Summary and ExactSummary.
type Sketch interface {
	// Offer adds increment to the count of item, inserting it if needed.
	Offer(item string, increment float64) error
	// Merge folds other into the receiver. other must be of the same shape.
	Merge(other Sketch) error
	// Retain truncates to capacity counters and makes capacity the new target.
	Retain(capacity int) error
	// TopK returns up to k counters in rank order.
	TopK(k int) []Counter
	// Counters returns every tracked counter in rank order.
	Counters() []Counter
	// Estimate returns the tracked count of item.
	Estimate(item string) (float64, bool)
	// MergeBoundary is the count credited to keys this sketch may have seen
	// without recording them. It is zero until the sketch is full.
	MergeBoundary() float64
	IsFull() bool
	IsEmpty() bool
	Size() int
	Capacity() int
	Descending() bool
	Kind() Kind
	// KeyLayout returns the byte width of each key dimension, or nil when no
	// key has been seen by a summary without a fixed layout.
	KeyLayout() []int
	// Copy returns an independent deep copy.
	Copy() Sketch
	// Reset empties the sketch, keeping its capacity and key layout.
	Reset()
}

// Summary is a Space-Saving summary of either Kind.
type Summary struct {
	kind       Kind
	capacity   int
	descending bool
	store      *counterStore
	layout     []int
	cfg        *Config
}

var _ Sketch = (*Summary)(nil)

// NewSpaceSavingSummary returns an empty descending KindSpaceSaving summary.
// A nil cfg selects DefaultConfig.
func NewSpaceSavingSummary(capacity int, cfg *Config) (*Summary, error) {
	return NewSummary(KindSpaceSaving, capacity, true, cfg)
}

// NewSymmetricSummary returns an empty descending KindSymmetric summary.
func NewSymmetricSummary(capacity int, cfg *Config) (*Summary, error) {
	return NewSummary(KindSymmetric, capacity, true, cfg)
}

// NewSummary returns an empty summary. With descending false the rank order
// is by ascending count, so TopK answers "bottom N" queries.
func NewSummary(kind Kind, capacity int, descending bool, cfg *Config) (*Summary, error) {
	return newSummaryWithLayout(kind, capacity, descending, nil, cfg)
}

func newSummaryWithLayout(kind Kind, capacity int, descending bool, layout []int, cfg *Config) (*Summary, error) {
	if kind != KindSpaceSaving && kind != KindSymmetric {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidArgument, int(kind))
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive: %d", ErrInvalidArgument, capacity)
	}
	for _, w := range layout {
		if w <= 0 {
			return nil, fmt.Errorf("%w: dimension width must be positive: %v", ErrInvalidArgument, layout)
		}
	}
	c, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Summary{
		kind:       kind,
		capacity:   capacity,
		descending: descending,
		store:      newCounterStore(capacity, descending),
		layout:     slices.Clone(layout),
		cfg:        c,
	}, nil
}

func (s *Summary) Kind() Kind {
	return s.kind
}

func (s *Summary) Capacity() int {
	return s.capacity
}

func (s *Summary) Descending() bool {
	return s.descending
}

func (s *Summary) Size() int {
	return s.store.size()
}

func (s *Summary) IsEmpty() bool {
	return s.store.isEmpty()
}

func (s *Summary) KeyLayout() []int {
	return slices.Clone(s.layout)
}

func (s *Summary) keyWidth() int {
	w := 0
	for _, d := range s.layout {
		w += d
	}
	return w
}

// fullThreshold is the size at which the summary starts crediting a merge
// boundary.
func (s *Summary) fullThreshold() int {
	if s.kind == KindSymmetric {
		return 2 * s.capacity
	}
	return s.capacity
}

func (s *Summary) IsFull() bool {
	return s.store.size() >= s.fullThreshold()
}

// checkKey fixes the key layout on the first key when none was given.
func (s *Summary) checkKey(item string) error {
	if len(item) == 0 {
		return fmt.Errorf("%w: empty item", ErrInvalidArgument)
	}
	if s.layout == nil {
		s.layout = []int{len(item)}
		return nil
	}
	if len(item) != s.keyWidth() {
		return fmt.Errorf("%w: item is %d bytes, key layout %v needs %d", ErrInvalidArgument, len(item), s.layout, s.keyWidth())
	}
	return nil
}

func (s *Summary) Offer(item string, increment float64) error {
	if math.IsNaN(increment) || math.IsInf(increment, 0) {
		return fmt.Errorf("%w: increment must be finite: %v", ErrInvalidArgument, increment)
	}
	if err := s.checkKey(item); err != nil {
		return err
	}
	if c, ok := s.store.get(item); ok {
		c.Count += increment
		s.store.toUnordered()
	} else {
		s.store.offer(&Counter{Item: item, Count: increment})
	}
	if s.store.size() > s.cfg.OfferRetainFactor*s.fullThreshold() {
		s.cfg.logger().Debug("retaining summary during offer",
			zap.Stringer("kind", s.kind),
			zap.Int("size", s.store.size()),
			zap.Int("capacity", s.capacity))
		return s.Retain(s.capacity)
	}
	return nil
}

// rankCount returns the count at rank. Large unordered summaries are
// searched with quick select so computing a boundary does not force a sort.
func (s *Summary) rankCount(rank int) float64 {
	if !s.store.isOrdered() && s.store.size() >= s.cfg.SelectRatio*s.capacity {
		return s.store.selectRank(rank).Count
	}
	return s.store.ranked()[rank].Count
}

// MergeBoundary returns 0 until the summary is full. A KindSpaceSaving
// boundary is the count at zero-based rank capacity-1. A KindSymmetric
// boundary is the midpoint of zero-based ranks capacity-1 and size-capacity,
// which are the innermost counters Retain keeps on each side.
func (s *Summary) MergeBoundary() float64 {
	if !s.IsFull() {
		return 0
	}
	if s.kind == KindSymmetric {
		high := s.rankCount(s.capacity - 1)
		low := s.rankCount(s.store.size() - s.capacity)
		return (high + low) / 2
	}
	return s.rankCount(s.capacity - 1)
}

func (s *Summary) checkMergeable(o *Summary) error {
	if s.kind != o.kind {
		return fmt.Errorf("%w: cannot merge %s into %s", ErrIncompatible, o.kind, s.kind)
	}
	if s.descending != o.descending {
		return fmt.Errorf("%w: ordering direction differs", ErrIncompatible)
	}
	if s.layout != nil && o.layout != nil && !slices.Equal(s.layout, o.layout) {
		return fmt.Errorf("%w: key layouts differ: %v, %v", ErrIncompatible, s.layout, o.layout)
	}
	return nil
}

// Merge applies the Stream-Summary merge. Boundaries are taken before any
// counter changes: a key tracked only by the receiver is credited with the
// boundary of a full other, and a key tracked only by other is credited with
// the receiver's boundary. Merging an empty sketch leaves the receiver as is.
func (s *Summary) Merge(other Sketch) error {
	o, ok := other.(*Summary)
	if !ok {
		return fmt.Errorf("%w: cannot merge %T into *topn.Summary", ErrIncompatible, other)
	}
	if err := s.checkMergeable(o); err != nil {
		return err
	}
	if o.IsEmpty() {
		return nil
	}
	s.approximateMerge(o, nil, nil)
	return s.retainAfterMerge()
}

// approximateMerge folds o into s. mayHaveSeen and otherMayHaveSeen decide
// whether a key missing from a side's counters could still have been offered
// to it; nil means yes. Keys that provably never reached a side are not
// credited with that side's boundary.
func (s *Summary) approximateMerge(o *Summary, mayHaveSeen, otherMayHaveSeen func(string) bool) {
	e1 := s.MergeBoundary()
	e2 := o.MergeBoundary()
	if s.layout == nil {
		s.layout = slices.Clone(o.layout)
	}
	s.store.toUnordered()
	if o.IsFull() {
		for item, c := range s.store.counters {
			if _, shared := o.store.get(item); shared {
				continue
			}
			if otherMayHaveSeen == nil || otherMayHaveSeen(item) {
				c.Count += e2
			}
		}
	}
	for item, oc := range o.store.counters {
		if c, ok := s.store.get(item); ok {
			c.Count += oc.Count
			continue
		}
		count := oc.Count
		if mayHaveSeen == nil || mayHaveSeen(item) {
			count += e1
		}
		s.store.offer(&Counter{Item: item, Count: count})
	}
}

// unionMerge adds every counter of o without error terms. Only valid when no
// key can have been offered to both sides.
func (s *Summary) unionMerge(o *Summary) {
	if s.layout == nil {
		s.layout = slices.Clone(o.layout)
	}
	for item, oc := range o.store.counters {
		if c, ok := s.store.get(item); ok {
			c.Count += oc.Count
			s.store.toUnordered()
			continue
		}
		s.store.offer(&Counter{Item: item, Count: oc.Count})
	}
}

func (s *Summary) retainAfterMerge() error {
	if s.store.size() > s.cfg.MergeRetainFactor*s.fullThreshold() {
		s.cfg.logger().Debug("retaining summary after merge",
			zap.Stringer("kind", s.kind),
			zap.Int("size", s.store.size()),
			zap.Int("capacity", s.capacity))
		return s.Retain(s.capacity)
	}
	return nil
}

// Retain drops the lowest ranked counters of a KindSpaceSaving summary, or
// the middle ranks of a KindSymmetric one, and sets the new capacity.
func (s *Summary) Retain(capacity int) error {
	var err error
	if s.kind == KindSymmetric {
		err = s.store.retainMiddle(capacity)
	} else {
		err = s.store.retain(capacity)
	}
	if err != nil {
		return err
	}
	s.capacity = capacity
	return nil
}

func (s *Summary) TopK(k int) []Counter {
	if k <= 0 {
		return []Counter{}
	}
	ranked := s.store.ranked()
	k = min(k, len(ranked))
	out := make([]Counter, k)
	for i, c := range ranked[:k] {
		out[i] = *c
	}
	return out
}

func (s *Summary) Counters() []Counter {
	return s.TopK(s.store.size())
}

func (s *Summary) Estimate(item string) (float64, bool) {
	c, ok := s.store.get(item)
	if !ok {
		return 0, false
	}
	return c.Count, true
}

func (s *Summary) Copy() Sketch {
	return s.copySummary()
}

func (s *Summary) copySummary() *Summary {
	return &Summary{
		kind:       s.kind,
		capacity:   s.capacity,
		descending: s.descending,
		store:      s.store.copy(),
		layout:     slices.Clone(s.layout),
		cfg:        s.cfg,
	}
}

func (s *Summary) Reset() {
	s.store = newCounterStore(s.capacity, s.descending)
}

func (s *Summary) String() string {
	var sb strings.Builder
	sb.WriteString("TopNSummary:")
	sb.WriteString("\n")
	sb.WriteString("  Kind             : " + s.kind.String())
	sb.WriteString("\n")
	sb.WriteString("  Capacity         : " + strconv.Itoa(s.capacity))
	sb.WriteString("\n")
	sb.WriteString("  Size             : " + strconv.Itoa(s.store.size()))
	sb.WriteString("\n")
	sb.WriteString("  Descending       : " + strconv.FormatBool(s.descending))
	sb.WriteString("\n")
	sb.WriteString("  Merge Boundary   : " + strconv.FormatFloat(s.MergeBoundary(), 'g', -1, 64))
	sb.WriteString("\n")
	for _, c := range s.store.ranked() {
		sb.WriteString(c.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
