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
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/apache/kylin-topn-go/internal"
)

// counterStore maps items to counters and caches their rank order.
// A nil view means the store is unordered; a non-nil view holds exactly the
// counters of the map in compare order.
type counterStore struct {
	counters   map[string]*Counter
	view       *sortedView
	descending bool
}

type sortedView struct {
	ranked []*Counter
	// head collects counters pushed by offerToHead, most recent last. They
	// precede ranked in reverse push order.
	head []*Counter
}

// maxPresize bounds the initial map size. capacity is a retention target,
// not a promise of how many counters will arrive.
const maxPresize = 1024

func newCounterStore(capacity int, descending bool) *counterStore {
	return &counterStore{
		counters:   make(map[string]*Counter, min(max(capacity, 0), maxPresize)),
		view:       &sortedView{},
		descending: descending,
	}
}

// compare orders by count in the store's direction, then by item bytes so
// equal counts always rank the same way.
func (s *counterStore) compare(a, b *Counter) int {
	if c := cmp.Compare(a.Count, b.Count); c != 0 {
		if s.descending {
			return -c
		}
		return c
	}
	return strings.Compare(a.Item, b.Item)
}

func (s *counterStore) get(item string) (*Counter, bool) {
	c, ok := s.counters[item]
	return c, ok
}

// offer inserts c, replacing any counter with the same item.
func (s *counterStore) offer(c *Counter) {
	s.counters[c.Item] = c
	s.toUnordered()
}

func (s *counterStore) remove(item string) {
	c, ok := s.counters[item]
	if !ok {
		return
	}
	delete(s.counters, item)
	if s.view != nil {
		s.flushHead()
		s.view.ranked = slices.DeleteFunc(s.view.ranked, func(x *Counter) bool { return x == c })
	}
}

func (s *counterStore) size() int {
	return len(s.counters)
}

func (s *counterStore) isEmpty() bool {
	return len(s.counters) == 0
}

func (s *counterStore) isOrdered() bool {
	return s.view != nil
}

// toUnordered drops the cached rank order. The map is untouched.
func (s *counterStore) toUnordered() {
	s.view = nil
}

// offerToHead places c in front of the current head without comparing.
// Successive calls must supply counters in reverse rank order, which is the
// order the codec emits them in.
func (s *counterStore) offerToHead(c *Counter) error {
	if _, ok := s.counters[c.Item]; ok {
		return fmt.Errorf("%w: duplicate item %x", ErrCorrupt, c.Item)
	}
	s.sort()
	v := s.view
	var first *Counter
	switch {
	case len(v.head) > 0:
		first = v.head[len(v.head)-1]
	case len(v.ranked) > 0:
		first = v.ranked[0]
	}
	if first != nil && s.compare(c, first) > 0 {
		return fmt.Errorf("%w: counters out of order", ErrCorrupt)
	}
	s.counters[c.Item] = c
	v.head = append(v.head, c)
	return nil
}

func (s *counterStore) flushHead() {
	v := s.view
	if len(v.head) == 0 {
		return
	}
	merged := make([]*Counter, 0, len(v.head)+len(v.ranked))
	for i := len(v.head) - 1; i >= 0; i-- {
		merged = append(merged, v.head[i])
	}
	v.ranked = append(merged, v.ranked...)
	v.head = nil
}

// sort rebuilds the rank order. It is a no-op when the store is ordered.
func (s *counterStore) sort() {
	if s.view != nil {
		return
	}
	ranked := s.values()
	slices.SortFunc(ranked, s.compare)
	s.view = &sortedView{ranked: ranked}
}

// ranked returns the counters in rank order. The slice belongs to the store.
func (s *counterStore) ranked() []*Counter {
	s.sort()
	s.flushHead()
	return s.view.ranked
}

func (s *counterStore) values() []*Counter {
	out := make([]*Counter, 0, len(s.counters))
	for _, c := range s.counters {
		out = append(out, c)
	}
	return out
}

// selectRank returns the counter at rank without sorting an unordered store.
func (s *counterStore) selectRank(rank int) *Counter {
	if s.view != nil {
		return s.ranked()[rank]
	}
	return internal.SelectFunc(s.values(), rank, s.compare)
}

// retain keeps the newCapacity highest ranked counters. An unordered store
// is partitioned around the cut first so only the survivors get sorted.
func (s *counterStore) retain(newCapacity int) error {
	if newCapacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive: %d", ErrInvalidArgument, newCapacity)
	}
	if len(s.counters) <= newCapacity {
		return nil
	}
	if s.view == nil {
		all := s.values()
		internal.SelectFunc(all, newCapacity-1, s.compare)
		for _, c := range all[newCapacity:] {
			delete(s.counters, c.Item)
		}
		kept := slices.Clip(all[:newCapacity])
		slices.SortFunc(kept, s.compare)
		s.view = &sortedView{ranked: kept}
		return nil
	}
	ranked := s.ranked()
	for _, c := range ranked[newCapacity:] {
		delete(s.counters, c.Item)
	}
	clear(ranked[newCapacity:])
	s.view.ranked = ranked[:newCapacity]
	return nil
}

// retainMiddle keeps the newCapacity highest and the newCapacity lowest
// ranked counters and drops everything between them.
func (s *counterStore) retainMiddle(newCapacity int) error {
	if newCapacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive: %d", ErrInvalidArgument, newCapacity)
	}
	n := len(s.counters)
	if n <= 2*newCapacity {
		return nil
	}
	ranked := s.ranked()
	for _, c := range ranked[newCapacity : n-newCapacity] {
		delete(s.counters, c.Item)
	}
	kept := make([]*Counter, 0, 2*newCapacity)
	kept = append(kept, ranked[:newCapacity]...)
	kept = append(kept, ranked[n-newCapacity:]...)
	s.view.ranked = kept
	return nil
}

// copy returns a store with cloned counters. The rank order is carried over
// when it is valid.
func (s *counterStore) copy() *counterStore {
	out := &counterStore{
		counters:   make(map[string]*Counter, len(s.counters)),
		descending: s.descending,
	}
	if s.view == nil {
		for item, c := range s.counters {
			clone := *c
			out.counters[item] = &clone
		}
		return out
	}
	ranked := s.ranked()
	view := make([]*Counter, len(ranked))
	for i, c := range ranked {
		clone := *c
		view[i] = &clone
		out.counters[clone.Item] = &clone
	}
	out.view = &sortedView{ranked: view}
	return out
}
