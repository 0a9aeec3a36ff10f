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

import "fmt"

// Aggregator folds partial summaries into one on the reduce side. It never
// holds on to or mutates the summaries handed to it.
type Aggregator struct {
	capacity int
	sum      Sketch
}

// NewAggregator returns an Aggregator whose Result is retained to capacity.
func NewAggregator(capacity int) (*Aggregator, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive: %d", ErrInvalidArgument, capacity)
	}
	return &Aggregator{capacity: capacity}, nil
}

// Aggregate merges s into the running result. The first summary is copied.
func (a *Aggregator) Aggregate(s Sketch) error {
	if s == nil {
		return nil
	}
	if a.sum == nil {
		a.sum = s.Copy()
		return nil
	}
	return a.sum.Merge(s)
}

// Result returns a retained copy of the running result, or nil when nothing
// was aggregated. The Aggregator can keep accumulating afterwards.
func (a *Aggregator) Result() (Sketch, error) {
	if a.sum == nil {
		return nil, nil
	}
	out := a.sum.Copy()
	if err := out.Retain(a.capacity); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Aggregator) Reset() {
	a.sum = nil
}
