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
	"slices"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/apache/kylin-topn-go/common"
)

// maxDirectWidth is the widest dimension value stored in a bitmap as is.
// Wider values are hashed.
const maxDirectWidth = 4

// ExactnessIndex records, per key dimension, every value ever offered.
// Bitmaps only grow: a key evicted from the counters stays in the index, so
// Occur and Disjoint err on the side of "seen".
type ExactnessIndex struct {
	widths   []int
	bitmaps  []*roaring.Bitmap
	hashName string
	hasher   common.DimensionHasher
}

// NewExactnessIndex returns an empty index for keys made of dimensions of
// the given byte widths. hashName selects the hash for dimensions wider than
// 4 bytes.
func NewExactnessIndex(widths []int, hashName string) (*ExactnessIndex, error) {
	if len(widths) == 0 {
		return nil, fmt.Errorf("%w: at least one dimension is required", ErrInvalidArgument)
	}
	for _, w := range widths {
		if w <= 0 {
			return nil, fmt.Errorf("%w: dimension width must be positive: %v", ErrInvalidArgument, widths)
		}
	}
	hasher, err := common.NewDimensionHasher(hashName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	bitmaps := make([]*roaring.Bitmap, len(widths))
	for i := range bitmaps {
		bitmaps[i] = roaring.New()
	}
	if hashName == "" {
		hashName = common.DimensionHashMurmur3
	}
	return &ExactnessIndex{
		widths:   slices.Clone(widths),
		bitmaps:  bitmaps,
		hashName: hashName,
		hasher:   hasher,
	}, nil
}

func (x *ExactnessIndex) Dimensions() int {
	return len(x.widths)
}

func (x *ExactnessIndex) Widths() []int {
	return slices.Clone(x.widths)
}

// Cardinality returns the number of distinct values recorded for dim.
func (x *ExactnessIndex) Cardinality(dim int) uint64 {
	return x.bitmaps[dim].GetCardinality()
}

func (x *ExactnessIndex) hashed() bool {
	for _, w := range x.widths {
		if w > maxDirectWidth {
			return true
		}
	}
	return false
}

// encode maps the value of one dimension onto the bitmap domain: the
// big-endian value when it fits in 32 bits, a hash otherwise.
func (x *ExactnessIndex) encode(dim int, value string) uint32 {
	if x.widths[dim] <= maxDirectWidth {
		v := uint32(0)
		for i := 0; i < len(value); i++ {
			v = v<<8 | uint32(value[i])
		}
		return v
	}
	return x.hasher.Hash32(unsafe.Slice(unsafe.StringData(value), len(value)))
}

// each calls fn with every dimension index and value of item. item must be
// exactly as wide as the layout.
func (x *ExactnessIndex) each(item string, fn func(dim int, v uint32) bool) {
	offset := 0
	for d, w := range x.widths {
		if !fn(d, x.encode(d, item[offset:offset+w])) {
			return
		}
		offset += w
	}
}

func (x *ExactnessIndex) keyWidth() int {
	w := 0
	for _, d := range x.widths {
		w += d
	}
	return w
}

// Add records every dimension value of item.
func (x *ExactnessIndex) Add(item string) error {
	if len(item) != x.keyWidth() {
		return fmt.Errorf("%w: item is %d bytes, key layout %v needs %d", ErrInvalidArgument, len(item), x.widths, x.keyWidth())
	}
	x.each(item, func(d int, v uint32) bool {
		x.bitmaps[d].Add(v)
		return true
	})
	return nil
}

// Occur reports whether item may have been added: each of its dimension
// values has been recorded. A false answer is definite.
func (x *ExactnessIndex) Occur(item string) bool {
	if len(item) != x.keyWidth() {
		return false
	}
	occur := true
	x.each(item, func(d int, v uint32) bool {
		occur = x.bitmaps[d].Contains(v)
		return occur
	})
	return occur
}

// Disjoint reports whether no key can have been added to both indexes. That
// holds as soon as one dimension shares no value, in particular when none
// does.
func (x *ExactnessIndex) Disjoint(other *ExactnessIndex) bool {
	for d := range x.bitmaps {
		if !x.bitmaps[d].Intersects(other.bitmaps[d]) {
			return true
		}
	}
	return false
}

func (x *ExactnessIndex) compatible(other *ExactnessIndex) error {
	if !slices.Equal(x.widths, other.widths) {
		return fmt.Errorf("%w: key layouts differ: %v, %v", ErrIncompatible, x.widths, other.widths)
	}
	if x.hashed() && x.hashName != other.hashName {
		return fmt.Errorf("%w: dimension hashes differ: %s, %s", ErrIncompatible, x.hashName, other.hashName)
	}
	return nil
}

// Or adds every value recorded by other.
func (x *ExactnessIndex) Or(other *ExactnessIndex) {
	for d := range x.bitmaps {
		x.bitmaps[d].Or(other.bitmaps[d])
	}
}

func (x *ExactnessIndex) Clone() *ExactnessIndex {
	bitmaps := make([]*roaring.Bitmap, len(x.bitmaps))
	for i, b := range x.bitmaps {
		bitmaps[i] = b.Clone()
	}
	return &ExactnessIndex{
		widths:   slices.Clone(x.widths),
		bitmaps:  bitmaps,
		hashName: x.hashName,
		hasher:   x.hasher,
	}
}

func (x *ExactnessIndex) reset() {
	for _, b := range x.bitmaps {
		b.Clear()
	}
}
