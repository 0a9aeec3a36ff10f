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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ronanh/intcomp"
	"go.uber.org/zap"

	"github.com/apache/kylin-topn-go/common"
	"github.com/apache/kylin-topn-go/internal"
)

// Serialized layout, all integers little-endian:
//
//	int32  capacity
//	int32  size
//	int32  descending (0 or 1)
//	int32  flags
//	int32  nDimensions
//	int32  width of each dimension
//
// followed, when size > 0, by
//
//	uint64 base: ordered bits of the first emitted count
//	int32  nWords
//	uint64 nWords words of intcomp compressed deltas against base
//	       exact summaries only, per dimension: int32 nBytes, roaring bitmap
//	byte   size keys of sum(widths) bytes each
//
// Counters are emitted in reverse rank order.
const (
	_CAPACITY_OFFSET     = 0
	_SIZE_OFFSET         = 4
	_DESCENDING_OFFSET   = 8
	_FLAGS_OFFSET        = 12
	_N_DIMENSIONS_OFFSET = 16
	_WIDTHS_OFFSET       = 20

	_SYMMETRIC_FLAG_MASK = 1
	_EXACT_FLAG_MASK     = 2
	_XXHASH_FLAG_MASK    = 4
	_KNOWN_FLAGS_MASK    = _SYMMETRIC_FLAG_MASK | _EXACT_FLAG_MASK | _XXHASH_FLAG_MASK
)

type preamble struct {
	capacity   int
	size       int
	descending bool
	flags      int
	widths     []int
	// length is the number of bytes the preamble occupies.
	length int
}

func (p *preamble) kind() Kind {
	if p.flags&_SYMMETRIC_FLAG_MASK != 0 {
		return KindSymmetric
	}
	return KindSpaceSaving
}

func (p *preamble) exact() bool {
	return p.flags&_EXACT_FLAG_MASK != 0
}

func (p *preamble) hashName() string {
	if p.flags&_XXHASH_FLAG_MASK != 0 {
		return common.DimensionHashXXHash
	}
	return common.DimensionHashMurmur3
}

func (p *preamble) keyWidth() int {
	w := 0
	for _, d := range p.widths {
		w += d
	}
	return w
}

func readInt32(buf []byte, offset int) (int, error) {
	if !internal.CheckBounds(offset, 4, len(buf)) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrInsufficientBytes, offset+4, len(buf))
	}
	return int(int32(binary.LittleEndian.Uint32(buf[offset:]))), nil
}

func readPreamble(buf []byte) (*preamble, error) {
	var fields [5]int
	for i := range fields {
		v, err := readInt32(buf, i*4)
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}
	p := &preamble{
		capacity:   fields[_CAPACITY_OFFSET/4],
		size:       fields[_SIZE_OFFSET/4],
		descending: fields[_DESCENDING_OFFSET/4] == 1,
		flags:      fields[_FLAGS_OFFSET/4],
	}
	nDimensions := fields[_N_DIMENSIONS_OFFSET/4]
	if p.capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive: %d", ErrCorrupt, p.capacity)
	}
	if p.size < 0 {
		return nil, fmt.Errorf("%w: negative size: %d", ErrCorrupt, p.size)
	}
	if d := fields[_DESCENDING_OFFSET/4]; d != 0 && d != 1 {
		return nil, fmt.Errorf("%w: descending must be 0 or 1: %d", ErrCorrupt, d)
	}
	if p.flags&^_KNOWN_FLAGS_MASK != 0 {
		return nil, fmt.Errorf("%w: unknown flags: %#x", ErrCorrupt, p.flags)
	}
	if nDimensions < 0 {
		return nil, fmt.Errorf("%w: negative dimension count: %d", ErrCorrupt, nDimensions)
	}
	if nDimensions == 0 && (p.size > 0 || p.exact()) {
		return nil, fmt.Errorf("%w: missing key layout", ErrCorrupt)
	}
	if !internal.CheckBounds(_WIDTHS_OFFSET, 4*nDimensions, len(buf)) {
		return nil, fmt.Errorf("%w: need %d bytes for the preamble", ErrInsufficientBytes, _WIDTHS_OFFSET+4*nDimensions)
	}
	if nDimensions > 0 {
		p.widths = make([]int, nDimensions)
	}
	total := 0
	for d := range p.widths {
		w, err := readInt32(buf, _WIDTHS_OFFSET+4*d)
		if err != nil {
			return nil, err
		}
		if w <= 0 {
			return nil, fmt.Errorf("%w: dimension width must be positive: %d", ErrCorrupt, w)
		}
		if w > math.MaxInt-total {
			return nil, fmt.Errorf("%w: key width overflows", ErrCorrupt)
		}
		total += w
		p.widths[d] = w
	}
	p.length = _WIDTHS_OFFSET + 4*nDimensions
	return p, nil
}

// Encode serializes s. See AppendEncoded.
func Encode(s Sketch) ([]byte, error) {
	return AppendEncoded(nil, s)
}

// AppendEncoded appends the serialized form of s to dst, so several
// summaries can be packed back to back and split again with PeekLength.
func AppendEncoded(dst []byte, s Sketch) ([]byte, error) {
	var sum *Summary
	var index *ExactnessIndex
	switch v := s.(type) {
	case *Summary:
		sum = v
	case *ExactSummary:
		sum = v.summary
		index = v.index
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", ErrInvalidArgument, s)
	}
	if sum.capacity > math.MaxInt32 || sum.store.size() > math.MaxInt32 {
		return nil, fmt.Errorf("%w: summary too large to encode", ErrInvalidArgument)
	}

	flags := 0
	if sum.kind == KindSymmetric {
		flags |= _SYMMETRIC_FLAG_MASK
	}
	if index != nil {
		flags |= _EXACT_FLAG_MASK
		if index.hashName == common.DimensionHashXXHash {
			flags |= _XXHASH_FLAG_MASK
		}
	}
	size := sum.store.size()
	dst = binary.LittleEndian.AppendUint32(dst, uint32(sum.capacity))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(size))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(internal.BoolToInt(sum.descending)))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(flags))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(sum.layout)))
	for _, w := range sum.layout {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(w))
	}
	if size == 0 {
		return dst, nil
	}

	ranked := sum.store.ranked()
	base := internal.OrderedBits(ranked[size-1].Count)
	deltas := make([]int64, size)
	for i := range deltas {
		deltas[i] = int64(internal.OrderedBits(ranked[size-1-i].Count) - base)
	}
	words := intcomp.CompressInt64(deltas, nil)
	if len(words) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: value block too large to encode", ErrInvalidArgument)
	}
	dst = binary.LittleEndian.AppendUint64(dst, base)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(words)))
	for _, w := range words {
		dst = binary.LittleEndian.AppendUint64(dst, w)
	}

	if index != nil {
		for _, b := range index.bitmaps {
			bs, err := b.ToBytes()
			if err != nil {
				return nil, fmt.Errorf("encode exactness index: %w", err)
			}
			dst = binary.LittleEndian.AppendUint32(dst, uint32(len(bs)))
			dst = append(dst, bs...)
		}
	}

	for i := size - 1; i >= 0; i-- {
		dst = append(dst, ranked[i].Item...)
	}
	return dst, nil
}

// PeekLength returns the number of bytes the summary at the start of buf
// occupies. Counts and bitmaps are skipped using their length prefixes
// without being decoded.
func PeekLength(buf []byte) (int, error) {
	p, err := readPreamble(buf)
	if err != nil {
		return 0, err
	}
	offset := p.length
	if p.size == 0 {
		return offset, nil
	}
	offset += 8
	nWords, err := readInt32(buf, offset)
	if err != nil {
		return 0, err
	}
	offset += 4
	if nWords < 0 || !internal.MulFits(nWords, 8) || !internal.CheckBounds(offset, nWords*8, len(buf)) {
		return 0, fmt.Errorf("%w: value block of %d words", ErrInsufficientBytes, nWords)
	}
	offset += nWords * 8
	if p.exact() {
		for range p.widths {
			n, err := readInt32(buf, offset)
			if err != nil {
				return 0, err
			}
			offset += 4
			if !internal.CheckBounds(offset, n, len(buf)) {
				return 0, fmt.Errorf("%w: bitmap of %d bytes", ErrInsufficientBytes, n)
			}
			offset += n
		}
	}
	keyBytes, err := keyBlockLength(p)
	if err != nil {
		return 0, err
	}
	if !internal.CheckBounds(offset, keyBytes, len(buf)) {
		return 0, fmt.Errorf("%w: key block of %d bytes", ErrInsufficientBytes, keyBytes)
	}
	return offset + keyBytes, nil
}

func keyBlockLength(p *preamble) (int, error) {
	if !internal.MulFits(p.size, p.keyWidth()) {
		return 0, fmt.Errorf("%w: key block length overflows", ErrCorrupt)
	}
	return p.size * p.keyWidth(), nil
}

// Decode reconstructs the summary at the start of buf. Bytes after it are
// ignored. A nil cfg selects DefaultConfig; the dimension hash of an exact
// summary is taken from the serialized flags.
func Decode(buf []byte, cfg *Config) (Sketch, error) {
	c, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	s, err := decode(buf, c)
	if err != nil {
		c.logger().Debug("rejecting serialized summary", zap.Int("bytes", len(buf)), zap.Error(err))
		return nil, err
	}
	return s, nil
}

func decode(buf []byte, cfg *Config) (Sketch, error) {
	p, err := readPreamble(buf)
	if err != nil {
		return nil, err
	}
	sum, err := newSummaryWithLayout(p.kind(), p.capacity, p.descending, p.widths, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var index *ExactnessIndex
	if p.exact() {
		index, err = NewExactnessIndex(p.widths, p.hashName())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	wrap := func() Sketch {
		if index != nil {
			return &ExactSummary{summary: sum, index: index}
		}
		return sum
	}
	if p.size == 0 {
		return wrap(), nil
	}

	keyBytes, err := keyBlockLength(p)
	if err != nil {
		return nil, err
	}
	// every counter needs its key in buf, which bounds size before any
	// allocation sized by it
	if keyBytes > len(buf) {
		return nil, fmt.Errorf("%w: key block of %d bytes", ErrInsufficientBytes, keyBytes)
	}
	offset := p.length
	if !internal.CheckBounds(offset, 12, len(buf)) {
		return nil, fmt.Errorf("%w: value block header", ErrInsufficientBytes)
	}
	base := binary.LittleEndian.Uint64(buf[offset:])
	offset += 8
	nWords, _ := readInt32(buf, offset)
	offset += 4
	if nWords <= 0 || !internal.MulFits(nWords, 8) || !internal.CheckBounds(offset, nWords*8, len(buf)) {
		return nil, fmt.Errorf("%w: value block of %d words", ErrInsufficientBytes, nWords)
	}
	words := make([]uint64, nWords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(buf[offset+8*i:])
	}
	offset += nWords * 8
	deltas, err := uncompressDeltas(words, p.size)
	if err != nil {
		return nil, err
	}
	if len(deltas) != p.size {
		return nil, fmt.Errorf("%w: value block holds %d counts, expected %d", ErrCorrupt, len(deltas), p.size)
	}

	if index != nil {
		for d := range index.bitmaps {
			n, err := readInt32(buf, offset)
			if err != nil {
				return nil, err
			}
			offset += 4
			if !internal.CheckBounds(offset, n, len(buf)) {
				return nil, fmt.Errorf("%w: bitmap of %d bytes", ErrInsufficientBytes, n)
			}
			if err := index.bitmaps[d].UnmarshalBinary(buf[offset : offset+n]); err != nil {
				return nil, fmt.Errorf("%w: bitmap for dimension %d: %v", ErrCorrupt, d, err)
			}
			offset += n
		}
	}

	if !internal.CheckBounds(offset, keyBytes, len(buf)) {
		return nil, fmt.Errorf("%w: key block of %d bytes", ErrInsufficientBytes, keyBytes)
	}
	width := p.keyWidth()
	for i, delta := range deltas {
		count := internal.FromOrderedBits(base + uint64(delta))
		if math.IsNaN(count) || math.IsInf(count, 0) {
			return nil, fmt.Errorf("%w: count is not finite", ErrCorrupt)
		}
		item := string(buf[offset+i*width : offset+(i+1)*width])
		if index != nil && !index.Occur(item) {
			return nil, fmt.Errorf("%w: item %x missing from the exactness index", ErrCorrupt, item)
		}
		if err := sum.store.offerToHead(&Counter{Item: item, Count: count}); err != nil {
			return nil, err
		}
	}
	return wrap(), nil
}

// uncompressDeltas decodes count deltas. The block decoder allocates the
// element count held in the low 32 bits of the first word, so that count is
// checked against the header first. A panic on corrupt words becomes
// ErrCorrupt.
func uncompressDeltas(words []uint64, size int) (deltas []int64, err error) {
	if n := int(uint32(words[0])); n != size {
		return nil, fmt.Errorf("%w: value block holds %d counts, expected %d", ErrCorrupt, n, size)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: value block: %v", ErrCorrupt, r)
		}
	}()
	return intcomp.UncompressInt64(words, nil), nil
}

// SplitCells cuts a buffer of back to back serialized summaries into one
// slice per summary.
func SplitCells(buf []byte) ([][]byte, error) {
	var cells [][]byte
	for offset := 0; offset < len(buf); {
		n, err := PeekLength(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("cell at offset %d: %w", offset, err)
		}
		cells = append(cells, buf[offset:offset+n:offset+n])
		offset += n
	}
	return cells, nil
}

// ToSlice serializes the summary.
func (s *Summary) ToSlice() ([]byte, error) {
	return Encode(s)
}

// ToSlice serializes the summary and its exactness index.
func (e *ExactSummary) ToSlice() ([]byte, error) {
	return Encode(e)
}
