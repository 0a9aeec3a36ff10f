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

package common

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/twmb/murmur3"
)

const (
	defaultDimensionHashSeed = uint32(9001)

	DimensionHashMurmur3 = "murmur3"
	DimensionHashXXHash  = "xxhash"
)

type Murmur3DimensionHasher struct{}
type XXHashDimensionHasher struct{}

func (h Murmur3DimensionHasher) Hash32(value []byte) uint32 {
	return murmur3.SeedSum32(defaultDimensionHashSeed, value)
}

// Hash32 folds the 64 bit digest so both halves contribute.
func (h XXHashDimensionHasher) Hash32(value []byte) uint32 {
	sum := xxhash.Sum64(value)
	return uint32(sum) ^ uint32(sum>>32)
}

// NewDimensionHasher returns the hasher registered under name. An empty name
// selects murmur3.
func NewDimensionHasher(name string) (DimensionHasher, error) {
	switch name {
	case "", DimensionHashMurmur3:
		return Murmur3DimensionHasher{}, nil
	case DimensionHashXXHash:
		return XXHashDimensionHasher{}, nil
	default:
		return nil, fmt.Errorf("unknown dimension hash %q", name)
	}
}
