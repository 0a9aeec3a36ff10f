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
	"bytes"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/apache/kylin-topn-go/common"
)

const (
	defaultOfferRetainFactor = 2
	defaultMergeRetainFactor = 2
	defaultSelectRatio       = 4
)

// Config holds the tunables shared by every summary built from it. A Config
// must not be modified once a summary uses it.
type Config struct {
	// OfferRetainFactor bounds growth during ingestion: once a summary holds
	// more than OfferRetainFactor times its full threshold, Offer retains it
	// back to capacity.
	OfferRetainFactor int `yaml:"offer_retain_factor"`
	// MergeRetainFactor is the same bound applied at the end of Merge.
	MergeRetainFactor int `yaml:"merge_retain_factor"`
	// SelectRatio is the size to capacity ratio above which the merge boundary
	// of an unordered summary is found by selection instead of a full sort.
	SelectRatio int `yaml:"select_ratio"`
	// DimensionHash names the hash used to fold dimension values wider than
	// 4 bytes into the exactness index. See common.NewDimensionHasher.
	DimensionHash string `yaml:"dimension_hash"`

	Logger *zap.Logger `yaml:"-"`
}

// DefaultConfig returns a Config with the default tunables and a no-op logger.
func DefaultConfig() *Config {
	return &Config{
		OfferRetainFactor: defaultOfferRetainFactor,
		MergeRetainFactor: defaultMergeRetainFactor,
		SelectRatio:       defaultSelectRatio,
		DimensionHash:     common.DimensionHashMurmur3,
		Logger:            zap.NewNop(),
	}
}

// ParseConfig reads a YAML document on top of DefaultConfig. Unknown fields
// are rejected and an empty document yields the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse topn config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the tunables.
func (c *Config) Validate() error {
	if c.OfferRetainFactor < 1 {
		return fmt.Errorf("%w: offer_retain_factor must be at least 1: %d", ErrInvalidArgument, c.OfferRetainFactor)
	}
	if c.MergeRetainFactor < 1 {
		return fmt.Errorf("%w: merge_retain_factor must be at least 1: %d", ErrInvalidArgument, c.MergeRetainFactor)
	}
	if c.SelectRatio < 1 {
		return fmt.Errorf("%w: select_ratio must be at least 1: %d", ErrInvalidArgument, c.SelectRatio)
	}
	if _, err := common.NewDimensionHasher(c.DimensionHash); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

func (c *Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// resolveConfig returns cfg, or the defaults when cfg is nil.
func resolveConfig(cfg *Config) (*Config, error) {
	if cfg == nil {
		return DefaultConfig(), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
