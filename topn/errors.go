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

import "errors"

var (
	// ErrInvalidArgument marks a violated precondition, such as a non-positive
	// capacity or a key whose width does not match the summary's key layout.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIncompatible is returned when merging summaries of different kinds or
	// ordering directions.
	ErrIncompatible = errors.New("incompatible summaries")
	// ErrInsufficientBytes is returned when a serialized summary is truncated.
	ErrInsufficientBytes = errors.New("possible corruption: insufficient bytes")
	// ErrCorrupt is returned when a serialized summary carries values that no
	// encoder would have written.
	ErrCorrupt = errors.New("possible corruption")
)
