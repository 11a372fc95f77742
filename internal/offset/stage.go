// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package offset

import "github.com/cockroachdb/slicequery/internal/types"

// Stage is the stateful Deserialize & Offset transform of spec.md §4.1.
// It owns (currentTimestamp, currentSeen) exclusively for the lifetime of
// one sub-stream; a fresh Stage must be created for every sub-query and
// discarded when that sub-query's rows are exhausted. It is never shared
// with the Continuous Query Driver — the driver only ever sees the
// terminal TimestampOffset via Last.
type Stage struct {
	current types.TimestampOffset
	factory types.EnvelopeFactory
}

// NewStage creates a Stage seeded from initial, the offset the enclosing
// sub-query was started from.
func NewStage(initial types.TimestampOffset, factory types.EnvelopeFactory) *Stage {
	return &Stage{current: initial.Clone(), factory: factory}
}

// Process applies the per-row rule of spec.md §4.1 to row. It returns
// the produced Envelope and true if the row was emitted, or the zero
// Envelope and false if the row was a duplicate and was dropped.
func (s *Stage) Process(row types.Row) (types.Envelope, bool) {
	next, emit := Advance(s.current, row)
	s.current = next
	if !emit {
		return nil, false
	}
	return s.factory(next, row), true
}

// Last returns the accumulated offset after the most recently processed
// row (or the initial offset, if no row has been processed yet). This is
// what the driver folds back into QueryState between sub-queries.
func (s *Stage) Last() types.TimestampOffset {
	return s.current
}
