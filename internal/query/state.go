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

// Package query implements the Continuous Query Driver (spec.md §4.2),
// the Current-Query Mode (§4.3), and the Live-Query Mode with
// backtracking (§4.4).
package query

import (
	"time"

	"github.com/cockroachdb/slicequery/internal/types"
)

// State is the driver state machine of spec.md §3.
type State struct {
	Latest             types.TimestampOffset
	LatestBacktracking types.TimestampOffset
	RowCount           int
	QueryCount         int64
	IdleCount          int64
	Backtracking       bool
}

// NewState creates the state a call to CurrentBySlices or LiveBySlices
// starts from.
func NewState(initialOffset types.TimestampOffset) State {
	return State{Latest: initialOffset, LatestBacktracking: types.ZeroOffset()}
}

// CurrentOffset returns the offset the active mode is advancing.
func (s State) CurrentOffset() types.TimestampOffset {
	if s.Backtracking {
		return s.LatestBacktracking
	}
	return s.Latest
}

// NextQueryFromTimestamp is the lower bound of the next sub-query.
func (s State) NextQueryFromTimestamp() time.Time {
	return s.CurrentOffset().Timestamp
}

// NextQueryToTimestamp is the (optional) upper bound of the next
// sub-query: Some(latest.Timestamp) while backtracking, so backtracking
// never looks past the primary cursor; None otherwise.
func (s State) NextQueryToTimestamp() *time.Time {
	if !s.Backtracking {
		return nil
	}
	t := s.Latest.Timestamp
	return &t
}
