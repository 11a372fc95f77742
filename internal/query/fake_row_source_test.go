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

package query

import (
	"context"
	"time"

	"github.com/cockroachdb/slicequery/internal/types"
)

// fakeRowSource replays a scripted sequence of pages instead of hitting
// Postgres, one page per call to RowsBySlices; it wraps nothing and
// injects no chaos, the opposite of its namesake in the teacher, but the
// same "delegate stands in for the real collaborator" idiom.
type fakeRowSource struct {
	pages []fakePage
	calls int
}

type fakePage struct {
	rows []types.Row
}

func (f *fakeRowSource) RowsBySlices(
	_ context.Context,
	_ string,
	_, _ int,
	_ time.Time,
	_ *time.Time,
	_ time.Duration,
	_ bool,
) ([]types.Row, error) {
	if f.calls >= len(f.pages) {
		return nil, nil
	}
	page := f.pages[f.calls]
	f.calls++
	return page.rows, nil
}

// funcRowSource hands each call's index and backtracking flag to fn,
// letting a test script exact per-call behavior (including triggering a
// context cancellation once it observes the call it's waiting for)
// without needing a fixed page list.
type funcRowSource struct {
	fn    func(callIndex int, backtracking bool) []types.Row
	calls int
}

func (f *funcRowSource) RowsBySlices(
	_ context.Context,
	_ string,
	_, _ int,
	_ time.Time,
	_ *time.Time,
	_ time.Duration,
	backtracking bool,
) ([]types.Row, error) {
	idx := f.calls
	f.calls++
	return f.fn(idx, backtracking), nil
}

type fakeClock struct {
	now time.Time
	err error
}

func (c fakeClock) CurrentDBTimestamp(context.Context) (time.Time, error) {
	return c.now, c.err
}

func ts(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func row(persistenceID string, seqNr int64, dbTimestamp time.Time) types.Row {
	return types.Row{PersistenceID: persistenceID, SeqNr: seqNr, DBTimestamp: dbTimestamp, ReadDBTimestamp: dbTimestamp}
}

type fakeEnvelope struct {
	offset types.TimestampOffset
}

func (e fakeEnvelope) Offset() types.TimestampOffset { return e.offset }
