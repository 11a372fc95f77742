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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/slicequery/internal/types"
)

// S3: a bounded Current-Query Mode run drains every scripted page and
// terminates once a page underfills the buffer.
func TestCurrentBySlices_DrainsAllPages(t *testing.T) {
	source := &fakeRowSource{pages: []fakePage{
		{rows: []types.Row{row("a", 1, ts(1)), row("b", 1, ts(2))}},
		{rows: []types.Row{row("c", 1, ts(3))}},
	}}
	clock := fakeClock{now: ts(100)}

	var emitted []types.Envelope
	err := CurrentBySlices(
		context.Background(), "test", source, clock, "widget",
		0, 1023, 2,
		types.ZeroOffset(), newTestEnvelope,
		func(env types.Envelope) error { emitted = append(emitted, env); return nil },
	)
	require.NoError(t, err)
	assert.Len(t, emitted, 3)
}

// S4: bufferSize-1 threshold pinning — a page with exactly bufferSize-1
// rows is NOT underfull (the driver must requery, since that many rows
// could mean more are waiting); only a page with strictly fewer rows
// stops the query. Matches DESIGN.md's Open Question 1 resolution.
func TestCurrentModePagingThreshold(t *testing.T) {
	source := &fakeRowSource{pages: []fakePage{
		{rows: []types.Row{row("a", 1, ts(1)), row("b", 1, ts(2))}}, // == bufferSize-1, not underfull
		{rows: []types.Row{row("c", 1, ts(3))}},                     // < bufferSize-1, underfull: stop here
		{rows: []types.Row{row("z", 1, ts(99))}},                    // must never be reached
	}}
	clock := fakeClock{now: ts(100)}

	var emitted []types.Envelope
	err := CurrentBySlices(
		context.Background(), "test", source, clock, "widget",
		0, 1023, 3,
		types.ZeroOffset(), newTestEnvelope,
		func(env types.Envelope) error { emitted = append(emitted, env); return nil },
	)
	require.NoError(t, err)
	assert.Len(t, emitted, 3)
	assert.Equal(t, 2, source.calls)
}

func TestCurrentBySlices_ClockOracleError(t *testing.T) {
	source := &fakeRowSource{}
	clock := fakeClock{err: assert.AnError}

	err := CurrentBySlices(
		context.Background(), "test", source, clock, "widget",
		0, 1023, 10,
		types.ZeroOffset(), newTestEnvelope,
		func(types.Envelope) error { return nil },
	)
	assert.ErrorIs(t, err, ErrEmptyClock)
}

func newTestEnvelope(offset types.TimestampOffset, r types.Row) types.Envelope {
	return fakeEnvelope{offset: offset}
}
