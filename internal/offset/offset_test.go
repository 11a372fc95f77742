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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/slicequery/internal/types"
)

func ts(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func row(persistenceID string, seqNr int64, dbTimestamp time.Time) types.Row {
	return types.Row{PersistenceID: persistenceID, SeqNr: seqNr, DBTimestamp: dbTimestamp, ReadDBTimestamp: dbTimestamp}
}

// S1: a row strictly after the accumulated offset always advances and
// emits.
func TestAdvance_StrictlyAfter(t *testing.T) {
	prev := types.ZeroOffset()
	next, emit := Advance(prev, row("a", 1, ts(10)))
	require.True(t, emit)
	assert.Equal(t, ts(10), next.Timestamp)
	assert.Equal(t, int64(1), next.Seen["a"])
}

// S2: two rows sharing the same DBTimestamp both emit and accumulate in
// the same Seen map; a third row at that timestamp with a seqNr already
// observed is dropped as a duplicate.
func TestAdvance_SameTimestampDedup(t *testing.T) {
	prev := types.ZeroOffset()
	next, emit := Advance(prev, row("a", 1, ts(10)))
	require.True(t, emit)

	next, emit = Advance(next, row("b", 1, ts(10)))
	require.True(t, emit)
	assert.Equal(t, int64(1), next.Seen["a"])
	assert.Equal(t, int64(1), next.Seen["b"])

	// Re-delivery of the same (persistenceId, seqNr) at the same
	// timestamp is a duplicate.
	dup, emit := Advance(next, row("a", 1, ts(10)))
	assert.False(t, emit)
	assert.Equal(t, next, dup)

	// A higher seqNr for a persistenceId already seen at this timestamp
	// still emits and replaces the watermark.
	higher, emit := Advance(next, row("a", 2, ts(10)))
	require.True(t, emit)
	assert.Equal(t, int64(2), higher.Seen["a"])
}

func TestAdvance_TimestampAdvanceResetsSeen(t *testing.T) {
	prev := types.ZeroOffset()
	prev, _ = Advance(prev, row("a", 1, ts(10)))
	prev, _ = Advance(prev, row("b", 1, ts(10)))

	next, emit := Advance(prev, row("c", 1, ts(11)))
	require.True(t, emit)
	assert.Equal(t, ts(11), next.Timestamp)
	assert.Len(t, next.Seen, 1)
	assert.Equal(t, int64(1), next.Seen["c"])
}

func TestAdvance_DoesNotMutatePrev(t *testing.T) {
	prev := types.ZeroOffset()
	prev, _ = Advance(prev, row("a", 1, ts(10)))
	seenBefore := len(prev.Seen)

	_, _ = Advance(prev, row("b", 1, ts(10)))
	assert.Len(t, prev.Seen, seenBefore)
}

func TestStage_ProcessAndLast(t *testing.T) {
	var captured []types.TimestampOffset
	factory := func(offset types.TimestampOffset, r types.Row) types.Envelope {
		captured = append(captured, offset)
		return fakeEnvelope{offset: offset}
	}

	stage := NewStage(types.ZeroOffset(), factory)

	env, emitted := stage.Process(row("a", 1, ts(10)))
	require.True(t, emitted)
	assert.Equal(t, ts(10), env.Offset().Timestamp)

	_, emitted = stage.Process(row("a", 1, ts(10)))
	assert.False(t, emitted)

	env, emitted = stage.Process(row("b", 1, ts(11)))
	require.True(t, emitted)
	assert.Equal(t, ts(11), env.Offset().Timestamp)

	assert.Equal(t, ts(11), stage.Last().Timestamp)
	assert.Len(t, captured, 2)
}

type fakeEnvelope struct {
	offset types.TimestampOffset
}

func (e fakeEnvelope) Offset() types.TimestampOffset { return e.offset }
