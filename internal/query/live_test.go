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
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cockroachdb/slicequery/internal/types"
)

// S5: five consecutive idle primary polls force a switch to backtracking
// regardless of how close the two cursors are.
func TestLiveBySlices_IdleTriggersBacktracking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := Settings{
		BufferSize:          10,
		RefreshInterval:     time.Millisecond,
		BacktrackingEnabled: true,
		BacktrackingWindow:  time.Minute,
	}

	var sawBacktracking bool
	source := &funcRowSource{}
	source.fn = func(idx int, backtracking bool) []types.Row {
		if backtracking {
			sawBacktracking = true
			cancel()
			return nil
		}
		if idx == 0 {
			// Within the 30s half-window of epoch, so the cursor-gap
			// check never fires and only the idle streak can switch.
			return []types.Row{row("a", 1, ts(10))}
		}
		return nil
	}

	err := LiveBySlices(
		ctx, "test", source, "widget", 0, 1023,
		types.ZeroOffset(), settings, newTestEnvelope,
		func(types.Envelope) error { return nil },
	)
	assert.NoError(t, err)
	assert.True(t, sawBacktracking, "expected idle streak to trigger backtracking")
}

// S6: the primary and backtracking cursors drifting apart by more than
// half the backtracking window triggers backtracking even when every
// poll is returning rows (no idle streak involved).
func TestLiveBySlices_WindowExcessTriggersBacktracking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := Settings{
		BufferSize:          10,
		RefreshInterval:     time.Millisecond,
		BacktrackingEnabled: true,
		BacktrackingWindow:  10 * time.Second, // half-window = 5s
	}

	var sawBacktracking bool
	source := &funcRowSource{}
	source.fn = func(idx int, backtracking bool) []types.Row {
		if backtracking {
			sawBacktracking = true
			cancel()
			return nil
		}
		if idx == 0 {
			// Far enough past epoch that the very next round's gap
			// check exceeds the half-window without any idle polls.
			return []types.Row{row("a", 1, ts(1000))}
		}
		return []types.Row{row("b", 1, ts(1001))}
	}

	err := LiveBySlices(
		ctx, "test", source, "widget", 0, 1023,
		types.ZeroOffset(), settings, newTestEnvelope,
		func(types.Envelope) error { return nil },
	)
	assert.NoError(t, err)
	assert.True(t, sawBacktracking, "expected cursor drift to trigger backtracking")
}

// S7: a row whose DBTimestamp precedes the accumulator it is meant to
// extend is a fatal invariant violation, not a silently dropped
// duplicate (that dedup only applies to rows at an equal timestamp).
func TestLiveBySlices_OutOfOrderIsFatal(t *testing.T) {
	settings := Settings{
		BufferSize:          10,
		RefreshInterval:     time.Millisecond,
		BacktrackingEnabled: false,
	}

	source := &funcRowSource{}
	source.fn = func(idx int, backtracking bool) []types.Row {
		switch idx {
		case 0:
			return []types.Row{row("a", 1, ts(100))}
		case 1:
			return []types.Row{row("b", 1, ts(50))}
		default:
			return nil
		}
	}

	err := LiveBySlices(
		context.Background(), "test", source, "widget", 0, 1023,
		types.ZeroOffset(), settings, newTestEnvelope,
		func(types.Envelope) error { return nil },
	)
	assert.ErrorIs(t, err, ErrOutOfOrder)
}
