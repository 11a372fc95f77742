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
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/slicequery/internal/types"
)

// Property 6 of spec.md §8: a full page never waits, an empty page waits
// the full refresh interval, a partial page waits half.
func TestAdjustNextDelay(t *testing.T) {
	refresh := 2 * time.Second

	assert.Nil(t, AdjustNextDelay(10, 10, refresh))
	assert.Nil(t, AdjustNextDelay(11, 10, refresh))

	d := AdjustNextDelay(0, 10, refresh)
	require.NotNil(t, d)
	assert.Equal(t, refresh, *d)

	d = AdjustNextDelay(5, 10, refresh)
	require.NotNil(t, d)
	assert.Equal(t, refresh/2, *d)
}

func TestRun_TerminatesOnNilSubQuery(t *testing.T) {
	var emitted []types.Envelope
	calls := 0
	nextQuery := func(ctx context.Context, s State) (State, *SubQuery, error) {
		calls++
		if calls > 2 {
			return s, nil, nil
		}
		return s, &SubQuery{Envelopes: []types.Envelope{}, FinalState: s}, nil
	}
	noDelay := func(State) *time.Duration { return nil }
	updateState := func(s State, env types.Envelope) (State, error) {
		emitted = append(emitted, env)
		return s, nil
	}

	err := Run(context.Background(), State{}, noDelay, nextQuery, updateState, func(types.Envelope) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Empty(t, emitted)
}

func TestRun_PropagatesEmitError(t *testing.T) {
	boom := assert.AnError
	nextQuery := func(ctx context.Context, s State) (State, *SubQuery, error) {
		return s, &SubQuery{Envelopes: []types.Envelope{fakeEnvelope{}}}, nil
	}
	noDelay := func(State) *time.Duration { return nil }
	updateState := func(s State, env types.Envelope) (State, error) { return s, nil }

	err := Run(context.Background(), State{}, noDelay, nextQuery, updateState, func(types.Envelope) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	nextQuery := func(ctx context.Context, s State) (State, *SubQuery, error) {
		t.Fatal("nextQuery must not be called once ctx is already canceled")
		return s, nil, nil
	}
	delay := func(State) *time.Duration { d := time.Hour; return &d }
	updateState := func(s State, env types.Envelope) (State, error) { return s, nil }

	err := Run(ctx, State{}, delay, nextQuery, updateState, func(types.Envelope) error { return nil })
	assert.NoError(t, err)
}
