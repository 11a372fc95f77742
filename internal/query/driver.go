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

// SubQuery is one page of Envelopes produced by NextQuery, already passed
// through the Deserialize & Offset Stage.
type SubQuery struct {
	Envelopes []types.Envelope
	// FinalState is the State the sub-query was issued with, the same
	// State NextQueryFunc returns, before any of Envelopes is folded
	// through UpdateStateFunc. Run does not read it.
	FinalState State
}

// UpdateStateFunc folds one emitted envelope into the running state.
type UpdateStateFunc func(state State, env types.Envelope) (State, error)

// DelayNextQueryFunc returns an optional delay to wait before the next
// sub-query is issued.
type DelayNextQueryFunc func(state State) *time.Duration

// NextQueryFunc returns either the next sub-query (with the state it
// should be folded from) or nil to terminate the driver.
type NextQueryFunc func(ctx context.Context, state State) (State, *SubQuery, error)

// Run drives the generic pull loop of spec.md §4.2: starting from
// initialState, repeatedly wait for DelayNextQueryFunc's delay (if any),
// call NextQueryFunc, emit its envelopes to emit, fold each one through
// UpdateStateFunc, and loop — until NextQueryFunc returns a nil SubQuery
// or ctx is canceled.
//
// Run blocks until the driver terminates. Cancellation via ctx is not an
// error: Run returns nil. Any other error returned by nextQuery or
// updateState propagates to the caller and terminates the driver.
func Run(
	ctx context.Context,
	initialState State,
	delayNextQuery DelayNextQueryFunc,
	nextQuery NextQueryFunc,
	updateState UpdateStateFunc,
	emit func(types.Envelope) error,
) error {
	state := initialState
	for {
		if d := delayNextQuery(state); d != nil {
			timer := time.NewTimer(*d)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil
			}
		}

		if err := ctx.Err(); err != nil {
			return nil
		}

		newState, sub, err := nextQuery(ctx, state)
		if err != nil {
			return err
		}
		if sub == nil {
			return nil
		}
		state = newState

		for _, env := range sub.Envelopes {
			if err := emit(env); err != nil {
				return err
			}
			state, err = updateState(state, env)
			if err != nil {
				return err
			}
		}
	}
}

// AdjustNextDelay implements the adaptive-delay law of spec.md §4.2 and
// §8 property 6: None if the page was full (likely more rows waiting),
// Some(refreshInterval) if the page was empty (idle, full back-off),
// Some(refreshInterval/2) otherwise (partially filled, poll sooner).
func AdjustNextDelay(rowCount, bufferSize int, refreshInterval time.Duration) *time.Duration {
	switch {
	case rowCount >= bufferSize:
		return nil
	case rowCount == 0:
		d := refreshInterval
		return &d
	default:
		d := refreshInterval / 2
		return &d
	}
}
