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

	"github.com/cockroachdb/slicequery/internal/metrics"
	"github.com/cockroachdb/slicequery/internal/offset"
	"github.com/cockroachdb/slicequery/internal/types"
	log "github.com/sirupsen/logrus"
)

// defaultBacktrackingIdleThreshold is the number of consecutive empty
// primary polls after which backtracking is triggered regardless of how
// close the primary and backtracking cursors are (spec.md §4.4,
// §9 Open Question 2: source-hardcoded, kept as the observed default).
const defaultBacktrackingIdleThreshold = 5

// Settings bundles the configuration spec.md §6 recognizes.
type Settings struct {
	BufferSize                    int
	RefreshInterval               time.Duration
	BehindCurrentTime             time.Duration
	BacktrackingEnabled           bool
	BacktrackingBehindCurrentTime time.Duration
	BacktrackingWindow            time.Duration
}

// halfBacktrackingWindow and firstBacktrackingQueryWindow are the derived
// quantities of spec.md §4.4.
func (s Settings) halfBacktrackingWindow() time.Duration {
	return s.BacktrackingWindow / 2
}

func (s Settings) firstBacktrackingQueryWindow() time.Duration {
	return s.BacktrackingWindow + s.BacktrackingBehindCurrentTime
}

// LiveBySlices implements spec.md §4.4: an unbounded stream that tails
// new rows near current time (the "primary" mode) and periodically
// switches to a "backtracking" scan over an older window to catch rows
// whose commit timestamps landed below the primary cursor.
func LiveBySlices(
	ctx context.Context,
	logPrefix string,
	rows types.RowSource,
	entityType string,
	minSlice, maxSlice int,
	initialOffset types.TimestampOffset,
	settings Settings,
	factory types.EnvelopeFactory,
	emit func(types.Envelope) error,
) error {
	state := NewState(initialOffset)

	updateState := func(s State, env types.Envelope) (State, error) {
		next := env.Offset()
		if s.Backtracking {
			if next.Timestamp.Before(s.LatestBacktracking.Timestamp) {
				return s, errOutOfOrder(logPrefix, s.LatestBacktracking.Timestamp, next.Timestamp)
			}
			s.LatestBacktracking = next
		} else {
			if next.Timestamp.Before(s.Latest.Timestamp) {
				return s, errOutOfOrder(logPrefix, s.Latest.Timestamp, next.Timestamp)
			}
			s.Latest = next
		}
		s.RowCount++
		return s, nil
	}

	delayNextQuery := func(s State) *time.Duration {
		d := AdjustNextDelay(s.RowCount, settings.BufferSize, settings.RefreshInterval)
		if d != nil {
			metrics.PollDelay.WithLabelValues(entityType).Observe(d.Seconds())
		} else {
			metrics.PollDelay.WithLabelValues(entityType).Observe(0)
		}
		return d
	}

	nextQuery := func(ctx context.Context, s State) (State, *SubQuery, error) {
		var newIdleCount int64
		if s.RowCount == 0 {
			newIdleCount = s.IdleCount + 1
		}

		next := s
		next.IdleCount = newIdleCount
		if s.RowCount == 0 {
			metrics.IdlePolls.WithLabelValues(entityType).Inc()
		}

		switch {
		case !s.Backtracking &&
			settings.BacktrackingEnabled &&
			!s.Latest.IsZero() &&
			(newIdleCount >= defaultBacktrackingIdleThreshold ||
				s.Latest.Timestamp.Sub(s.LatestBacktracking.Timestamp) > settings.halfBacktrackingWindow()):
			next.Backtracking = true
			if s.LatestBacktracking.IsZero() {
				next.LatestBacktracking = types.TimestampOffset{
					Timestamp: s.Latest.Timestamp.Add(-settings.firstBacktrackingQueryWindow()),
				}
			}
			trigger := "window"
			if newIdleCount >= defaultBacktrackingIdleThreshold {
				trigger = "idle"
			}
			metrics.BacktrackingTriggered.WithLabelValues(entityType, trigger).Inc()
			log.WithFields(log.Fields{
				"logPrefix":  logPrefix,
				"entityType": entityType,
				"idleCount":  newIdleCount,
				"from":       next.LatestBacktracking.Timestamp,
			}).Debug("switching to backtracking")

		case s.Backtracking && s.RowCount < settings.BufferSize-1:
			next.Backtracking = false
			log.WithFields(log.Fields{
				"logPrefix":  logPrefix,
				"entityType": entityType,
			}).Debug("switching to primary")

		default:
			// stay in the current mode
		}

		behindCurrentTime := settings.BehindCurrentTime
		if next.Backtracking {
			behindCurrentTime = settings.BacktrackingBehindCurrentTime
		}

		from := next.NextQueryFromTimestamp()
		to := next.NextQueryToTimestamp()

		queryStart := time.Now()
		page, err := rows.RowsBySlices(ctx, entityType, minSlice, maxSlice, from, to, behindCurrentTime, next.Backtracking)
		metrics.SubQueries.WithLabelValues(entityType).Inc()
		metrics.SubQueryDuration.WithLabelValues(entityType).Observe(time.Since(queryStart).Seconds())
		if err != nil {
			metrics.SubQueryErrors.WithLabelValues(entityType).Inc()
			return s, nil, err
		}

		log.WithFields(log.Fields{
			"logPrefix":    logPrefix,
			"entityType":   entityType,
			"from":         from,
			"to":           to,
			"backtracking": next.Backtracking,
			"rows":         len(page),
		}).Trace("live query page")

		stage := offset.NewStage(next.CurrentOffset(), factory)
		envs := make([]types.Envelope, 0, len(page))
		for _, row := range page {
			if env, ok := stage.Process(row); ok {
				envs = append(envs, env)
			}
		}
		metrics.RowsEmitted.WithLabelValues(entityType).Add(float64(len(envs)))

		next.RowCount = 0
		next.QueryCount++
		return next, &SubQuery{Envelopes: envs, FinalState: next}, nil
	}

	return Run(ctx, state, delayNextQuery, nextQuery, updateState, emit)
}
