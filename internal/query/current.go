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

// CurrentBySlices implements spec.md §4.3: it produces every row whose
// DBTimestamp is at or after initialOffset.Timestamp and before
// snapshotNow (passed to rows as the toTimestamp upper bound, which the
// Postgres RowSource treats as exclusive) and whose slice lies in
// [minSlice, maxSlice], ordered and deduplicated per §4.1, then
// terminates. snapshotNow is read from clock exactly once, before the
// first sub-query, and frozen for the lifetime of the call.
func CurrentBySlices(
	ctx context.Context,
	logPrefix string,
	rows types.RowSource,
	clock types.ClockOracle,
	entityType string,
	minSlice, maxSlice, bufferSize int,
	initialOffset types.TimestampOffset,
	factory types.EnvelopeFactory,
	emit func(types.Envelope) error,
) error {
	snapshotNow, err := clock.CurrentDBTimestamp(ctx)
	if err != nil {
		return errEmptyClock(logPrefix, err)
	}

	state := NewState(initialOffset)

	updateState := func(s State, env types.Envelope) (State, error) {
		s.Latest = env.Offset()
		s.RowCount++
		return s, nil
	}

	nextQuery := func(ctx context.Context, s State) (State, *SubQuery, error) {
		if s.QueryCount != 0 && s.RowCount < bufferSize-1 {
			log.WithFields(log.Fields{
				"logPrefix":  logPrefix,
				"entityType": entityType,
				"rowCount":   s.RowCount,
				"bufferSize": bufferSize,
			}).Trace("current query exhausted")
			return s, nil, nil
		}

		from := s.Latest.Timestamp
		queryStart := time.Now()
		page, err := rows.RowsBySlices(ctx, entityType, minSlice, maxSlice, from, &snapshotNow, 0, false)
		metrics.SubQueries.WithLabelValues(entityType).Inc()
		metrics.SubQueryDuration.WithLabelValues(entityType).Observe(time.Since(queryStart).Seconds())
		if err != nil {
			metrics.SubQueryErrors.WithLabelValues(entityType).Inc()
			return s, nil, err
		}

		log.WithFields(log.Fields{
			"logPrefix":   logPrefix,
			"entityType":  entityType,
			"from":        from,
			"snapshotNow": snapshotNow,
			"rows":        len(page),
		}).Trace("current query page")

		stage := offset.NewStage(s.Latest, factory)
		envs := make([]types.Envelope, 0, len(page))
		for _, row := range page {
			if env, ok := stage.Process(row); ok {
				envs = append(envs, env)
			}
		}
		metrics.RowsEmitted.WithLabelValues(entityType).Add(float64(len(envs)))

		next := s
		next.RowCount = 0
		next.QueryCount++
		return next, &SubQuery{Envelopes: envs, FinalState: next}, nil
	}

	// No pacing in current mode: pull as fast as the caller's emit
	// permits.
	noDelay := func(State) *time.Duration { return nil }

	return Run(ctx, state, noDelay, nextQuery, updateState, emit)
}
