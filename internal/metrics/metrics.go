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

// Package metrics holds the prometheus collectors the query driver
// updates as it runs. Collectors are grouped by entityType, the one
// label every sub-query is already scoped to.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// entityLabels is the label set shared by every collector in this
// package.
var entityLabels = []string{"entity_type"}

// latencyBuckets spans from a single millisecond out past a minute,
// wide enough to cover both a tight poll loop and a slow backtracking
// query.
var latencyBuckets = []float64{
	.001, .002, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60,
}

var (
	// RowsEmitted counts rows the engine has handed to the caller's emit
	// callback, after dedup.
	RowsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slicequery_rows_emitted_total",
		Help: "the number of rows emitted to the caller after dedup",
	}, entityLabels)

	// SubQueries counts calls made to the Row Source, one per poll
	// iteration (live mode) or one per slice-range page (current mode).
	SubQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slicequery_sub_queries_total",
		Help: "the number of row-source queries issued",
	}, entityLabels)

	// SubQueryDuration tracks wall time spent inside a single Row
	// Source call.
	SubQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slicequery_sub_query_duration_seconds",
		Help:    "the length of time a single row-source query took",
		Buckets: latencyBuckets,
	}, entityLabels)

	// SubQueryErrors counts Row Source failures.
	SubQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slicequery_sub_query_errors_total",
		Help: "the number of row-source queries that returned an error",
	}, entityLabels)

	// IdlePolls counts poll iterations that returned zero rows, the
	// live-mode backtracking idle-count trigger's raw signal.
	IdlePolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slicequery_idle_polls_total",
		Help: "the number of poll iterations that returned no rows",
	}, entityLabels)

	// BacktrackingTriggered counts transitions into backtracking mode,
	// split by which trigger fired.
	BacktrackingTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slicequery_backtracking_triggered_total",
		Help: "the number of times live-query mode entered backtracking",
	}, append(append([]string{}, entityLabels...), "trigger"))

	// PollDelay observes the delay the driver actually slept between
	// sub-queries, 0 for an immediate requery.
	PollDelay = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slicequery_poll_delay_seconds",
		Help:    "the delay applied before the next sub-query",
		Buckets: latencyBuckets,
	}, entityLabels)
)
