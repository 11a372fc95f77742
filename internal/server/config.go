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

// Package server wires the core query engine into a runnable process:
// flag-bound configuration, a google/wire provider set, and a small
// HTTP diagnostics surface.
package server

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/cockroachdb/slicequery/internal/query"
)

// Config contains the user-visible configuration for running the
// by-slice streaming query engine against a live Postgres/CockroachDB
// connection.
type Config struct {
	SourceConn string
	EntityType string
	MinSlice   int
	MaxSlice   int

	BufferSize                    int
	RefreshInterval               time.Duration
	BehindCurrentTime             time.Duration
	BacktrackingEnabled           bool
	BacktrackingBehindCurrentTime time.Duration
	BacktrackingWindow            time.Duration

	BindAddr string
}

// Bind registers flags.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(
		&c.SourceConn,
		"sourceConn",
		"",
		"connection string for the database the row source reads from")
	flags.StringVar(
		&c.EntityType,
		"entityType",
		"",
		"the entity type to query")
	flags.IntVar(
		&c.MinSlice,
		"minSlice",
		0,
		"the lowest slice in the queried range, inclusive")
	flags.IntVar(
		&c.MaxSlice,
		"maxSlice",
		1023,
		"the highest slice in the queried range, inclusive")

	flags.IntVar(
		&c.BufferSize,
		"bufferSize",
		1000,
		"the maximum number of rows requested per sub-query")
	flags.DurationVar(
		&c.RefreshInterval,
		"refreshInterval",
		500*time.Millisecond,
		"the poll delay applied when a sub-query returns no rows")
	flags.DurationVar(
		&c.BehindCurrentTime,
		"behindCurrentTime",
		0,
		"how far behind the database's own clock the primary query stays")
	flags.BoolVar(
		&c.BacktrackingEnabled,
		"backtracking",
		true,
		"enable the secondary backtracking scan in live-query mode")
	flags.DurationVar(
		&c.BacktrackingBehindCurrentTime,
		"backtrackingBehindCurrentTime",
		0,
		"how far behind the database's own clock the backtracking query stays")
	flags.DurationVar(
		&c.BacktrackingWindow,
		"backtrackingWindow",
		2*time.Minute,
		"the width of the backtracking scan's time window")

	flags.StringVar(
		&c.BindAddr,
		"bindAddr",
		":9090",
		"the network address the diagnostics HTTP server binds to")
}

// Preflight validates the invariants spec.md §6 places on the
// recognized settings.
func (c *Config) Preflight() error {
	if c.SourceConn == "" {
		return errors.New("sourceConn unset")
	}
	if c.EntityType == "" {
		return errors.New("entityType unset")
	}
	if c.MinSlice > c.MaxSlice {
		return errors.New("minSlice must be <= maxSlice")
	}
	if c.BufferSize <= 0 {
		return errors.New("bufferSize must be > 0")
	}
	if c.RefreshInterval < 0 {
		return errors.New("refreshInterval must be >= 0")
	}
	if c.BehindCurrentTime < 0 {
		return errors.New("behindCurrentTime must be >= 0")
	}
	if c.BacktrackingBehindCurrentTime < 0 {
		return errors.New("backtrackingBehindCurrentTime must be >= 0")
	}
	if c.BacktrackingEnabled && c.BacktrackingWindow <= 0 {
		return errors.New("backtrackingWindow must be > 0 when backtracking is enabled")
	}
	if c.BindAddr == "" {
		return errors.New("bindAddr unset")
	}
	return nil
}

// Settings projects Config onto the query.Settings the live-query driver
// consumes.
func (c *Config) Settings() query.Settings {
	return query.Settings{
		BufferSize:                    c.BufferSize,
		RefreshInterval:               c.RefreshInterval,
		BehindCurrentTime:             c.BehindCurrentTime,
		BacktrackingEnabled:           c.BacktrackingEnabled,
		BacktrackingBehindCurrentTime: c.BacktrackingBehindCurrentTime,
		BacktrackingWindow:            c.BacktrackingWindow,
	}
}
