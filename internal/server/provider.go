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

package server

import (
	"context"

	"github.com/google/wire"

	"github.com/cockroachdb/slicequery/internal/offsetstore"
	"github.com/cockroachdb/slicequery/internal/query"
	"github.com/cockroachdb/slicequery/internal/source/postgres"
)

// Set is used by Wire.
var Set = wire.NewSet(
	ProvideConfig,
	ProvidePool,
	ProvideClock,
	ProvideRowSource,
	ProvideOffsetStore,
	ProvideSettings,
)

// ProvideConfig validates and returns the bound Config.
func ProvideConfig(config *Config) (*Config, error) {
	if err := config.Preflight(); err != nil {
		return nil, err
	}
	return config, nil
}

// ProvidePool is called by Wire to create the connection pool the row
// source and offset store share. The pool is closed by the cancel
// function.
func ProvidePool(ctx context.Context, config *Config) (*postgres.Pool, func(), error) {
	return postgres.Open(ctx, config.SourceConn)
}

// ProvideClock is called by Wire to construct the types.ClockOracle
// Current-Query Mode snapshots "now" from.
func ProvideClock(pool *postgres.Pool) *postgres.Clock {
	return &postgres.Clock{Pool: pool}
}

// ProvideRowSource is called by Wire to construct the concrete
// types.RowSource.
func ProvideRowSource(config *Config, pool *postgres.Pool) *postgres.RowSource {
	return &postgres.RowSource{Pool: pool, BufferSize: config.BufferSize}
}

// ProvideOffsetStore is called by Wire to construct the offset-store
// collaborator cmd/slicequery uses to resume a live query across
// restarts.
func ProvideOffsetStore(pool *postgres.Pool) (*offsetstore.Store, error) {
	if err := offsetstore.RunMigrations(pool.ConnectionString); err != nil {
		return nil, err
	}
	return &offsetstore.Store{Pool: pool}, nil
}

// ProvideSettings is called by Wire to project Config onto the
// query.Settings the live-query driver consumes.
func ProvideSettings(config *Config) query.Settings {
	return config.Settings()
}
