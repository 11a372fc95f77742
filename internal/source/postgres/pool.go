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

// Package postgres is the concrete types.RowSource and types.ClockOracle
// implementation against a Postgres/CockroachDB event_journal table, plus
// the embedded migrations that create it.
package postgres

import (
	"context"
	"embed"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/cockroachdb/slicequery/internal/util/stopper"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool is an injection point for a connection to the row-source database,
// following the teacher's PoolInfo-embedding convention (internal/types).
type Pool struct {
	*pgxpool.Pool
	ConnectionString string
}

// Open creates a connection pool, runs migrations, and returns a ready
// Pool. The returned cleanup function closes the pool; it is safe to
// call more than once.
func Open(ctx context.Context, dsn string) (*Pool, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, errors.Wrap(err, "pgxpool.New")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "postgres ping")
	}

	if err := RunMigrations(dsn); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "migrations")
	}

	sc := stopper.WithContext(ctx)
	ret := &Pool{Pool: pool, ConnectionString: dsn}
	sc.Go(func() error {
		<-sc.Stopping()
		ret.Pool.Close()
		return nil
	})

	return ret, sc.Stop, nil
}

// RunMigrations applies all pending up-migrations against dsn. Safe to
// call multiple times — migrate.ErrNoChange is treated as success.
func RunMigrations(dsn string) error {
	return RunMigrationsFromFS(dsn, migrationsFS, "migrations")
}

// RunMigrationsFromFS is the shared golang-migrate wiring behind
// RunMigrations, exported so other packages owning their own migration
// set (internal/offsetstore) need not re-derive the iofs/pgx5 plumbing.
func RunMigrationsFromFS(dsn string, fs embed.FS, dir string) error {
	src, err := iofs.New(fs, dir)
	if err != nil {
		return errors.Wrap(err, "iofs source")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, toMigrateURL(dsn))
	if err != nil {
		return errors.Wrap(err, "migrate.New")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// toMigrateURL converts a postgres:// or postgresql:// DSN to the
// pgx5:// scheme expected by golang-migrate's pgx/v5 driver.
func toMigrateURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + dsn[len(prefix):]
		}
	}
	return "pgx5://" + dsn
}
