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

// Package offsetstore persists a TimestampOffset per projection so a
// restarted Live-Query Mode can resume instead of replaying from EPOCH.
// This module has no multi-instance coordination to arbitrate -
// callers are responsible for running at most one live query per
// projection id - so the store only needs to guarantee a save never
// regresses an already-persisted offset.
package offsetstore

import (
	"context"
	"embed"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/cockroachdb/slicequery/internal/source/postgres"
	"github.com/cockroachdb/slicequery/internal/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists projection offsets in a projection_offset table in the
// database behind pool.
type Store struct {
	Pool *postgres.Pool
}

// RunMigrations applies this package's own migration set, independent of
// the event_journal migrations in internal/source/postgres.
func RunMigrations(dsn string) error {
	return postgres.RunMigrationsFromFS(dsn, migrationsFS, "migrations")
}

// not_before guards against a save regressing a projection's persisted
// offset, the same ordering guard the teacher's resolved-timestamp UPSERT
// uses (internal/source/cdc/resolver.go's markTemplate), adapted to a
// single logical row per projection id instead of one row per
// source/target schema pair.
const saveTemplate = `
WITH not_before AS (
  SELECT db_timestamp FROM projection_offset
  WHERE projection_id = $1
  FOR UPDATE
),
to_upsert AS (
  SELECT $1::STRING, $2::UUID, $3::TIMESTAMPTZ, $4::TIMESTAMPTZ, $5::JSONB
  WHERE (SELECT count(*) FROM not_before) = 0
     OR $3::TIMESTAMPTZ >= (SELECT db_timestamp FROM not_before)
)
UPSERT INTO projection_offset
  (projection_id, save_id, db_timestamp, read_db_timestamp, seen)
SELECT * FROM to_upsert`

// Save persists offset under projectionID. A save whose Timestamp is
// older than what is already stored is silently ignored.
func (s *Store) Save(ctx context.Context, projectionID string, offset types.TimestampOffset) error {
	seen, err := json.Marshal(offset.Seen)
	if err != nil {
		return errors.Wrap(err, "marshaling seen map")
	}

	_, err = s.Pool.Exec(ctx, saveTemplate,
		projectionID, uuid.New(), offset.Timestamp, offset.ReadTimestamp, seen)
	return errors.Wrap(err, "saving projection offset")
}

const loadTemplate = `
SELECT db_timestamp, read_db_timestamp, seen
FROM projection_offset
WHERE projection_id = $1`

// Load returns the persisted offset for projectionID, or the zero offset
// if none has been saved yet.
func (s *Store) Load(ctx context.Context, projectionID string) (types.TimestampOffset, error) {
	var seen []byte
	offset := types.ZeroOffset()
	row := s.Pool.QueryRow(ctx, loadTemplate, projectionID)
	err := row.Scan(&offset.Timestamp, &offset.ReadTimestamp, &seen)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ZeroOffset(), nil
	}
	if err != nil {
		return types.TimestampOffset{}, errors.Wrap(err, "loading projection offset")
	}
	if err := json.Unmarshal(seen, &offset.Seen); err != nil {
		return types.TimestampOffset{}, errors.Wrap(err, "unmarshaling seen map")
	}
	return offset, nil
}
