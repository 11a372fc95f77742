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

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/cockroachdb/slicequery/internal/types"
)

// RowSource is the Postgres/CockroachDB-backed types.RowSource against
// the event_journal table created by this package's migrations.
type RowSource struct {
	Pool       *Pool
	BufferSize int
}

var _ types.RowSource = (*RowSource)(nil)

// RowsBySlices implements types.RowSource, matching every predicate
// named in spec.md §6: entity_type, slice range, db_timestamp lower
// bound, optional db_timestamp upper bound, and an optional
// behind-current-time horizon, ordered (db_timestamp, seq_nr) and capped
// at BufferSize rows. When backtracking is true, the payload and
// serializer columns are elided from the query, matching the "MAY elide
// payload fields" allowance of spec.md §6.
func (s *RowSource) RowsBySlices(
	ctx context.Context,
	entityType string,
	minSlice, maxSlice int,
	fromTimestamp time.Time,
	toTimestamp *time.Time,
	behindCurrentTime time.Duration,
	backtracking bool,
) ([]types.Row, error) {
	columns := "persistence_id, seq_nr, db_timestamp, mode, serializer_id, serializer_manifest, payload"
	if backtracking {
		columns = "persistence_id, seq_nr, db_timestamp, mode, 0, '', NULL"
	}

	args := []any{entityType, minSlice, maxSlice, fromTimestamp}
	predicate := ""
	if toTimestamp != nil {
		args = append(args, *toTimestamp)
		predicate += fmt.Sprintf(" AND db_timestamp < $%d", len(args))
	}
	if behindCurrentTime > 0 {
		args = append(args, behindCurrentTime.Seconds())
		predicate += fmt.Sprintf(" AND db_timestamp < now() - make_interval(secs => $%d)", len(args))
	}
	args = append(args, s.BufferSize)

	query := fmt.Sprintf(`
SELECT %s, statement_timestamp()
FROM event_journal
WHERE entity_type = $1
  AND slice BETWEEN $2 AND $3
  AND db_timestamp >= $4%s
ORDER BY db_timestamp ASC, seq_nr ASC
LIMIT $%d`, columns, predicate, len(args))

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "rowsBySlices")
	}
	defer rows.Close()

	var out []types.Row
	for rows.Next() {
		var r types.Row
		var mode int16
		if err := rows.Scan(
			&r.PersistenceID, &r.SeqNr, &r.DBTimestamp, &mode,
			&r.SerializerID, &r.SerializerManifest, &r.Payload,
			&r.ReadDBTimestamp,
		); err != nil {
			return nil, errors.Wrap(err, "scanning row")
		}
		r.Mode = types.Mode(mode)
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterating rows")
}
