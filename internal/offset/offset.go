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

// Package offset implements the TimestampOffset merge rule (spec.md
// §4.1) and the stateful Row-to-Envelope transform built on top of it.
package offset

import "github.com/cockroachdb/slicequery/internal/types"

// Advance applies the §4.1 per-row rule to prev, given the next row seen
// on the stream. It returns the new accumulated offset and whether the
// row should be emitted (false means the row is a duplicate and must be
// dropped).
//
// Advance never mutates prev.Seen; callers that advance across a whole
// sub-stream should thread the returned offset into the next call,
// exactly as Stage does.
func Advance(prev types.TimestampOffset, row types.Row) (next types.TimestampOffset, emit bool) {
	if row.DBTimestamp.Equal(prev.Timestamp) {
		if last, ok := prev.Seen[row.PersistenceID]; ok && last >= row.SeqNr {
			return prev, false
		}
		seen := prev.Clone().Seen
		seen[row.PersistenceID] = row.SeqNr
		return types.TimestampOffset{
			Timestamp:     row.DBTimestamp,
			ReadTimestamp: row.ReadDBTimestamp,
			Seen:          seen,
		}, true
	}

	// row.DBTimestamp must be strictly after prev.Timestamp by the Row
	// Source's ordering contract; callers that need to enforce this as a
	// fatal invariant (live mode, spec.md §4.4/§7) check the returned
	// offset against their own accumulator themselves, since Advance
	// alone cannot tell an out-of-order row from the first row of a
	// fresh stream.
	return types.TimestampOffset{
		Timestamp:     row.DBTimestamp,
		ReadTimestamp: row.ReadDBTimestamp,
		Seen:          map[string]int64{row.PersistenceID: row.SeqNr},
	}, true
}
