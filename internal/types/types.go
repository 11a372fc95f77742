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

// Package types contains the data types and external interfaces that the
// by-slice streaming query engine is built around. The goal of placing
// the types into their own leaf package is to make it easy to compose
// the core (internal/offset, internal/query) against alternative Row
// Source implementations without an import cycle back into
// internal/source/postgres.
package types

import (
	"context"
	"hash/fnv"
	"time"
)

// Mode distinguishes event-sourced rows (immutable, append-only SeqNr)
// from durable-state rows (SeqNr is a revision counter). The core's
// ordering and dedup rules treat SeqNr purely as a numeric tie-breaker in
// both cases, so this field is passthrough metadata attached by the Row
// Source, not a branch point for the core.
type Mode int

// Recognized row modes.
const (
	ModeUnspecified Mode = iota
	ModeEventSourced
	ModeDurableState
)

// Row is a single persisted record as produced by the Row Source,
// ordered (within one sub-stream) by (DBTimestamp ASC, SeqNr ASC).
type Row struct {
	PersistenceID   string
	SeqNr           int64
	DBTimestamp     time.Time
	ReadDBTimestamp time.Time
	Mode            Mode

	// Payload and serializer identifiers are opaque to the core; it
	// never inspects them, only passes them through to the caller's
	// EnvelopeFactory.
	Payload            []byte
	SerializerID       int32
	SerializerManifest string
}

// TimestampOffset is the cumulative, resumable cursor described in
// spec.md §3. Use ZeroOffset for the canonical empty value — the bare
// zero value of this struct has a zero time.Time for Timestamp, which is
// year 1, not EPOCH, and would compare incorrectly against rows read
// from a database clock.
type TimestampOffset struct {
	Timestamp     time.Time
	ReadTimestamp time.Time

	// Seen holds, for every persistenceId whose DBTimestamp == Timestamp,
	// the largest SeqNr observed so far. It is reset to a singleton
	// whenever Timestamp advances.
	Seen map[string]int64
}

// epoch is the canonical zero instant for TimestampOffset.Timestamp.
var epoch = time.Unix(0, 0).UTC()

// ZeroOffset is the canonical empty TimestampOffset: Timestamp = EPOCH,
// empty Seen.
func ZeroOffset() TimestampOffset {
	return TimestampOffset{Timestamp: epoch}
}

// IsZero reports whether o is the canonical empty offset.
func (o TimestampOffset) IsZero() bool {
	return o.Timestamp.Equal(epoch) && len(o.Seen) == 0
}

// Clone returns a deep copy of o so that callers may mutate the returned
// Seen map without affecting the original.
func (o TimestampOffset) Clone() TimestampOffset {
	seen := make(map[string]int64, len(o.Seen))
	for k, v := range o.Seen {
		seen[k] = v
	}
	return TimestampOffset{Timestamp: o.Timestamp, ReadTimestamp: o.ReadTimestamp, Seen: seen}
}

// CoerceOffset implements the §6 "offset coercion" rule: an absent
// opaque offset becomes ZeroOffset. Callers that already hold a
// *TimestampOffset (e.g. round-tripped through an offset store) pass it
// straight through; nil coerces to the zero offset.
func CoerceOffset(o *TimestampOffset) TimestampOffset {
	if o == nil {
		return ZeroOffset()
	}
	return *o
}

// Envelope is the caller-facing record wrapping a Row plus its
// TimestampOffset. The engine is agnostic to its concrete shape — callers
// supply the factory (EnvelopeFactory) and the accessor their own
// Envelope implementation exposes.
type Envelope interface {
	// Offset returns the TimestampOffset this envelope was created with.
	// Implementations must return exactly the offset passed to the
	// EnvelopeFactory that produced them (the §6 round-trip contract).
	Offset() TimestampOffset
}

// EnvelopeFactory builds a caller-facing Envelope from an offset and the
// Row it was derived from.
type EnvelopeFactory func(offset TimestampOffset, row Row) Envelope

// RowSource is the external collaborator that knows how to read rows out
// of the underlying relational store. Implementations must return rows
// ordered by (DBTimestamp ASC, SeqNr ASC), limited to at most the
// implementation-chosen buffer size, honoring every predicate named in
// spec.md §6.
type RowSource interface {
	RowsBySlices(
		ctx context.Context,
		entityType string,
		minSlice, maxSlice int,
		fromTimestamp time.Time,
		toTimestamp *time.Time,
		behindCurrentTime time.Duration,
		backtracking bool,
	) ([]Row, error)
}

// ClockOracle returns the database's own transaction-time clock. The
// Current-Query Mode calls this exactly once per call to freeze a "now"
// snapshot (spec.md §4.3); it must never be substituted with a local
// clock (spec.md §9 DESIGN NOTES).
type ClockOracle interface {
	CurrentDBTimestamp(ctx context.Context) (time.Time, error)
}

// SliceRangeForEntity computes a stable, deterministic slice assignment
// for a persistenceId, matching the glossary's "deterministic partition
// key derived from persistenceId". FNV-1a keeps this allocation-light and
// independent of map iteration order.
func SliceRangeForEntity(persistenceID string, numSlices int) int {
	if numSlices <= 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(persistenceID))
	return int(h.Sum32() % uint32(numSlices))
}
