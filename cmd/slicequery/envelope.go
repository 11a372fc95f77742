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

package main

import "github.com/cockroachdb/slicequery/internal/types"

// logEnvelope is the process's own types.Envelope: it only carries
// enough to log and persist the offset, since this command has no
// downstream consumer of its own.
type logEnvelope struct {
	offset types.TimestampOffset
	row    types.Row
}

var _ types.Envelope = logEnvelope{}

func (e logEnvelope) Offset() types.TimestampOffset { return e.offset }

func newEnvelope(offset types.TimestampOffset, row types.Row) types.Envelope {
	return logEnvelope{offset: offset, row: row}
}
