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
	"github.com/cockroachdb/slicequery/internal/offsetstore"
	"github.com/cockroachdb/slicequery/internal/query"
	"github.com/cockroachdb/slicequery/internal/source/postgres"
)

// Engine bundles every collaborator cmd/slicequery needs to run either
// query mode against a configured Postgres/CockroachDB row source.
type Engine struct {
	Config      *Config
	Pool        *postgres.Pool
	Clock       *postgres.Clock
	RowSource   *postgres.RowSource
	OffsetStore *offsetstore.Store
	Settings    query.Settings
}
