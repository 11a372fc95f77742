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

//go:build wireinject
// +build wireinject

package server

import (
	"context"

	"github.com/google/wire"
)

// NewEngine assembles the Postgres-backed RowSource, ClockOracle,
// Settings, and offset Store behind a single call, for use by
// cmd/slicequery.
func NewEngine(ctx context.Context, config *Config) (*Engine, func(), error) {
	panic(wire.Build(Set, wire.Struct(new(Engine), "*")))
}
