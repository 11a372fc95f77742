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

// Command slicequery runs the by-slice streaming query engine against a
// configured Postgres/CockroachDB connection, emitting rows to its own
// log and persisting each emitted offset so a restart resumes instead
// of replaying from EPOCH.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/cockroachdb/slicequery/internal/query"
	"github.com/cockroachdb/slicequery/internal/server"
	"github.com/cockroachdb/slicequery/internal/types"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("slicequery exited")
	}
}

func run() error {
	var current bool
	var verbose bool
	flags := pflag.CommandLine
	flags.BoolVar(&current, "current", false,
		"run a single Current-Query Mode pass and exit, instead of Live-Query Mode")
	flags.BoolVar(&verbose, "verbose", false, "enable debug logging")

	config := &server.Config{}
	config.Bind(flags)
	if err := flags.Parse(os.Args[1:]); err != nil {
		return errors.Wrap(err, "parsing flags")
	}

	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := server.NewEngine(ctx, config)
	if err != nil {
		return errors.Wrap(err, "assembling engine")
	}
	defer cleanup()

	diag := &server.Diagnostics{Engine: engine}
	httpServer := &http.Server{Addr: config.BindAddr, Handler: diag.Handler()}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("diagnostics server stopped")
		}
	}()
	defer httpServer.Close()

	if current {
		return runCurrent(ctx, engine, config)
	}
	return runLive(ctx, engine, config)
}

// emit logs each envelope and persists its offset, so a later restart
// resumes from the last emitted row instead of replaying from EPOCH.
// The projection id is the entity type: this command runs at most one
// live query per entity type, so no finer-grained key is needed.
func emit(ctx context.Context, store offsetStoreSaver, entityType string) func(types.Envelope) error {
	return func(env types.Envelope) error {
		offset := env.Offset()
		log.WithFields(log.Fields{
			"entityType": entityType,
			"timestamp":  offset.Timestamp,
		}).Debug("emitted row")
		return store.Save(ctx, entityType, offset)
	}
}

// offsetStoreSaver is the narrow slice of *offsetstore.Store main needs,
// named so emit's signature doesn't have to import internal/offsetstore
// directly.
type offsetStoreSaver = interface {
	Save(ctx context.Context, projectionID string, offset types.TimestampOffset) error
}

func runCurrent(ctx context.Context, engine *server.Engine, config *server.Config) error {
	initialOffset, err := engine.OffsetStore.Load(ctx, config.EntityType)
	if err != nil {
		return errors.Wrap(err, "loading initial offset")
	}

	return query.CurrentBySlices(
		ctx,
		"slicequery",
		engine.RowSource,
		engine.Clock,
		config.EntityType,
		config.MinSlice, config.MaxSlice, config.BufferSize,
		initialOffset,
		newEnvelope,
		emit(ctx, engine.OffsetStore, config.EntityType),
	)
}

func runLive(ctx context.Context, engine *server.Engine, config *server.Config) error {
	initialOffset, err := engine.OffsetStore.Load(ctx, config.EntityType)
	if err != nil {
		return errors.Wrap(err, "loading initial offset")
	}

	return query.LiveBySlices(
		ctx,
		"slicequery",
		engine.RowSource,
		config.EntityType,
		config.MinSlice, config.MaxSlice,
		initialOffset,
		engine.Settings,
		newEnvelope,
		emit(ctx, engine.OffsetStore, config.EntityType),
	)
}
