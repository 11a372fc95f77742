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

package query

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrEmptyClock is wrapped by the error CurrentBySlices returns when the
// Clock Oracle fails to produce a snapshot (spec.md §7: "Empty result
// from Clock Oracle: fatal").
var ErrEmptyClock = errors.New("clock oracle returned no snapshot")

// ErrOutOfOrder is wrapped by the error LiveBySlices returns when the Row
// Source yields a row whose DBTimestamp precedes the accumulator it
// should be extending (spec.md §4.4/§7: a fatal invariant violation).
var ErrOutOfOrder = errors.New("row out of order")

func errEmptyClock(logPrefix string, cause error) error {
	return errors.Wrapf(ErrEmptyClock, "%s: %v", logPrefix, cause)
}

func errOutOfOrder(logPrefix string, accumulated, row time.Time) error {
	err := errors.Wrapf(
		ErrOutOfOrder,
		"%s: row dbTimestamp %s is before accumulated offset %s",
		logPrefix, row, accumulated,
	)
	log.WithFields(log.Fields{
		"logPrefix":   logPrefix,
		"accumulated": accumulated,
		"row":         row,
	}).Error("row out of order")
	return err
}
