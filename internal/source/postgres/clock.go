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
	"time"

	"github.com/pkg/errors"

	"github.com/cockroachdb/slicequery/internal/types"
)

// Clock is the concrete types.ClockOracle against the same pool the
// RowSource reads from. It asks the database for its own transaction
// time rather than trusting the caller's wall clock, matching spec.md
// §9's prohibition on substituting a local clock for the db_timestamp
// snapshot taken by Current-Query Mode.
type Clock struct {
	Pool *Pool
}

var _ types.ClockOracle = (*Clock)(nil)

// CurrentDBTimestamp returns the result of transaction_timestamp() as
// observed by a fresh, single-statement query against Pool.
func (c *Clock) CurrentDBTimestamp(ctx context.Context) (time.Time, error) {
	var now time.Time
	err := c.Pool.QueryRow(ctx, "SELECT transaction_timestamp()").Scan(&now)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "currentDBTimestamp")
	}
	return now, nil
}
