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

// Package stopper provides a cancellable context that also supervises a
// group of goroutines. internal/source/postgres uses it to close its
// connection pool once the owning context stops; the query driver's
// suspension points select on their ctx directly and do not use it.
package stopper

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Context wraps a context.Context with goroutine supervision. Callers
// spawn supervised work with Go; Stop requests a graceful shutdown and
// Wait blocks until every supervised goroutine has returned.
type Context struct {
	context.Context

	mu struct {
		sync.Mutex
		stopping bool
		err      error
	}
	stop chan struct{}
	wg   sync.WaitGroup

	stopOnce sync.Once
	cancel   context.CancelFunc
}

// WithContext creates a new stopper.Context whose Done channel fires
// when either the parent is canceled or Stop is called.
func WithContext(parent context.Context) *Context {
	ctx, cancel := context.WithCancel(parent)
	c := &Context{Context: ctx, stop: make(chan struct{}), cancel: cancel}
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c
}

// Stopping returns a channel that is closed once Stop has been called
// (or the parent context was canceled). Loops select on this alongside
// ctx.Done() so that cancellation never leaks a pending timer or
// in-flight read (spec.md §5).
func (c *Context) Stopping() <-chan struct{} {
	return c.stop
}

// Stop requests a graceful shutdown: Stopping's channel is closed and the
// wrapped context is canceled. Stop is idempotent.
func (c *Context) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.mu.stopping = true
		c.mu.Unlock()
		close(c.stop)
		c.cancel()
	})
}

// Go launches fn in a supervised goroutine. If fn returns a non-nil
// error, it is recorded (the first error wins) and Stop is called so
// sibling goroutines unwind.
func (c *Context) Go(fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(); err != nil {
			c.mu.Lock()
			if c.mu.err == nil {
				c.mu.err = err
			}
			c.mu.Unlock()
			c.Stop()
		}
	}()
}

// Wait blocks until every goroutine started with Go has returned and
// returns the first error any of them reported, if any.
func (c *Context) Wait() error {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.err
}

// ErrStopped is returned by operations that observe a stopper.Context
// already shutting down and decline to start new work.
var ErrStopped = errors.New("stopper: context is stopping")
