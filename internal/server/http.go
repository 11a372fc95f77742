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
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Diagnostics is the engine's HTTP surface: /healthz and /metrics only.
// There is no authentication or TLS termination here — this engine is a
// library plus a thin diagnostics shim, not a public-facing HTTP service.
type Diagnostics struct {
	Engine *Engine
}

// Handler returns the http.Handler to bind to Config.BindAddr.
func (d *Diagnostics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", d.healthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (d *Diagnostics) healthz(w http.ResponseWriter, r *http.Request) {
	if err := d.Engine.Pool.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
