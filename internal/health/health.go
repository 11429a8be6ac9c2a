// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness endpoints for the daemon.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Manager tracks daemon readiness.
type Manager struct {
	ready     atomic.Bool
	startTime time.Time
	version   string
}

// New creates a Manager. The daemon reports not-ready until SetReady.
func New(version string) *Manager {
	return &Manager{startTime: time.Now(), version: version}
}

// SetReady flips the readiness state.
func (m *Manager) SetReady(ready bool) {
	m.ready.Store(ready)
}

type status struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

// Healthz answers liveness checks. Alive as long as the process serves HTTP.
func (m *Manager) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, status{
		Status:  "ok",
		Version: m.version,
		Uptime:  time.Since(m.startTime).Round(time.Second).String(),
	})
}

// Readyz answers readiness checks with 503 until the server is serving.
func (m *Manager) Readyz(w http.ResponseWriter, _ *http.Request) {
	if !m.ready.Load() {
		writeStatus(w, http.StatusServiceUnavailable, status{
			Status: "starting",
			Uptime: time.Since(m.startTime).Round(time.Second).String(),
		})
		return
	}
	writeStatus(w, http.StatusOK, status{
		Status:  "ready",
		Version: m.version,
		Uptime:  time.Since(m.startTime).Round(time.Second).String(),
	})
}

func writeStatus(w http.ResponseWriter, code int, s status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(s)
}
