/*
 * Copyright 2025 The LiveScratch Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/livescratch/livescratch/internal/version"
)

const (
	namespace     = "livescratch"
	taskTypeLabel = "task_type"
	outcomeLabel  = "outcome"
	codeLabel     = "code"
)

// Metrics manages the metric information that LiveScratch is trying to
// measure.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec
	httpHandled   *prometheus.CounterVec

	editsTotal          prometheus.Counter
	editRejectsTotal    *prometheus.CounterVec
	broadcastDropsTotal prometheus.Counter
	reconcileTotal      *prometheus.CounterVec

	snapshotsTotal          prometheus.Counter
	snapshotDurationSeconds prometheus.Histogram

	persistDurationSeconds prometheus.Histogram
	persistFailuresTotal   prometheus.Counter

	loadedProjects prometheus.Gauge
	activeSessions prometheus.Gauge
	shutdownPhase  prometheus.Gauge

	backgroundGoroutinesTotal *prometheus.GaugeVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	factory := promauto.With(reg)
	metrics := &Metrics{
		registry: reg,
		serverVersion: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		httpHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "handled_total",
			Help:      "Total number of HTTP requests completed, regardless of success or failure.",
		}, []string{"method", "route", "status"}),
		editsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "project",
			Name:      "edits_total",
			Help:      "The total count of edits appended to change logs.",
		}),
		editRejectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "project",
			Name:      "edit_rejects_total",
			Help:      "The total count of rejected edits by error code.",
		}, []string{codeLabel}),
		broadcastDropsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "project",
			Name:      "broadcast_drops_total",
			Help:      "The total count of messages a session could not receive.",
		}),
		reconcileTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "project",
			Name:      "reconcile_total",
			Help:      "The total count of reconciliations by outcome.",
		}, []string{outcomeLabel}),
		snapshotsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "created_total",
			Help:      "The total count of snapshots folded from change logs.",
		}),
		snapshotDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "duration_seconds",
			Help:      "The time spent folding change logs into snapshots.",
		}),
		persistDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_duration_seconds",
			Help:      "The time spent writing a project to the snapshot store.",
		}),
		persistFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_failures_total",
			Help:      "The total count of failed project writes.",
		}),
		loadedProjects: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "loaded_projects",
			Help:      "The number of projects with a running actor.",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "active_sessions",
			Help:      "The number of connected sessions.",
		}),
		shutdownPhase: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "shutdown_phase",
			Help:      "0 active, 1 draining, 2 saving, 3 done.",
		}),
		backgroundGoroutinesTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The total number of goroutines attached by background.",
		}, []string{taskTypeLabel}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// AddHTTPHandled counts a completed HTTP request.
func (m *Metrics) AddHTTPHandled(method, route string, status int) {
	m.httpHandled.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// AddEdit counts an appended edit.
func (m *Metrics) AddEdit() {
	m.editsTotal.Inc()
}

// AddEditRejected counts a rejected edit.
func (m *Metrics) AddEditRejected(code string) {
	m.editRejectsTotal.WithLabelValues(code).Inc()
}

// AddBroadcastDrop counts a message a session could not receive.
func (m *Metrics) AddBroadcastDrop() {
	m.broadcastDropsTotal.Inc()
}

// AddReconcile counts a reconciliation with the given outcome.
func (m *Metrics) AddReconcile(outcome string) {
	m.reconcileTotal.WithLabelValues(outcome).Inc()
}

// ObserveSnapshot records a folded snapshot.
func (m *Metrics) ObserveSnapshot(d time.Duration) {
	m.snapshotsTotal.Inc()
	m.snapshotDurationSeconds.Observe(d.Seconds())
}

// ObservePersist records a project write.
func (m *Metrics) ObservePersist(d time.Duration) {
	m.persistDurationSeconds.Observe(d.Seconds())
}

// AddPersistFailure counts a failed project write.
func (m *Metrics) AddPersistFailure() {
	m.persistFailuresTotal.Inc()
}

// SetLoadedProjects sets the number of running actors.
func (m *Metrics) SetLoadedProjects(n int) {
	m.loadedProjects.Set(float64(n))
}

// AddActiveSessions adds delta to the number of connected sessions.
func (m *Metrics) AddActiveSessions(delta int) {
	m.activeSessions.Add(float64(delta))
}

// SetShutdownPhase records the current shutdown phase.
func (m *Metrics) SetShutdownPhase(phase int) {
	m.shutdownPhase.Set(float64(phase))
}

// AddBackgroundGoroutines adds the number of goroutines attached by
// background.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Inc()
}

// RemoveBackgroundGoroutines removes the number of goroutines attached by
// background.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Dec()
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
