/*
 * Copyright 2026 The Tandem Authors. All rights reserved.
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

// Package prometheus provides the Prometheus metrics of the Tandem server.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tandem-team/tandem/internal/version"
)

const (
	namespace        = "tandem"
	resultLabel      = "result"
	taskTypeLabel    = "task_type"
	messageTypeLabel = "message_type"
)

// Metrics holds the collectors of the server. A nil *Metrics discards every
// observation, which keeps tests free of registry setup.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec

	sessions     prometheus.Gauge
	participants prometheus.Gauge

	operationsTotal      *prometheus.CounterVec
	submitSeconds        prometheus.Histogram
	rebaseDepth          prometheus.Histogram
	broadcastsTotal      *prometheus.CounterVec
	lockRequestsTotal    *prometheus.CounterVec
	lockExpirationsTotal prometheus.Counter

	snapshotFlushSeconds       prometheus.Histogram
	snapshotFlushFailuresTotal prometheus.Counter

	backgroundGoroutinesTotal *prometheus.GaugeVec
	websocketConnections      prometheus.Gauge
}

// NewMetrics creates the collectors on a fresh registry.
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
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "The number of collaboration sessions in memory.",
		}),
		participants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "participants",
			Help:      "The number of participants across all sessions.",
		}),
		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ot",
			Name:      "operations_total",
			Help:      "The total number of submitted operations by result.",
		}, []string{resultLabel}),
		submitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ot",
			Name:      "submit_seconds",
			Help:      "The time spent accepting or rejecting one operation.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		rebaseDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ot",
			Name:      "rebase_depth",
			Help:      "The number of concurrent operations an operation was transformed through.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 64, 256},
		}),
		broadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "broadcasts_total",
			Help:      "The total number of broadcast messages by type.",
		}, []string{messageTypeLabel}),
		lockRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "requests_total",
			Help:      "The total number of lock requests and releases by result.",
		}, []string{resultLabel}),
		lockExpirationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "expirations_total",
			Help:      "The total number of locks that lapsed without being released.",
		}),
		snapshotFlushSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "flush_seconds",
			Help:      "The time spent writing one document snapshot to storage.",
		}),
		snapshotFlushFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "flush_failures_total",
			Help:      "The total number of snapshot writes that failed.",
		}),
		backgroundGoroutinesTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The number of goroutines attached by a particular background task.",
		}, []string{taskTypeLabel}),
		websocketConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "websocket_connections",
			Help:      "The number of open websocket connections.",
		}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// AddSession counts a session created in memory.
func (m *Metrics) AddSession() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// RemoveSession counts a destroyed session.
func (m *Metrics) RemoveSession() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// AddParticipants adjusts the participant gauge by delta.
func (m *Metrics) AddParticipants(delta int) {
	if m == nil {
		return
	}
	m.participants.Add(float64(delta))
}

// AddOperation counts a submitted operation with its result: accepted,
// duplicate or the rejection code.
func (m *Metrics) AddOperation(result string) {
	if m == nil {
		return
	}
	m.operationsTotal.With(prometheus.Labels{resultLabel: result}).Inc()
}

// ObserveSubmitSeconds records the latency of one submission.
func (m *Metrics) ObserveSubmitSeconds(seconds float64) {
	if m == nil {
		return
	}
	m.submitSeconds.Observe(seconds)
}

// ObserveRebaseDepth records how far an operation was rebased.
func (m *Metrics) ObserveRebaseDepth(depth int) {
	if m == nil {
		return
	}
	m.rebaseDepth.Observe(float64(depth))
}

// AddBroadcast counts one broadcast message of the given type.
func (m *Metrics) AddBroadcast(messageType string) {
	if m == nil {
		return
	}
	m.broadcastsTotal.With(prometheus.Labels{messageTypeLabel: messageType}).Inc()
}

// AddLockRequest counts a lock request or release by result.
func (m *Metrics) AddLockRequest(result string) {
	if m == nil {
		return
	}
	m.lockRequestsTotal.With(prometheus.Labels{resultLabel: result}).Inc()
}

// AddLockExpiration counts a lock that lapsed.
func (m *Metrics) AddLockExpiration() {
	if m == nil {
		return
	}
	m.lockExpirationsTotal.Inc()
}

// ObserveSnapshotFlushSeconds records the duration of a snapshot write.
func (m *Metrics) ObserveSnapshotFlushSeconds(seconds float64) {
	if m == nil {
		return
	}
	m.snapshotFlushSeconds.Observe(seconds)
}

// AddSnapshotFlushFailure counts a failed snapshot write.
func (m *Metrics) AddSnapshotFlushFailure() {
	if m == nil {
		return
	}
	m.snapshotFlushFailuresTotal.Inc()
}

// AddBackgroundGoroutines adds a goroutine attached by a background task.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	if m == nil {
		return
	}
	m.backgroundGoroutinesTotal.With(prometheus.Labels{taskTypeLabel: taskType}).Inc()
}

// RemoveBackgroundGoroutines removes a goroutine attached by a background task.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	if m == nil {
		return
	}
	m.backgroundGoroutinesTotal.With(prometheus.Labels{taskTypeLabel: taskType}).Dec()
}

// AddWebSocketConnection counts an opened connection.
func (m *Metrics) AddWebSocketConnection() {
	if m == nil {
		return
	}
	m.websocketConnections.Inc()
}

// RemoveWebSocketConnection counts a closed connection.
func (m *Metrics) RemoveWebSocketConnection() {
	if m == nil {
		return
	}
	m.websocketConnections.Dec()
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
