// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes pimd's runtime state as Prometheus collectors
// (spec §6.3): neighbor and MRE population, task-queue depth, BSR/RP-set
// state, and per-message-type packet counters, the way the rest of the
// pack instruments its long-running subsystems.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector pimd exposes under one
// *prometheus.Registry, so a single HTTP handler serves them all.
type Registry struct {
	reg *prometheus.Registry

	NeighborCount  *prometheus.GaugeVec
	MREEntries     *prometheus.GaugeVec
	TaskQueueDepth prometheus.Gauge
	RPSetSize      prometheus.Gauge
	IsBSR          prometheus.Gauge
	IAmDR          *prometheus.GaugeVec

	PacketsReceived *prometheus.CounterVec
	PacketsSent     *prometheus.CounterVec
	PacketsDropped  *prometheus.CounterVec
	ConfigReload    *prometheus.CounterVec
}

// New creates and registers every pimd collector against a fresh
// registry, isolated from prometheus's global DefaultRegisterer so tests
// can construct as many Registry values as they need.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		NeighborCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pimd",
			Name:      "neighbors",
			Help:      "Number of active PIM neighbors, per vif.",
		}, []string{"vif"}),
		MREEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pimd",
			Name:      "mre_entries",
			Help:      "Number of multicast routing entries, per entry kind.",
		}, []string{"kind"}),
		TaskQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pimd",
			Name:      "task_queue_depth",
			Help:      "Number of tasks pending in the event-loop queue after the last drain.",
		}),
		RPSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pimd",
			Name:      "rp_set_size",
			Help:      "Number of RP entries currently known (static + learned via BSR).",
		}),
		IsBSR: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pimd",
			Name:      "is_bsr",
			Help:      "1 if this router is the elected Bootstrap Router for its zone, 0 otherwise.",
		}),
		IAmDR: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pimd",
			Name:      "is_dr",
			Help:      "1 if this router is the elected Designated Router on the vif, 0 otherwise.",
		}, []string{"vif"}),
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pimd",
			Name:      "packets_received_total",
			Help:      "PIM control messages received, per message type.",
		}, []string{"type"}),
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pimd",
			Name:      "packets_sent_total",
			Help:      "PIM control messages sent, per message type.",
		}, []string{"type"}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pimd",
			Name:      "packets_dropped_total",
			Help:      "PIM control messages dropped, per reason.",
		}, []string{"reason"}),
		ConfigReload: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pimd",
			Name:      "config_reload_total",
			Help:      "Configuration reload attempts, per outcome.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		r.NeighborCount,
		r.MREEntries,
		r.TaskQueueDepth,
		r.RPSetSize,
		r.IsBSR,
		r.IAmDR,
		r.PacketsReceived,
		r.PacketsSent,
		r.PacketsDropped,
		r.ConfigReload,
	)
	return r
}

// Handler returns the HTTP handler serving this registry's metrics in
// the Prometheus exposition format, mounted by pimd's main at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
