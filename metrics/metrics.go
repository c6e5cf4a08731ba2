// DAQctl
// Copyright (C) 2015-2026+ the ATTPC collaboration and contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package metrics exposes the control plane's own Prometheus instance,
// adapted from prometheus/prometheus.go's managed-resource gauges to the DAQ
// domain: counts of ECCs by state, counts of online routers, fleet overall
// state, and change-state attempt/failure counters.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/attpc/daqctl/model"
)

// DefaultListen is the address the metrics HTTP server binds, following the
// convention prometheus/prometheus.go documents for its own default.
const DefaultListen = "127.0.0.1:9234"

// Metrics owns every Prometheus collector this control plane registers.
// Init must be called once before Start.
type Metrics struct {
	Listen string

	mu sync.Mutex

	eccServersByState   *prometheus.GaugeVec
	dataRoutersOnline   *prometheus.GaugeVec
	fleetOverallState   *prometheus.GaugeVec
	changeStateAttempts *prometheus.CounterVec
	changeStateFailures *prometheus.CounterVec
	tasksAbandonedTotal prometheus.Counter
}

// Init registers every collector. Safe to call once per process; a second
// call against the default Prometheus registry would panic, same as
// prometheus.MustRegister always has.
func (m *Metrics) Init() {
	if m.Listen == "" {
		m.Listen = DefaultListen
	}

	m.eccServersByState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "daqctl_ecc_servers",
		Help: "Number of ECC servers, by state.",
	}, []string{"state"})
	prometheus.MustRegister(m.eccServersByState)

	m.dataRoutersOnline = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "daqctl_data_routers_online",
		Help: "Number of data routers currently reachable.",
	}, []string{"experiment"})
	prometheus.MustRegister(m.dataRoutersOnline)

	m.fleetOverallState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "daqctl_fleet_overall_state",
		Help: "1 if the named experiment's fleet currently reports the given overall state, else 0.",
	}, []string{"experiment", "state"})
	prometheus.MustRegister(m.fleetOverallState)

	m.changeStateAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daqctl_change_state_attempts_total",
		Help: "Number of changeState calls submitted, by target state.",
	}, []string{"target"})
	prometheus.MustRegister(m.changeStateAttempts)

	m.changeStateFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daqctl_change_state_failures_total",
		Help: "Number of changeState calls that returned a RemoteError or TransportError.",
	}, []string{"target", "kind"})
	prometheus.MustRegister(m.changeStateFailures)

	m.tasksAbandonedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daqctl_tasks_abandoned_total",
		Help: "Number of dispatched tasks that hit their hard time limit and were abandoned.",
	})
	prometheus.MustRegister(m.tasksAbandonedTotal)
}

// Start runs the /metrics HTTP server in a goroutine. It never blocks.
func (m *Metrics) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(m.Listen, mux)
}

// ObserveECCServers recomputes the per-state ECC gauge from the current
// fleet snapshot.
func (m *Metrics) ObserveECCServers(servers []model.ECCServer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := map[model.State]int{}
	for _, s := range servers {
		counts[s.State]++
	}
	m.eccServersByState.Reset()
	for _, st := range []model.State{model.IDLE, model.DESCRIBED, model.PREPARED, model.READY, model.RUNNING} {
		m.eccServersByState.With(prometheus.Labels{"state": st.String()}).Set(float64(counts[st]))
	}
}

// ObserveDataRouters recomputes the online-router gauge for one experiment.
func (m *Metrics) ObserveDataRouters(experimentName string, routers []model.DataRouter) {
	online := 0
	for _, r := range routers {
		if r.IsOnline {
			online++
		}
	}
	m.dataRoutersOnline.With(prometheus.Labels{"experiment": experimentName}).Set(float64(online))
}

// ObserveFleetState sets the overall-state gauge for one experiment,
// zeroing every other state label so only the current one reads 1.
func (m *Metrics) ObserveFleetState(experimentName, overallState string) {
	for _, st := range []string{"Idle", "Described", "Prepared", "Ready", "Running", "Mixed"} {
		val := 0.0
		if st == overallState {
			val = 1.0
		}
		m.fleetOverallState.With(prometheus.Labels{"experiment": experimentName, "state": st}).Set(val)
	}
}

// RecordChangeStateAttempt increments the attempt counter for target.
func (m *Metrics) RecordChangeStateAttempt(target string) {
	m.changeStateAttempts.With(prometheus.Labels{"target": target}).Inc()
}

// RecordChangeStateFailure increments the failure counter for (target, kind).
func (m *Metrics) RecordChangeStateFailure(target, kind string) {
	m.changeStateFailures.With(prometheus.Labels{"target": target, "kind": kind}).Inc()
}

// RecordTaskAbandoned increments the abandoned-task counter.
func (m *Metrics) RecordTaskAbandoned() {
	m.tasksAbandonedTotal.Inc()
}
