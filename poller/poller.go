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

// Package poller runs the process-wide scheduler that keeps every ECC's and
// data router's view of the remote world fresh, submitting the three
// "_all" fan-out tasks on fixed intervals. It is deliberately independent
// of converger/converger.go's convergence-timer design: DAQ health polling
// has no notion of "converged and idle", it runs forever at fixed cadence.
package poller

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/attpc/daqctl/daqlog"
	"github.com/attpc/daqctl/dispatch"
)

// Intervals configures how often each fan-out task is submitted. Defaults
// are chosen so every task's hard limit is strictly less than its own
// interval, so a slow tick never overlaps the next.
type Intervals struct {
	EccServerRefresh time.Duration
	EccServerOnline  time.Duration
	DataRouterStatus time.Duration
}

// DefaultIntervals returns the poller's default cadence.
func DefaultIntervals() Intervals {
	return Intervals{
		EccServerRefresh: 15 * time.Second,  // eccserver_refresh_all: hard 10s
		EccServerOnline:  90 * time.Second,  // check_ecc_server_online_all: hard 80s
		DataRouterStatus: 90 * time.Second,  // check_data_router_status_all: hard 80s
	}
}

// Poller drives the Dispatcher on a fixed schedule. One process runs one
// Poller.
type Poller struct {
	disp *dispatch.Dispatcher
	deps *dispatch.Deps
	ivl  Intervals
	logf daqlog.Logf

	// limiter backs off submitting further ticks for a short while after a
	// transport-level failure, instead of hammering a host that is down.
	limiter *rate.Limiter
}

// New builds a Poller. logf receives one warning line per dropped or
// suppressed tick.
func New(disp *dispatch.Dispatcher, deps *dispatch.Deps, ivl Intervals, logf daqlog.Logf) *Poller {
	if logf == nil {
		logf = daqlog.Discard
	}
	return &Poller{
		disp:    disp,
		deps:    deps,
		ivl:     ivl,
		logf:    logf,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Run blocks, ticking the three fan-out tasks on their own intervals until
// ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	refresh := time.NewTicker(p.ivl.EccServerRefresh)
	defer refresh.Stop()
	online := time.NewTicker(p.ivl.EccServerOnline)
	defer online.Stop()
	routers := time.NewTicker(p.ivl.DataRouterStatus)
	defer routers.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			p.tick(dispatch.EccServerRefreshAll(p.disp, p.deps))
		case <-online.C:
			p.tick(dispatch.CheckEccServerOnlineAll(p.disp, p.deps))
		case <-routers.C:
			p.tick(dispatch.CheckDataRouterStatusAll(p.disp, p.deps))
		}
	}
}

// tick submits spec unless the same named task is still in flight from a
// previous tick, or the limiter judges the system still backing off from a
// recent transport failure.
func (p *Poller) tick(spec dispatch.Spec) {
	if !p.limiter.Allow() {
		p.logf("%s: dropped tick, backing off after a recent transport error", spec.Name)
		return
	}
	if ok := p.disp.SubmitUnique(spec); !ok {
		p.logf("%s: suppressed — previous tick is still running", spec.Name)
	}
}

// NoteTransportError takes four tokens from the backoff budget (burst five,
// refilled at one per second) so the next few ticks are throttled; when fewer
// than four tokens remain it takes none. It is called by callers that observe
// a TransportError from a dispatched task.
func (p *Poller) NoteTransportError() {
	p.limiter.AllowN(time.Now(), 4)
}
