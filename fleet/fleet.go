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

// Package fleet aggregates every ECCServer belonging to one Experiment into
// a single operator-facing view, and drives fleet-wide state changes and
// run-boundary bookkeeping on top of the per-ECC primitives in eccstate.
package fleet

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/attpc/daqctl/daqerr"
	"github.com/attpc/daqctl/dispatch"
	"github.com/attpc/daqctl/model"
)

// Mixed is returned by OverallState when the fleet's ECCServers disagree.
// It deliberately sits outside model.State's valid range (1..5).
const Mixed model.State = 0

// RESET is the pseudo-target ChangeStateAll resolves to "one step back from
// the fleet's overall state, floored at IDLE" before doing anything else.
const RESET model.State = -1

// OverallState returns the common state of every ECCServer in servers, or
// Mixed if they disagree. An empty fleet reports Mixed.
func OverallState(servers []model.ECCServer) model.State {
	if len(servers) == 0 {
		return Mixed
	}
	first := servers[0].State
	for _, s := range servers[1:] {
		if s.State != first {
			return Mixed
		}
	}
	return first
}

// OverallStateName renders OverallState's result for display.
func OverallStateName(servers []model.ECCServer) string {
	st := OverallState(servers)
	if st == Mixed {
		return "Mixed"
	}
	return st.String()
}

// nowFunc is overridable in tests.
var nowFunc = time.Now

// ChangeStateAll drives every ECCServer of experimentID one step towards
// target (or towards the RESET-resolved step), submitting one
// eccserver_change_state task per ECC on disp. It also triggers the run
// lifecycle: starting a run when the fleet's resolved target is RUNNING and
// no run is already in progress (reached in practice from READY, the only
// state adjacent to RUNNING), and stopping it (then fanning organizeFiles
// out across every router) when the fleet moves down to READY while a run
// is in progress.
func ChangeStateAll(disp *dispatch.Dispatcher, d *dispatch.Deps, store *model.Store, experimentID int, target model.State) error {
	servers := store.ECCServersForExperiment(experimentID)
	overall := OverallState(servers)

	resolvedTarget := target
	if target == RESET {
		if overall == Mixed {
			return daqerr.New(daqerr.KindInconsistentFleet, "cannot reset a fleet whose ECCs disagree on state")
		}
		resolvedTarget = overall - 1
		if resolvedTarget < model.IDLE {
			resolvedTarget = model.IDLE
		}
	}

	if resolvedTarget == model.RUNNING {
		for _, router := range store.DataRoutersForExperiment(experimentID) {
			if !router.StagingDirectoryIsClean {
				return daqerr.New(daqerr.KindPrerequisiteFailed, "router %s is not ready (staging directory not clean)", router.Name)
			}
		}
	}

	// Per-ECC submit failures are logged, not raised (§4.2): the loop keeps
	// going so one bad row never blocks the rest of the fleet, but the
	// individual errors are still worth surfacing together rather than
	// silently. go-multierror aggregates them the way util/errwrap does for
	// mgmt's own multi-vertex operations.
	var submitErrs *multierror.Error
	for _, ecc := range servers {
		ecc.IsTransitioning = true
		if err := store.UpdateECCServer(ecc); err != nil {
			submitErrs = multierror.Append(submitErrs, fmt.Errorf("ecc %s: %w", ecc.Name, err))
			continue
		}
		disp.Submit(dispatch.EccServerChangeState(d, ecc.ID, resolvedTarget))
	}
	if submitErrs != nil {
		d.LogFunc()("changeStateAll: %v", submitErrs)
	}

	exp, err := store.GetExperiment(experimentID)
	if err != nil {
		return err
	}

	wasRunning := store.IsRunning(experimentID)
	if resolvedTarget == model.RUNNING && !wasRunning {
		if _, err := store.StartRun(experimentID, nowFunc(), "", "", ""); err != nil {
			d.LogFunc()("changeStateAll: startRun for experiment %s: %v", exp.Name, err)
		}
	}

	if resolvedTarget == model.READY && wasRunning {
		run, err := store.StopRun(experimentID, nowFunc())
		if err != nil {
			d.LogFunc()("changeStateAll: stopRun for experiment %s: %v", exp.Name, err)
		} else {
			disp.Submit(dispatch.OrganizeFilesAll(disp, d, experimentID, exp.Name, run.RunNumber))
		}
	}

	return nil
}
