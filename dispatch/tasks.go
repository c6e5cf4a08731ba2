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

package dispatch

import (
	"context"
	"time"

	"github.com/attpc/daqctl/daqerr"
	"github.com/attpc/daqctl/daqlog"
	"github.com/attpc/daqctl/eccstate"
	"github.com/attpc/daqctl/model"
	"github.com/attpc/daqctl/sshworker"
)

// Deps are the collaborators every named task needs to do its work. One Deps
// is shared by the whole Dispatcher; tasks never hold their own copy of
// entity state across a suspension point, only a Deps and a primary key.
type Deps struct {
	Store *model.Store

	// ECCClient resolves the SOAP capability for one ECCServer.
	ECCClient func(ecc model.ECCServer) eccstate.Client

	// Worker resolves the SSH capability for one DataRouter's host.
	Worker func(router model.DataRouter) (*sshworker.Worker, error)

	Logf daqlog.Logf

	// OnTransportError, if set, is called once per task invocation that
	// observes a daqerr.KindTransport failure. The poller wires this to
	// Poller.NoteTransportError so a run of SOAP/SSH connection failures
	// backs off the next few scheduled ticks instead of hammering a host
	// that is down.
	OnTransportError func()
}

func (d *Deps) logf() daqlog.Logf {
	if d.Logf != nil {
		return d.Logf
	}
	return daqlog.Discard
}

// LogFunc exposes the resolved Logf for collaborators outside this package
// (e.g. fleet) that need to log using the same fallback-to-Discard rule.
func (d *Deps) LogFunc() daqlog.Logf {
	return d.logf()
}

// noteIfTransport reports err to OnTransportError when it is (or wraps) a
// daqerr.KindTransport failure.
func (d *Deps) noteIfTransport(err error) {
	if d.OnTransportError != nil && daqerr.Is(err, daqerr.KindTransport) {
		d.OnTransportError()
	}
}

// lookupECC implements the standard "look up the target entity; if absent,
// log an error and return normally" contract shared by every task below.
func (d *Deps) lookupECC(taskName string, pk int) (model.ECCServer, bool) {
	ecc, err := d.Store.GetECCServer(pk)
	if err != nil {
		d.logf()("%s: %v", taskName, err)
		return model.ECCServer{}, false
	}
	return ecc, true
}

func (d *Deps) lookupRouter(taskName string, pk int) (model.DataRouter, bool) {
	router, err := d.Store.GetDataRouter(pk)
	if err != nil {
		d.logf()("%s: %v", taskName, err)
		return model.DataRouter{}, false
	}
	return router, true
}

// EccServerRefreshState builds the eccserver_refresh_state(pk) task.
func EccServerRefreshState(d *Deps, pk int) Spec {
	name := "eccserver_refresh_state"
	return Spec{
		Name: name,
		Soft: 5 * time.Second,
		Hard: 10 * time.Second,
		Fn: func(ctx context.Context) error {
			ecc, ok := d.lookupECC(name, pk)
			if !ok {
				return nil
			}
			client := d.ECCClient(ecc)
			if err := eccstate.RefreshState(ctx, d.Store, client, ecc.ID, d.logf()); err != nil {
				d.logf()("%s(%d): %v", name, pk, err)
				d.noteIfTransport(err)
			}
			return nil
		},
	}
}

// EccServerRefreshAll fans RefreshState out across every known ECCServer.
func EccServerRefreshAll(disp *Dispatcher, d *Deps) Spec {
	name := "eccserver_refresh_all"
	return Spec{
		Name: name,
		Soft: 8 * time.Second,
		Hard: 10 * time.Second,
		Fn: func(ctx context.Context) error {
			for _, ecc := range d.Store.AllECCServers() {
				disp.Submit(EccServerRefreshState(d, ecc.ID))
			}
			return nil
		},
	}
}

// EccServerChangeState builds the eccserver_change_state(pk, target) task.
func EccServerChangeState(d *Deps, pk int, target model.State) Spec {
	name := "eccserver_change_state"
	return Spec{
		Name: name,
		Soft: 45 * time.Second,
		Hard: 60 * time.Second,
		Fn: func(ctx context.Context) error {
			ecc, ok := d.lookupECC(name, pk)
			if !ok {
				return nil
			}
			client := d.ECCClient(ecc)
			if err := eccstate.ChangeState(ctx, d.Store, client, ecc.ID, target, d.logf()); err != nil {
				d.logf()("%s(%d, %s): %v", name, pk, target, err)
				d.noteIfTransport(err)
			}
			return nil
		},
	}
}

// CheckEccServerOnline builds the check_ecc_server_online(pk) task. Liveness
// is probed over SSH against the ECC host, distinct from the SOAP-level
// RefreshState call.
func CheckEccServerOnline(d *Deps, pk int) Spec {
	name := "check_ecc_server_online"
	return Spec{
		Name: name,
		Soft: 10 * time.Second,
		Hard: 40 * time.Second,
		Fn: func(ctx context.Context) error {
			ecc, ok := d.lookupECC(name, pk)
			if !ok {
				return nil
			}
			router, err := d.hostWorkerForECC(ecc)
			if err != nil {
				d.logf()("%s(%d): %v", name, pk, err)
				d.noteIfTransport(err)
				return nil
			}
			defer router.Close()
			online, err := router.CheckEccServerStatus(ctx)
			if err != nil {
				d.logf()("%s(%d): %v", name, pk, err)
				d.noteIfTransport(err)
				return nil
			}
			ecc.IsOnline = online
			if err := d.Store.UpdateECCServer(ecc); err != nil {
				d.logf()("%s(%d): %v", name, pk, err)
			}
			return nil
		},
	}
}

// hostWorkerForECC resolves the SSH worker that runs on the same host as
// ecc, reusing DataRouter's Worker resolver since both processes are
// companions on one machine. A real deployment supplies one Deps.Worker that
// keys off IP address rather than entity type.
func (d *Deps) hostWorkerForECC(ecc model.ECCServer) (*sshworker.Worker, error) {
	return d.Worker(model.DataRouter{IPAddress: ecc.IPAddress})
}

// CheckEccServerOnlineAll fans CheckEccServerOnline out across every ECC.
func CheckEccServerOnlineAll(disp *Dispatcher, d *Deps) Spec {
	name := "check_ecc_server_online_all"
	return Spec{
		Name: name,
		Soft: 60 * time.Second,
		Hard: 80 * time.Second,
		Fn: func(ctx context.Context) error {
			for _, ecc := range d.Store.AllECCServers() {
				disp.Submit(CheckEccServerOnline(d, ecc.ID))
			}
			return nil
		},
	}
}

// CheckDataRouterStatus builds the check_data_router_status(pk) task.
func CheckDataRouterStatus(d *Deps, pk int) Spec {
	name := "check_data_router_status"
	return Spec{
		Name: name,
		Soft: 10 * time.Second,
		Hard: 40 * time.Second,
		Fn: func(ctx context.Context) error {
			router, ok := d.lookupRouter(name, pk)
			if !ok {
				return nil
			}
			w, err := d.Worker(router)
			if err != nil {
				d.logf()("%s(%d): %v", name, pk, err)
				d.noteIfTransport(err)
				return nil
			}
			defer w.Close()
			online, err := w.CheckDataRouterStatus(ctx)
			if err != nil {
				d.logf()("%s(%d): %v", name, pk, err)
				d.noteIfTransport(err)
				return nil
			}
			router.IsOnline = online
			clean, err := w.WorkingDirIsClean(ctx)
			if err == nil {
				router.StagingDirectoryIsClean = clean
			}
			if err := d.Store.UpdateDataRouter(router); err != nil {
				d.logf()("%s(%d): %v", name, pk, err)
			}
			return nil
		},
	}
}

// CheckDataRouterStatusAll fans CheckDataRouterStatus out across every
// DataRouter.
func CheckDataRouterStatusAll(disp *Dispatcher, d *Deps) Spec {
	name := "check_data_router_status_all"
	return Spec{
		Name: name,
		Soft: 60 * time.Second,
		Hard: 80 * time.Second,
		Fn: func(ctx context.Context) error {
			for _, router := range d.Store.AllDataRouters() {
				disp.Submit(CheckDataRouterStatus(d, router.ID))
			}
			return nil
		},
	}
}

// OrganizeFiles builds the organize_files(router_pk, experiment, run) task.
func OrganizeFiles(d *Deps, routerPK int, experiment string, run int) Spec {
	name := "organize_files"
	return Spec{
		Name: name,
		Soft: 30 * time.Second,
		Hard: 40 * time.Second,
		Fn: func(ctx context.Context) error {
			router, ok := d.lookupRouter(name, routerPK)
			if !ok {
				return nil
			}
			w, err := d.Worker(router)
			if err != nil {
				d.logf()("%s(%d, %s, %d): %v", name, routerPK, experiment, run, err)
				d.noteIfTransport(err)
				return nil
			}
			defer w.Close()
			if err := w.OrganizeFiles(ctx, experiment, run); err != nil {
				d.logf()("%s(%d, %s, %d): %v", name, routerPK, experiment, run, err)
				d.noteIfTransport(err)
				return nil
			}
			router.StagingDirectoryIsClean = true
			if err := d.Store.UpdateDataRouter(router); err != nil {
				d.logf()("%s(%d, %s, %d): %v", name, routerPK, experiment, run, err)
			}
			return nil
		},
	}
}

// OrganizeFilesAll fans OrganizeFiles out across every DataRouter belonging
// to experimentID.
func OrganizeFilesAll(disp *Dispatcher, d *Deps, experimentID int, experiment string, run int) Spec {
	name := "organize_files_all"
	return Spec{
		Name: name,
		Soft: 30 * time.Second,
		Hard: 40 * time.Second,
		Fn: func(ctx context.Context) error {
			for _, router := range d.Store.DataRoutersForExperiment(experimentID) {
				disp.Submit(OrganizeFiles(d, router.ID, experiment, run))
			}
			return nil
		},
	}
}
