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

package eccstate

import (
	"context"

	"github.com/attpc/daqctl/daqerr"
	"github.com/attpc/daqctl/daqlog"
	"github.com/attpc/daqctl/model"
)

// ChangeState drives one ECCServer one step towards target:
//
//  1. Requires ecc.SelectedConfig != 0, else PreconditionFailed.
//  2. Serializes the selected ConfigId to XML.
//  3. Serializes the DataLinkSet of every DataSource served by this ECC.
//  4. Computes the legal transition operation.
//  5. Invokes it over SOAP.
//  6. On a non-zero ErrorCode, clears IsTransitioning and returns RemoteError.
//  7. On success, sets IsTransitioning = true. State itself is left for the
//     next RefreshState to reconcile.
//
// The canonical model places SelectedConfig on the ECCServer, not the
// DataSource, since the DataLinkSet aggregates every source the ECC owns
// (see DESIGN.md's Open Question resolution).
func ChangeState(ctx context.Context, store *model.Store, client Client, eccID int, target model.State, logf daqlog.Logf) error {
	ecc, err := store.GetECCServer(eccID)
	if err != nil {
		return err
	}

	if ecc.SelectedConfig == 0 {
		return daqerr.New(daqerr.KindPreconditionFailed, "%s has no selected config", ecc.Name)
	}
	cfg, err := store.GetConfigID(ecc.SelectedConfig)
	if err != nil {
		return daqerr.New(daqerr.KindPreconditionFailed, "%s: selected config %d not found", ecc.Name, ecc.SelectedConfig)
	}

	configXML, err := SerializeConfigID(cfg)
	if err != nil {
		return err
	}

	links, err := buildDataLinks(store, eccID)
	if err != nil {
		return err
	}
	dataLinkXML, err := SerializeDataLinkSet(links)
	if err != nil {
		return err
	}

	op, err := ComputeTransition(ecc.State, target)
	if err != nil {
		return err
	}

	reply, err := op.Invoke(ctx, client, configXML, dataLinkXML)
	if err != nil {
		return daqerr.Wrap(daqerr.KindTransport, err, "%s on %s", op, ecc.Name)
	}
	if !reply.OK() {
		ecc.IsTransitioning = false
		if uerr := store.UpdateECCServer(ecc); uerr != nil {
			return uerr
		}
		return daqerr.New(daqerr.KindRemote, "%s on %s: %s", op, ecc.Name, reply.ErrorMessage)
	}

	ecc.IsTransitioning = true
	if err := store.UpdateECCServer(ecc); err != nil {
		return err
	}
	if logf != nil {
		logf("%s: submitted %s towards %s", ecc.Name, op, target)
	}
	return nil
}

// buildDataLinks gathers one DataLink per DataSource served by eccID,
// joining through each source's DataRouter.
func buildDataLinks(store *model.Store, eccID int) ([]DataLink, error) {
	sources := store.DataSourcesForECC(eccID)
	links := make([]DataLink, 0, len(sources))
	for _, src := range sources {
		router, err := store.GetDataRouter(src.DataRouterID)
		if err != nil {
			return nil, daqerr.Wrap(daqerr.KindPreconditionFailed, err, "data source %s has no router", src.Name)
		}
		links = append(links, DataLink{
			SourceName: src.Name,
			RouterName: router.Name,
			RouterIP:   router.IPAddress,
			RouterPort: router.Port,
			RouterType: router.ConnType,
		})
	}
	return links, nil
}
