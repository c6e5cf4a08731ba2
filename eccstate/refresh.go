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
	"time"

	"github.com/attpc/daqctl/daqerr"
	"github.com/attpc/daqctl/daqlog"
	"github.com/attpc/daqctl/model"
)

// nowFunc is overridable in tests.
var nowFunc = time.Now

// RefreshState calls GetState on ecc's SOAP client and writes the reply's
// State and Transition back to the store. Transition != 0 means "in
// transition" — implementers must not replicate the inverted branch found
// in one historical revision of the original source (see DESIGN.md's Open
// Question resolution).
func RefreshState(ctx context.Context, store *model.Store, client Client, eccID int, logf daqlog.Logf) error {
	ecc, err := store.GetECCServer(eccID)
	if err != nil {
		return err
	}

	reply, err := client.GetState(ctx)
	if err != nil {
		return daqerr.Wrap(daqerr.KindTransport, err, "GetState on %s", ecc.Name)
	}
	if !reply.OK() {
		return daqerr.New(daqerr.KindRemote, "GetState on %s: %s", ecc.Name, reply.ErrorMessage)
	}

	ecc.State = model.State(reply.State)
	ecc.IsTransitioning = reply.Transition != 0
	if err := store.UpdateECCServer(ecc); err != nil {
		return err
	}
	if logf != nil {
		logf("%s: state=%s transitioning=%v", ecc.Name, ecc.State, ecc.IsTransitioning)
	}
	return nil
}

// RefreshConfigs calls GetConfigIDs, parses the reply, and applies an
// upsert-then-sweep contract: every triple in the reply is upserted
// (preserving the primary key of an unchanged ConfigId), then every
// ConfigId row for this ECC whose LastFetched predates this call is
// deleted.
func RefreshConfigs(ctx context.Context, store *model.Store, client Client, eccID int, logf daqlog.Logf) error {
	ecc, err := store.GetECCServer(eccID)
	if err != nil {
		return err
	}

	body, err := client.GetConfigIDs(ctx)
	if err != nil {
		return daqerr.Wrap(daqerr.KindTransport, err, "GetConfigIDs on %s", ecc.Name)
	}

	triples, err := ParseConfigIDList(body)
	if err != nil {
		return err
	}

	fetchedAt := nowFunc()
	for _, triple := range triples {
		store.UpsertConfigID(eccID, triple, fetchedAt)
	}
	removed := store.SweepStaleConfigIDs(eccID, fetchedAt)
	if logf != nil {
		logf("%s: refreshed %d configs, swept %d stale", ecc.Name, len(triples), removed)
	}
	return nil
}
