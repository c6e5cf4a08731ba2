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

package model

import "time"

// GetConfigID looks up a ConfigId by primary key.
func (s *Store) GetConfigID(pk int) (ConfigId, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.configIDs[pk]
	if !ok {
		return ConfigId{}, missingEntity("ConfigId", pk)
	}
	return c, nil
}

// ConfigIDsForECC filters ConfigId rows belonging to one ECCServer.
func (s *Store) ConfigIDsForECC(eccID int) []ConfigId {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ConfigId
	for _, c := range s.configIDs {
		if c.ECCServerID == eccID {
			out = append(out, c)
		}
	}
	return out
}

// UpsertConfigID implements the upsert half of the refreshConfigs contract
// (matching the historical server's de-duplication behavior): if a
// ConfigId with the same (describe, prepare,
// configure, ECCServerID) already exists, its LastFetched is bumped and its
// primary key is preserved — this matters because ECCServer.SelectedConfig
// points at that key, and it must not churn across an unchanged refresh. If
// no match exists, a new row is created.
func (s *Store) UpsertConfigID(eccID int, triple ConfigId, fetchedAt time.Time) ConfigId {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.configIDs {
		if existing.ECCServerID == eccID && existing.Equal(triple) {
			existing.LastFetched = fetchedAt
			s.configIDs[id] = existing
			return existing
		}
	}

	row := ConfigId{
		ID:          s.allocID(),
		Describe:    triple.Describe,
		Prepare:     triple.Prepare,
		Configure:   triple.Configure,
		ECCServerID: eccID,
		LastFetched: fetchedAt,
	}
	s.configIDs[row.ID] = row
	return row
}

// SweepStaleConfigIDs deletes every ConfigId for eccID whose LastFetched is
// strictly earlier than cutoff. This is the second half of the
// upsert-then-sweep contract: entries absent from the latest GetConfigIDs
// reply are removed. Matching the original model's on_delete=SET_NULL
// (models.py), a deleted ConfigId that was the owning ECCServer's
// SelectedConfig is nulled out rather than left as a dangling foreign key.
func (s *Store) SweepStaleConfigIDs(eccID int, cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for id, c := range s.configIDs {
		if c.ECCServerID == eccID && c.LastFetched.Before(cutoff) {
			delete(s.configIDs, id)
			removed++
			if ecc, ok := s.eccServers[eccID]; ok && ecc.SelectedConfig == id {
				ecc.SelectedConfig = 0
				s.eccServers[eccID] = ecc
			}
		}
	}
	return removed
}
