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

import "github.com/attpc/daqctl/daqerr"

// CreateDataSource inserts a new DataSource. It enforces the invariant that
// a DataRouter is one-to-one with a DataSource: at most one DataSource may
// reference a given DataRouterID.
func (s *Store) CreateDataSource(d DataSource) (DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.dataSources {
		if existing.Name == d.Name {
			return DataSource{}, daqerr.New(daqerr.KindPreconditionFailed, "a DataSource named %q already exists", d.Name)
		}
		if d.DataRouterID != 0 && existing.DataRouterID == d.DataRouterID {
			return DataSource{}, daqerr.New(daqerr.KindPreconditionFailed, "data router %d already serves DataSource %q", d.DataRouterID, existing.Name)
		}
	}

	d.ID = s.allocID()
	s.dataSources[d.ID] = d
	return d, nil
}

// GetDataSource looks up a DataSource by primary key.
func (s *Store) GetDataSource(pk int) (DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dataSources[pk]
	if !ok {
		return DataSource{}, missingEntity("DataSource", pk)
	}
	return d, nil
}

// AllDataSources returns every known DataSource.
func (s *Store) AllDataSources() []DataSource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DataSource, 0, len(s.dataSources))
	for _, d := range s.dataSources {
		out = append(out, d)
	}
	return out
}

// DeleteDataSource removes a DataSource.
func (s *Store) DeleteDataSource(pk int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dataSources[pk]; !ok {
		return missingEntity("DataSource", pk)
	}
	delete(s.dataSources, pk)
	return nil
}
