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

// CreateDataRouter inserts a new DataRouter, defaulting Port if zero.
func (s *Store) CreateDataRouter(d DataRouter) DataRouter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.Port == 0 {
		d.Port = DefaultRouterPort
	}
	d.ID = s.allocID()
	s.dataRouters[d.ID] = d
	return d
}

// GetDataRouter looks up a DataRouter by primary key.
func (s *Store) GetDataRouter(pk int) (DataRouter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dataRouters[pk]
	if !ok {
		return DataRouter{}, missingEntity("DataRouter", pk)
	}
	return d, nil
}

// AllDataRouters returns every known DataRouter.
func (s *Store) AllDataRouters() []DataRouter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DataRouter, 0, len(s.dataRouters))
	for _, d := range s.dataRouters {
		out = append(out, d)
	}
	return out
}

// DataRoutersForExperiment filters to the DataRouters owned by one
// Experiment.
func (s *Store) DataRoutersForExperiment(experimentID int) []DataRouter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []DataRouter
	for _, d := range s.dataRouters {
		if d.ExperimentID == experimentID {
			out = append(out, d)
		}
	}
	return out
}

// UpdateDataRouter replaces the stored value for d.ID.
func (s *Store) UpdateDataRouter(d DataRouter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dataRouters[d.ID]; !ok {
		return missingEntity("DataRouter", d.ID)
	}
	s.dataRouters[d.ID] = d
	return nil
}

// DeleteDataRouter removes a DataRouter. Any DataSource that referenced it
// keeps its weak reference, which now resolves to nothing.
func (s *Store) DeleteDataRouter(pk int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dataRouters[pk]; !ok {
		return missingEntity("DataRouter", pk)
	}
	delete(s.dataRouters, pk)
	return nil
}
