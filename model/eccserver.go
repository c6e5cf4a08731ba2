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

// CreateECCServer inserts a new ECCServer, assigning it a fresh ID and
// defaulting Port if zero.
func (s *Store) CreateECCServer(e ECCServer) ECCServer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Port == 0 {
		e.Port = DefaultECCPort
	}
	if e.State == 0 {
		e.State = IDLE
	}
	e.ID = s.allocID()
	s.eccServers[e.ID] = e
	return e
}

// GetECCServer looks up an ECCServer by primary key.
func (s *Store) GetECCServer(pk int) (ECCServer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.eccServers[pk]
	if !ok {
		return ECCServer{}, missingEntity("ECCServer", pk)
	}
	return e, nil
}

// AllECCServers returns every known ECCServer.
func (s *Store) AllECCServers() []ECCServer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ECCServer, 0, len(s.eccServers))
	for _, e := range s.eccServers {
		out = append(out, e)
	}
	return out
}

// ECCServersForExperiment filters to the ECCServers owned by one Experiment.
func (s *Store) ECCServersForExperiment(experimentID int) []ECCServer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ECCServer
	for _, e := range s.eccServers {
		if e.ExperimentID == experimentID {
			out = append(out, e)
		}
	}
	return out
}

// UpdateECCServer replaces the stored value for e.ID.
func (s *Store) UpdateECCServer(e ECCServer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.eccServers[e.ID]; !ok {
		return missingEntity("ECCServer", e.ID)
	}
	s.eccServers[e.ID] = e
	return nil
}

// DeleteECCServer removes an ECCServer and cascade-deletes its ConfigIds.
// DataSources that referenced it keep their weak reference, which now
// resolves to nothing; they are not themselves deleted.
func (s *Store) DeleteECCServer(pk int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.eccServers[pk]; !ok {
		return missingEntity("ECCServer", pk)
	}
	delete(s.eccServers, pk)
	for id, c := range s.configIDs {
		if c.ECCServerID == pk {
			delete(s.configIDs, id)
		}
	}
	return nil
}

// DataSourcesForECC filters DataSource rows served by one ECCServer. This is
// always computed as a filter query, per the canonical model's rule that an
// ECCServer never owns a collection of DataSources directly.
func (s *Store) DataSourcesForECC(eccID int) []DataSource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []DataSource
	for _, d := range s.dataSources {
		if d.ECCServerID == eccID {
			out = append(out, d)
		}
	}
	return out
}
