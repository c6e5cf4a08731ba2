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

// ECCServerSpec and RouterSpec describe the rows EasySetup should create;
// they carry no ID since EasySetup always creates fresh entities.
type ECCServerSpec struct {
	Name      string
	IPAddress string
	Port      int
	LogPath   string
}

// RouterSpec describes one DataRouter (and its paired DataSource) to
// create.
type RouterSpec struct {
	SourceName string
	ECCIndex   int // index into the ECCServerSpec slice this source's CoBo belongs to
	IPAddress  string
	Port       int
	ConnType   ConnType
	LogPath    string
}

// EasySetup is the one external convenience operation allowed to perform a
// multi-entity replace inside a single transaction: it deletes every
// DataSource, ECCServer, and DataRouter currently owned by experimentID,
// then recreates one ECCServer per eccs entry and one DataRouter+DataSource
// pair per routers entry. It is the Go analogue of the original Django
// admin's bulk "easy setup" form.
func (s *Store) EasySetup(experimentID int, eccs []ECCServerSpec, routers []RouterSpec) ([]ECCServer, []DataRouter, error) {
	var createdECCs []ECCServer
	var createdRouters []DataRouter

	err := s.WithTransaction(func(tx *Store) error {
		for _, ds := range tx.DataSourcesForExperiment(experimentID) {
			if err := tx.DeleteDataSource(ds.ID); err != nil {
				return err
			}
		}
		for _, e := range tx.ECCServersForExperiment(experimentID) {
			if err := tx.DeleteECCServer(e.ID); err != nil {
				return err
			}
		}
		for _, d := range tx.DataRoutersForExperiment(experimentID) {
			if err := tx.DeleteDataRouter(d.ID); err != nil {
				return err
			}
		}

		createdECCs = make([]ECCServer, 0, len(eccs))
		for _, spec := range eccs {
			e := tx.CreateECCServer(ECCServer{
				Name:         spec.Name,
				IPAddress:    spec.IPAddress,
				Port:         spec.Port,
				LogPath:      spec.LogPath,
				ExperimentID: experimentID,
			})
			createdECCs = append(createdECCs, e)
		}

		createdRouters = make([]DataRouter, 0, len(routers))
		for _, spec := range routers {
			if spec.ECCIndex < 0 || spec.ECCIndex >= len(createdECCs) {
				return missingEntity("ECCServerSpec", spec.ECCIndex)
			}
			router := tx.CreateDataRouter(DataRouter{
				Name:         spec.SourceName + "-router",
				IPAddress:    spec.IPAddress,
				Port:         spec.Port,
				ConnType:     spec.ConnType,
				LogPath:      spec.LogPath,
				ExperimentID: experimentID,
			})
			createdRouters = append(createdRouters, router)

			if _, err := tx.CreateDataSource(DataSource{
				Name:         spec.SourceName,
				ECCServerID:  createdECCs[spec.ECCIndex].ID,
				DataRouterID: router.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return createdECCs, createdRouters, nil
}

// DataSourcesForExperiment filters DataSource rows whose ECCServer or
// DataRouter belongs to experimentID.
func (s *Store) DataSourcesForExperiment(experimentID int) []DataSource {
	s.mu.RLock()
	eccIDs := map[int]bool{}
	for id, e := range s.eccServers {
		if e.ExperimentID == experimentID {
			eccIDs[id] = true
		}
	}
	routerIDs := map[int]bool{}
	for id, d := range s.dataRouters {
		if d.ExperimentID == experimentID {
			routerIDs[id] = true
		}
	}
	var out []DataSource
	for _, d := range s.dataSources {
		if eccIDs[d.ECCServerID] || routerIDs[d.DataRouterID] {
			out = append(out, d)
		}
	}
	s.mu.RUnlock()
	return out
}
