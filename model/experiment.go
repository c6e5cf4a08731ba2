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

import (
	"time"

	"github.com/attpc/daqctl/daqerr"
)

// CreateExperiment inserts a new Experiment.
func (s *Store) CreateExperiment(e Experiment) Experiment {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.allocID()
	s.experiments[e.ID] = e
	return e
}

// GetExperiment looks up an Experiment by primary key.
func (s *Store) GetExperiment(pk int) (Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.experiments[pk]
	if !ok {
		return Experiment{}, missingEntity("Experiment", pk)
	}
	return e, nil
}

// DeleteExperiment cascades to its ECCServers (and their ConfigIds),
// DataRouters, RunMetadata, and Observables (and their Measurements).
func (s *Store) DeleteExperiment(pk int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.experiments[pk]; !ok {
		return missingEntity("Experiment", pk)
	}
	delete(s.experiments, pk)

	for id, e := range s.eccServers {
		if e.ExperimentID != pk {
			continue
		}
		delete(s.eccServers, id)
		for cid, c := range s.configIDs {
			if c.ECCServerID == id {
				delete(s.configIDs, cid)
			}
		}
	}
	for id, d := range s.dataRouters {
		if d.ExperimentID == pk {
			delete(s.dataRouters, id)
		}
	}
	for id, r := range s.runMetadata {
		if r.ExperimentID == pk {
			delete(s.runMetadata, id)
		}
	}
	var obsIDs []int
	for id, o := range s.observables {
		if o.ExperimentID == pk {
			delete(s.observables, id)
			obsIDs = append(obsIDs, id)
		}
	}
	for mid, m := range s.measurements {
		for _, oid := range obsIDs {
			if m.ObservableID == oid {
				delete(s.measurements, mid)
			}
		}
	}
	return nil
}

// RunsForExperiment filters RunMetadata rows belonging to one Experiment.
func (s *Store) RunsForExperiment(experimentID int) []RunMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RunMetadata
	for _, r := range s.runMetadata {
		if r.ExperimentID == experimentID {
			out = append(out, r)
		}
	}
	return out
}

// NextRunNumber returns (latest run number, or -1) + 1 for an experiment.
func (s *Store) NextRunNumber(experimentID int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := -1
	for _, r := range s.runMetadata {
		if r.ExperimentID == experimentID && r.RunNumber > latest {
			latest = r.RunNumber
		}
	}
	return latest + 1
}

// CurrentRun returns the run with a nil StopDatetime for an experiment, if
// any.
func (s *Store) CurrentRun(experimentID int) (RunMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.runMetadata {
		if r.ExperimentID == experimentID && r.IsRunning() {
			return r, true
		}
	}
	return RunMetadata{}, false
}

// IsRunning reports whether an experiment currently has a running run.
func (s *Store) IsRunning(experimentID int) bool {
	_, ok := s.CurrentRun(experimentID)
	return ok
}

// StartRun creates a new RunMetadata for experimentID. It fails with
// KindAlreadyRunning if a run is already in progress.
func (s *Store) StartRun(experimentID int, now time.Time, title, configName, runClass string) (RunMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.runMetadata {
		if r.ExperimentID == experimentID && r.IsRunning() {
			return RunMetadata{}, daqerr.New(daqerr.KindAlreadyRunning, "experiment %d already has a running run (#%d)", experimentID, r.RunNumber)
		}
	}

	latest := -1
	for _, r := range s.runMetadata {
		if r.ExperimentID == experimentID && r.RunNumber > latest {
			latest = r.RunNumber
		}
	}

	run := RunMetadata{
		ID:            s.allocID(),
		ExperimentID:  experimentID,
		RunNumber:     latest + 1,
		StartDatetime: now,
		Title:         title,
		ConfigName:    configName,
		RunClass:      runClass,
	}
	s.runMetadata[run.ID] = run
	return run, nil
}

// StopRun sets StopDatetime on the current running run of experimentID. It
// fails with KindNotRunning if none is running.
func (s *Store) StopRun(experimentID int, now time.Time) (RunMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.runMetadata {
		if r.ExperimentID == experimentID && r.IsRunning() {
			stop := now
			r.StopDatetime = &stop
			s.runMetadata[id] = r
			return r, nil
		}
	}
	return RunMetadata{}, daqerr.New(daqerr.KindNotRunning, "experiment %d has no running run", experimentID)
}
