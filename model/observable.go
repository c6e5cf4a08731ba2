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

// CreateObservable inserts a new Observable.
func (s *Store) CreateObservable(o Observable) Observable {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.allocID()
	s.observables[o.ID] = o
	return o
}

// ObservablesForExperiment filters Observable rows owned by one Experiment.
func (s *Store) ObservablesForExperiment(experimentID int) []Observable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Observable
	for _, o := range s.observables {
		if o.ExperimentID == experimentID {
			out = append(out, o)
		}
	}
	return out
}

// SetMeasurement creates or overwrites the Measurement of one Observable on
// one RunMetadata, enforcing the at-most-one-per-pair invariant.
func (s *Store) SetMeasurement(observableID, runID int, value string) (Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.observables[observableID]; !ok {
		return Measurement{}, missingEntity("Observable", observableID)
	}
	if _, ok := s.runMetadata[runID]; !ok {
		return Measurement{}, missingEntity("RunMetadata", runID)
	}

	for id, m := range s.measurements {
		if m.ObservableID == observableID && m.RunMetadataID == runID {
			m.Value = value
			s.measurements[id] = m
			return m, nil
		}
	}

	m := Measurement{ID: s.allocID(), ObservableID: observableID, RunMetadataID: runID, Value: value}
	s.measurements[m.ID] = m
	return m, nil
}

// MeasurementsForRun filters Measurement rows belonging to one RunMetadata.
func (s *Store) MeasurementsForRun(runID int) []Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Measurement
	for _, m := range s.measurements {
		if m.RunMetadataID == runID {
			out = append(out, m)
		}
	}
	return out
}
