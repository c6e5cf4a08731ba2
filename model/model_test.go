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
	"testing"
	"time"
)

func TestNextRunNumber(t *testing.T) {
	s := NewStore()
	exp := s.CreateExperiment(Experiment{Name: "e1"})

	if got := s.NextRunNumber(exp.ID); got != 0 {
		t.Errorf("NextRunNumber with no runs = %d, want 0", got)
	}

	if _, err := s.StartRun(exp.ID, time.Now(), "t", "cfg", "prod"); err != nil {
		t.Fatalf("StartRun: %+v", err)
	}
	if _, err := s.StopRun(exp.ID, time.Now()); err != nil {
		t.Fatalf("StopRun: %+v", err)
	}

	if got := s.NextRunNumber(exp.ID); got != 1 {
		t.Errorf("NextRunNumber after one run = %d, want 1", got)
	}
}

func TestStartRunAlreadyRunningFails(t *testing.T) {
	s := NewStore()
	exp := s.CreateExperiment(Experiment{Name: "e1"})

	if _, err := s.StartRun(exp.ID, time.Now(), "", "", ""); err != nil {
		t.Fatalf("first StartRun: %+v", err)
	}
	if _, err := s.StartRun(exp.ID, time.Now(), "", "", ""); err == nil {
		t.Errorf("second StartRun should have failed with AlreadyRunning")
	}
}

func TestStopRunNotRunningFails(t *testing.T) {
	s := NewStore()
	exp := s.CreateExperiment(Experiment{Name: "e1"})

	if _, err := s.StopRun(exp.ID, time.Now()); err == nil {
		t.Errorf("StopRun with no running run should have failed with NotRunning")
	}
}

func TestIsRunning(t *testing.T) {
	s := NewStore()
	exp := s.CreateExperiment(Experiment{Name: "e1"})

	if s.IsRunning(exp.ID) {
		t.Errorf("fresh experiment should not be running")
	}
	if _, err := s.StartRun(exp.ID, time.Now(), "", "", ""); err != nil {
		t.Fatalf("StartRun: %+v", err)
	}
	if !s.IsRunning(exp.ID) {
		t.Errorf("experiment should be running after StartRun")
	}
	if _, err := s.StopRun(exp.ID, time.Now()); err != nil {
		t.Fatalf("StopRun: %+v", err)
	}
	if s.IsRunning(exp.ID) {
		t.Errorf("experiment should not be running after StopRun")
	}
}

func TestUpsertConfigIDPreservesKeyAndSweepsStale(t *testing.T) {
	s := NewStore()
	exp := s.CreateExperiment(Experiment{Name: "e1"})
	ecc := s.CreateECCServer(ECCServer{Name: "CoBo[0]", ExperimentID: exp.ID})

	t0 := time.Now()
	a := s.UpsertConfigID(ecc.ID, ConfigId{Describe: "A", Prepare: "B", Configure: "C"}, t0)
	b := s.UpsertConfigID(ecc.ID, ConfigId{Describe: "A", Prepare: "C", Configure: "B"}, t0)

	t1 := t0.Add(time.Second)
	aAgain := s.UpsertConfigID(ecc.ID, ConfigId{Describe: "A", Prepare: "B", Configure: "C"}, t1)
	if aAgain.ID != a.ID {
		t.Errorf("re-upserting an unchanged triple churned the primary key: got %d, want %d", aAgain.ID, a.ID)
	}

	removed := s.SweepStaleConfigIDs(ecc.ID, t1)
	if removed != 1 {
		t.Errorf("SweepStaleConfigIDs removed %d rows, want 1", removed)
	}

	remaining := s.ConfigIDsForECC(ecc.ID)
	if len(remaining) != 1 || remaining[0].ID != a.ID {
		t.Errorf("expected only the refreshed triple %d to remain, got %+v", a.ID, remaining)
	}
	_ = b
}

func TestWithTransactionRevertsOnError(t *testing.T) {
	s := NewStore()
	exp := s.CreateExperiment(Experiment{Name: "e1"})

	err := s.WithTransaction(func(tx *Store) error {
		tx.CreateECCServer(ECCServer{Name: "CoBo[0]", ExperimentID: exp.ID})
		return missingEntity("ECCServer", 999)
	})
	if err == nil {
		t.Fatalf("expected WithTransaction to propagate the error")
	}
	if len(s.AllECCServers()) != 0 {
		t.Errorf("WithTransaction should have reverted the ECCServer creation")
	}
}

func TestDataSourceRouterUniqueness(t *testing.T) {
	s := NewStore()
	exp := s.CreateExperiment(Experiment{Name: "e1"})
	ecc := s.CreateECCServer(ECCServer{Name: "CoBo[0]", ExperimentID: exp.ID})
	router := s.CreateDataRouter(DataRouter{Name: "dr0", ExperimentID: exp.ID})

	if _, err := s.CreateDataSource(DataSource{Name: "CoBo[0]", ECCServerID: ecc.ID, DataRouterID: router.ID}); err != nil {
		t.Fatalf("first CreateDataSource: %+v", err)
	}
	if _, err := s.CreateDataSource(DataSource{Name: "CoBo[1]", ECCServerID: ecc.ID, DataRouterID: router.ID}); err == nil {
		t.Errorf("expected second DataSource referencing the same router to fail")
	}
}

func TestDeleteExperimentCascades(t *testing.T) {
	s := NewStore()
	exp := s.CreateExperiment(Experiment{Name: "e1"})
	ecc := s.CreateECCServer(ECCServer{Name: "CoBo[0]", ExperimentID: exp.ID})
	s.UpsertConfigID(ecc.ID, ConfigId{Describe: "A", Prepare: "B", Configure: "C"}, time.Now())
	s.CreateDataRouter(DataRouter{Name: "dr0", ExperimentID: exp.ID})
	s.CreateObservable(Observable{Name: "temp", ExperimentID: exp.ID, ValueType: ValueFloat})

	if err := s.DeleteExperiment(exp.ID); err != nil {
		t.Fatalf("DeleteExperiment: %+v", err)
	}

	if len(s.AllECCServers()) != 0 {
		t.Errorf("expected ECCServers to cascade-delete")
	}
	if len(s.ConfigIDsForECC(ecc.ID)) != 0 {
		t.Errorf("expected ConfigIds to cascade-delete with their ECCServer")
	}
	if len(s.AllDataRouters()) != 0 {
		t.Errorf("expected DataRouters to cascade-delete")
	}
	if len(s.ObservablesForExperiment(exp.ID)) != 0 {
		t.Errorf("expected Observables to cascade-delete")
	}
}
