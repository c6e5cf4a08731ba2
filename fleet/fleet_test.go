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

package fleet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/attpc/daqctl/daqerr"
	"github.com/attpc/daqctl/dispatch"
	"github.com/attpc/daqctl/eccstate"
	"github.com/attpc/daqctl/model"
	"github.com/attpc/daqctl/sshworker"
)

// noopECCClient never actually gets called in the scenarios below that abort
// before submitting any change-state task, and merely records calls in the
// ones that do.
type noopECCClient struct {
	mu    sync.Mutex
	calls []string
}

func (c *noopECCClient) record(name string) {
	c.mu.Lock()
	c.calls = append(c.calls, name)
	c.mu.Unlock()
}

func (c *noopECCClient) GetState(ctx context.Context) (eccstate.Reply, error) { return eccstate.Reply{}, nil }
func (c *noopECCClient) GetConfigIDs(ctx context.Context) ([]byte, error)     { return nil, nil }
func (c *noopECCClient) Describe(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	c.record("Describe")
	return eccstate.Reply{}, nil
}
func (c *noopECCClient) Prepare(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	c.record("Prepare")
	return eccstate.Reply{}, nil
}
func (c *noopECCClient) Configure(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	c.record("Configure")
	return eccstate.Reply{}, nil
}
func (c *noopECCClient) Start(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	c.record("Start")
	return eccstate.Reply{}, nil
}
func (c *noopECCClient) Stop(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	c.record("Stop")
	return eccstate.Reply{}, nil
}
func (c *noopECCClient) Breakup(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	c.record("Breakup")
	return eccstate.Reply{}, nil
}
func (c *noopECCClient) Undo(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	c.record("Undo")
	return eccstate.Reply{}, nil
}

// fakeRunner is a minimal per-router CommandRunner recording every command
// it was asked to run, used to confirm organize_files fan-out reached every
// router with the right run number.
type fakeRunner struct {
	mu       sync.Mutex
	commands []string
}

func (r *fakeRunner) Run(ctx context.Context, cmd string) (string, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()
	switch {
	case strings.HasPrefix(cmd, "lsof"):
		return "p1\ncdataRouter\nn/data/cwd\n", nil
	case strings.HasPrefix(cmd, "ls -1"):
		return "", nil
	default:
		return "", nil
	}
}

func newDeps(store *model.Store, client eccstate.Client, runnersByRouter map[int]*fakeRunner) *dispatch.Deps {
	return &dispatch.Deps{
		Store: store,
		ECCClient: func(ecc model.ECCServer) eccstate.Client {
			return client
		},
		Worker: func(router model.DataRouter) (*sshworker.Worker, error) {
			r, ok := runnersByRouter[router.ID]
			if !ok {
				return nil, fmt.Errorf("no fake runner for router %d", router.ID)
			}
			return sshworker.WrapRunner(r), nil
		},
		Logf: nil,
	}
}

func TestResetMixedFleetIsInconsistent(t *testing.T) {
	store := model.NewStore()
	exp := store.CreateExperiment(model.Experiment{Name: "e1"})
	store.CreateECCServer(model.ECCServer{Name: "c0", ExperimentID: exp.ID, State: model.READY})
	store.CreateECCServer(model.ECCServer{Name: "c1", ExperimentID: exp.ID, State: model.PREPARED})
	store.CreateECCServer(model.ECCServer{Name: "c2", ExperimentID: exp.ID, State: model.PREPARED})

	client := &noopECCClient{}
	disp := dispatch.New(4, nil)
	d := newDeps(store, client, nil)

	err := ChangeStateAll(disp, d, store, exp.ID, RESET)
	disp.Wait()

	if !daqerr.Is(err, daqerr.KindInconsistentFleet) {
		t.Fatalf("expected InconsistentFleet, got %+v", err)
	}
	if len(client.calls) != 0 {
		t.Errorf("expected no SOAP calls, got %v", client.calls)
	}
}

func TestStartWithDirtyRouterIsPrerequisiteFailed(t *testing.T) {
	store := model.NewStore()
	exp := store.CreateExperiment(model.Experiment{Name: "e1"})
	for i := 0; i < 10; i++ {
		store.CreateECCServer(model.ECCServer{Name: fmt.Sprintf("c%d", i), ExperimentID: exp.ID, State: model.READY})
	}
	store.CreateDataRouter(model.DataRouter{Name: "dirty", ExperimentID: exp.ID, StagingDirectoryIsClean: false})

	client := &noopECCClient{}
	disp := dispatch.New(4, nil)
	d := newDeps(store, client, nil)

	err := ChangeStateAll(disp, d, store, exp.ID, model.RUNNING)
	disp.Wait()

	if !daqerr.Is(err, daqerr.KindPrerequisiteFailed) {
		t.Fatalf("expected PrerequisiteFailed, got %+v", err)
	}
	if len(client.calls) != 0 {
		t.Errorf("expected no transition tasks submitted, got calls %v", client.calls)
	}
	if len(store.RunsForExperiment(exp.ID)) != 0 {
		t.Errorf("expected no RunMetadata created")
	}
}

func TestStartFromReadyStartsRun(t *testing.T) {
	store := model.NewStore()
	exp := store.CreateExperiment(model.Experiment{Name: "e1"})
	for i := 0; i < 4; i++ {
		store.CreateECCServer(model.ECCServer{Name: fmt.Sprintf("c%d", i), ExperimentID: exp.ID, State: model.READY})
	}
	store.CreateDataRouter(model.DataRouter{Name: "r0", ExperimentID: exp.ID, StagingDirectoryIsClean: true})

	client := &noopECCClient{}
	disp := dispatch.New(4, nil)
	d := newDeps(store, client, nil)

	if err := ChangeStateAll(disp, d, store, exp.ID, model.RUNNING); err != nil {
		t.Fatalf("ChangeStateAll: %+v", err)
	}
	disp.Wait()

	if !store.IsRunning(exp.ID) {
		t.Fatalf("expected a RunMetadata to have been started by a READY->RUNNING transition")
	}
	if got := len(store.RunsForExperiment(exp.ID)); got != 1 {
		t.Errorf("expected exactly one RunMetadata, got %d", got)
	}
}

func TestStopTriggersOrganizeAcrossAllRouters(t *testing.T) {
	store := model.NewStore()
	exp := store.CreateExperiment(model.Experiment{Name: "e1"})

	runners := map[int]*fakeRunner{}
	for i := 0; i < 4; i++ {
		r := store.CreateDataRouter(model.DataRouter{Name: fmt.Sprintf("r%d", i), ExperimentID: exp.ID, StagingDirectoryIsClean: true})
		runners[r.ID] = &fakeRunner{}
	}
	for i := 0; i < 4; i++ {
		store.CreateECCServer(model.ECCServer{Name: fmt.Sprintf("c%d", i), ExperimentID: exp.ID, State: model.RUNNING})
	}

	// Drive the run number up to 7: runs 0..6 open-then-close, run 7 left open.
	for i := 0; i < 7; i++ {
		if _, err := store.StartRun(exp.ID, time.Now(), "", "", ""); err != nil {
			t.Fatalf("StartRun: %+v", err)
		}
		if _, err := store.StopRun(exp.ID, time.Now()); err != nil {
			t.Fatalf("StopRun: %+v", err)
		}
	}
	if _, err := store.StartRun(exp.ID, time.Now(), "", "", ""); err != nil {
		t.Fatalf("StartRun: %+v", err)
	}

	client := &noopECCClient{}
	disp := dispatch.New(8, nil)
	d := newDeps(store, client, runners)

	if err := ChangeStateAll(disp, d, store, exp.ID, model.READY); err != nil {
		t.Fatalf("ChangeStateAll: %+v", err)
	}
	disp.Wait()

	run, ok := store.CurrentRun(exp.ID)
	if ok {
		t.Fatalf("expected the run to be stopped, but CurrentRun still returns one: %+v", run)
	}

	for id, r := range runners {
		r.mu.Lock()
		var sawMkdir bool
		for _, cmd := range r.commands {
			if strings.HasPrefix(cmd, "mkdir -p") && strings.Contains(cmd, "run_0007") {
				sawMkdir = true
			}
		}
		r.mu.Unlock()
		if !sawMkdir {
			t.Errorf("router %d: expected an organize_files mkdir for run_0007, commands were %v", id, r.commands)
		}
	}
}
