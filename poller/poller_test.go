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

package poller

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/attpc/daqctl/dispatch"
	"github.com/attpc/daqctl/eccstate"
	"github.com/attpc/daqctl/model"
)

type stubClient struct{}

func (stubClient) GetState(ctx context.Context) (eccstate.Reply, error) { return eccstate.Reply{}, nil }
func (stubClient) GetConfigIDs(ctx context.Context) ([]byte, error)     { return nil, nil }
func (stubClient) Describe(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	return eccstate.Reply{}, nil
}
func (stubClient) Prepare(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	return eccstate.Reply{}, nil
}
func (stubClient) Configure(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	return eccstate.Reply{}, nil
}
func (stubClient) Start(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	return eccstate.Reply{}, nil
}
func (stubClient) Stop(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	return eccstate.Reply{}, nil
}
func (stubClient) Breakup(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	return eccstate.Reply{}, nil
}
func (stubClient) Undo(ctx context.Context, a, b []byte) (eccstate.Reply, error) {
	return eccstate.Reply{}, nil
}

type capturingLog struct {
	mu    sync.Mutex
	lines []string
}

func (c *capturingLog) logf(format string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, format)
}

func (c *capturingLog) count(substr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.lines {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

func TestTickSuppressesOverlappingRun(t *testing.T) {
	store := model.NewStore()
	disp := dispatch.New(4, nil)
	deps := &dispatch.Deps{
		Store:     store,
		ECCClient: func(ecc model.ECCServer) eccstate.Client { return stubClient{} },
	}
	log := &capturingLog{}
	p := New(disp, deps, DefaultIntervals(), log.logf)

	blocking := dispatch.Spec{
		Name: "fake_fan_out",
		Soft: time.Second,
		Hard: 2 * time.Second,
		Fn: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}

	p.tick(blocking)
	p.tick(blocking)
	disp.Wait()

	if log.count("suppressed") == 0 {
		t.Errorf("expected the overlapping tick to be logged as suppressed")
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	store := model.NewStore()
	store.CreateExperiment(model.Experiment{Name: "e1"})
	disp := dispatch.New(4, nil)
	deps := &dispatch.Deps{
		Store:     store,
		ECCClient: func(ecc model.ECCServer) eccstate.Client { return stubClient{} },
	}
	p := New(disp, deps, Intervals{
		EccServerRefresh: 5 * time.Millisecond,
		EccServerOnline:  time.Hour,
		DataRouterStatus: time.Hour,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	p.Run(ctx)
	disp.Wait()
}
