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

// Package dispatch runs named asynchronous tasks across a bounded pool of
// worker goroutines, the way util/semaphore.Semaphore bounds concurrent
// resource convergence in the engine. Tasks are independent units of work
// with no shared mutable in-memory state beyond the persistent store;
// cross-task ordering is left entirely to the store's own transactional
// writes.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/attpc/daqctl/daqlog"
	"github.com/attpc/daqctl/util/semaphore"
)

// TaskFunc is one unit of dispatched work. It must return promptly once ctx
// is cancelled; a task that ignores cancellation only stops being waited on
// once its hard time limit fires, not sooner.
type TaskFunc func(ctx context.Context) error

// Spec names one submitted task and its soft/hard time budget.
type Spec struct {
	Name string
	Soft time.Duration
	Hard time.Duration
	Fn   TaskFunc
}

// Dispatcher runs Specs across a fixed-size worker pool. Submissions do not
// block the caller and are never dropped: each one waits in its own goroutine
// for a free worker slot, so the number of waiting submissions has no bound.
type Dispatcher struct {
	sem  *semaphore.Semaphore
	logf daqlog.Logf

	mu      sync.Mutex
	running map[string]bool

	wg sync.WaitGroup

	// OnAbandon, if set, is called once per task that hits its hard time
	// limit — metrics wires this up to a counter without this package
	// needing to import the metrics package back.
	OnAbandon func(taskName string)
}

// New builds a Dispatcher with workers concurrent slots. logf receives every
// task-lifecycle message (time-limit warnings, abandonment, panics, drops).
func New(workers int, logf daqlog.Logf) *Dispatcher {
	if logf == nil {
		logf = daqlog.Discard
	}
	return &Dispatcher{
		sem:     semaphore.NewSemaphore(workers),
		logf:    logf,
		running: make(map[string]bool),
	}
}

// Submit runs spec on the next available worker slot. It always accepts the
// task; SubmitUnique is the variant that refuses a spec whose name is
// already running.
func (d *Dispatcher) Submit(spec Spec) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sem.P(1); err != nil {
			return // dispatcher is shutting down
		}
		defer d.sem.V(1)
		d.run(spec)
	}()
}

// SubmitUnique behaves like Submit but refuses to start spec if a task of
// the same name is already running, returning false in that case. The
// periodic poller uses this to suppress a tick that would otherwise overlap
// the previous one.
func (d *Dispatcher) SubmitUnique(spec Spec) bool {
	d.mu.Lock()
	if d.running[spec.Name] {
		d.mu.Unlock()
		return false
	}
	d.running[spec.Name] = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.running, spec.Name)
			d.mu.Unlock()
		}()
		if err := d.sem.P(1); err != nil {
			return
		}
		defer d.sem.V(1)
		d.run(spec)
	}()
	return true
}

// FanOut submits every spec in specs in parallel and returns immediately,
// without waiting for any of them to finish.
func (d *Dispatcher) FanOut(specs []Spec) {
	for _, s := range specs {
		d.Submit(s)
	}
}

// Close releases the worker pool. Tasks already running are left to finish
// or hit their own hard time limit; Close does not wait for them.
func (d *Dispatcher) Close() {
	d.sem.Close()
}

// Wait blocks until every task this Dispatcher has started — including
// ones still waiting for a worker slot — has returned or been abandoned.
// Intended for tests; production callers should not need it.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// run executes one invocation of spec, tagged with a fresh UUID so that
// concurrent or successive invocations of the same named task (e.g. two
// overlapping eccserver_refresh_state calls for different ECCs) can be told
// apart in the log, the way mgmt tags each pgraph vertex and deploy with its
// own uuid.New() (pgraph.go, cli/deploy.go).
func (d *Dispatcher) run(spec Spec) {
	id := uuid.New().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- spec.Fn(ctx)
	}()

	soft := time.NewTimer(spec.Soft)
	defer soft.Stop()
	hard := time.NewTimer(spec.Hard)
	defer hard.Stop()

	softFired := false
	for {
		select {
		case err := <-done:
			if err != nil {
				d.logf("%s[%s]: task failed: %v", spec.Name, id, err)
			}
			return
		case <-soft.C:
			softFired = true
			d.logf("%s[%s]: time limit exceeded, cancelling", spec.Name, id)
			cancel()
		case <-hard.C:
			d.logf("%s[%s]: worker abandoned after hard time limit", spec.Name, id)
			if d.OnAbandon != nil {
				d.OnAbandon(spec.Name)
			}
			return
		}
		if softFired {
			soft.C = nil
		}
	}
}
