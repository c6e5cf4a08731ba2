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
	"sync"

	"github.com/attpc/daqctl/daqerr"
)

// Store is the transactional, key-addressed row store backing every entity
// in the control plane. It owns every entity exclusively; DataSource only ever holds
// the integer keys of its ECCServer and DataRouter, never an owned
// reference, so the engine always reads "sources of ECC e" as a filter
// query rather than walking an owned collection.
//
// Store is safe for concurrent use. No task may cache entity state in its
// own memory across suspension points; every read goes back through Store.
type Store struct {
	mu sync.RWMutex

	eccServers   map[int]ECCServer
	dataRouters  map[int]DataRouter
	dataSources  map[int]DataSource
	configIDs    map[int]ConfigId
	experiments  map[int]Experiment
	runMetadata  map[int]RunMetadata
	observables  map[int]Observable
	measurements map[int]Measurement

	nextID int
}

// NewStore returns an empty, ready-to-use Store.
func NewStore() *Store {
	return &Store{
		eccServers:   map[int]ECCServer{},
		dataRouters:  map[int]DataRouter{},
		dataSources:  map[int]DataSource{},
		configIDs:    map[int]ConfigId{},
		experiments:  map[int]Experiment{},
		runMetadata:  map[int]RunMetadata{},
		observables:  map[int]Observable{},
		measurements: map[int]Measurement{},
	}
}

// allocID returns the next unique integer key. Callers must hold s.mu.
func (s *Store) allocID() int {
	s.nextID++
	return s.nextID
}

// snapshot is a shallow copy of every table, good enough for rollback since
// entity values never get mutated in place through a shared pointer — every
// write replaces the whole value at a key.
type snapshot struct {
	eccServers   map[int]ECCServer
	dataRouters  map[int]DataRouter
	dataSources  map[int]DataSource
	configIDs    map[int]ConfigId
	experiments  map[int]Experiment
	runMetadata  map[int]RunMetadata
	observables  map[int]Observable
	measurements map[int]Measurement
	nextID       int
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshotLocked() snapshot {
	return snapshot{
		eccServers:   cloneMap(s.eccServers),
		dataRouters:  cloneMap(s.dataRouters),
		dataSources:  cloneMap(s.dataSources),
		configIDs:    cloneMap(s.configIDs),
		experiments:  cloneMap(s.experiments),
		runMetadata:  cloneMap(s.runMetadata),
		observables:  cloneMap(s.observables),
		measurements: cloneMap(s.measurements),
		nextID:       s.nextID,
	}
}

func (s *Store) restoreLocked(snap snapshot) {
	s.eccServers = snap.eccServers
	s.dataRouters = snap.dataRouters
	s.dataSources = snap.dataSources
	s.configIDs = snap.configIDs
	s.experiments = snap.experiments
	s.runMetadata = snap.runMetadata
	s.observables = snap.observables
	s.measurements = snap.measurements
	s.nextID = snap.nextID
}

// WithTransaction atomically executes fn. If fn returns an error, every
// write fn made to the store is reverted and the same error is returned.
// This is the only primitive the "easy setup" multi-entity replace
// operation is allowed to rely on for its delete-then-recreate semantics.
func (s *Store) WithTransaction(fn func(*Store) error) error {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.restoreLocked(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

// missingEntity builds the standard MissingEntity error for a lookup miss.
func missingEntity(entity string, pk int) error {
	return daqerr.New(daqerr.KindMissingEntity, "no %s with id %d", entity, pk)
}
