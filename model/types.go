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

// Package model holds the persistent entities of the daqctl control plane
// and a small in-memory, transactional store for them. The store plays the
// role mgmt's etcd-backed world (engine/world.go) plays for resources: it is
// the single source of shared mutable state that every task reads and
// writes through, never caching entity state in a worker's memory.
package model

import "time"

// State is one of the five linear ECC states.
type State int

// The ECC state machine states, in ascending order.
const (
	IDLE State = iota + 1
	DESCRIBED
	PREPARED
	READY
	RUNNING
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case IDLE:
		return "Idle"
	case DESCRIBED:
		return "Described"
	case PREPARED:
		return "Prepared"
	case READY:
		return "Ready"
	case RUNNING:
		return "Running"
	default:
		return "Unknown"
	}
}

// ConnType is the transport a DataRouter speaks with its CoBo.
type ConnType string

// The supported DataRouter connection types.
const (
	ConnICE  ConnType = "ICE"
	ConnZBUF ConnType = "ZBUF"
	ConnTCP  ConnType = "TCP"
	ConnFDT  ConnType = "FDT"
)

// ValueType is the declared type of an Observable's Measurement values.
type ValueType string

// The supported Observable value types.
const (
	ValueInteger ValueType = "INTEGER"
	ValueFloat   ValueType = "FLOAT"
	ValueString  ValueType = "STRING"
)

// DefaultECCPort is the default ECC server SOAP TCP port.
const DefaultECCPort = 8083

// DefaultRouterPort is the default data router TCP port.
const DefaultRouterPort = 46005

// ECCServer represents one remote SOAP endpoint driving a CoBo or MuTAnT.
type ECCServer struct {
	ID              int
	Name            string
	IPAddress       string
	Port            int
	SelectedConfig  int // ConfigId.ID, or 0 for "no selection"
	LogPath         string
	State           State
	IsTransitioning bool
	IsOnline        bool
	ExperimentID    int
}

// The original Django model's get_log_path() helper has no accessor method
// here: it had no derived logic, so LogPath is just a field.

// DataRouter represents one remote receiver process.
type DataRouter struct {
	ID                      int
	Name                    string
	IPAddress               string
	Port                    int
	ConnType                ConnType
	LogPath                 string
	IsOnline                bool
	StagingDirectoryIsClean bool
	ExperimentID            int
}

// DataSource pairs one ECCServer with one DataRouter.
type DataSource struct {
	ID           int
	Name         string
	ECCServerID  int
	DataRouterID int
}

// ConfigId names one configuration file set as seen by a remote ECC.
type ConfigId struct {
	ID          int
	Describe    string
	Prepare     string
	Configure   string
	ECCServerID int
	LastFetched time.Time
}

// Equal reports whether two ConfigId triples name the same files.
func (c ConfigId) Equal(o ConfigId) bool {
	return c.Describe == o.Describe && c.Prepare == o.Prepare && c.Configure == o.Configure
}

// Experiment owns a set of ECCServers, DataRouters, RunMetadata, and
// Observables.
type Experiment struct {
	ID                int
	Name              string
	TargetRunDuration int // seconds
	OwnerUserID       int
}

// RunMetadata records one contiguous acquisition interval.
type RunMetadata struct {
	ID            int
	ExperimentID  int
	RunNumber     int
	StartDatetime time.Time
	StopDatetime  *time.Time // nil while running
	Title         string
	ConfigName    string
	RunClass      string
}

// IsRunning reports whether this run has not yet been stopped.
func (r RunMetadata) IsRunning() bool {
	return r.StopDatetime == nil
}

// Observable is a typed column definition owned by an Experiment.
type Observable struct {
	ID           int
	ExperimentID int
	Name         string
	ValueType    ValueType
	Units        string
	Comment      string
	Ordinal      int
}

// Measurement is the value of an Observable on one RunMetadata.
type Measurement struct {
	ID            int
	ObservableID  int
	RunMetadataID int
	Value         string
}
