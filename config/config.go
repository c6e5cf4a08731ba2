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

// Package config loads the fleet's static layout — the experiment, its ECC
// servers, and its data routers — the way the original config.go loaded its
// graphConfig: a plain YAML tree unmarshalled with gopkg.in/yaml.v2, then
// validated and turned into Store rows. Unlike that graph config, this one
// seeds a database, it doesn't build an in-memory dependency graph.
package config

import (
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/attpc/daqctl/metrics"
	"github.com/attpc/daqctl/model"
	"github.com/attpc/daqctl/poller"
	"github.com/attpc/daqctl/sshworker"
)

// File is the top-level shape of the YAML fleet-layout file.
type File struct {
	Experiment  experimentConfig   `yaml:"experiment"`
	ECCServers  []eccServerConfig  `yaml:"ecc_servers"`
	DataRouters []dataRouterConfig `yaml:"data_routers"`
	DataSources []dataSourceConfig `yaml:"data_sources"`
	SSH         sshConfig          `yaml:"ssh"`
	Poller      pollerConfig       `yaml:"poller"`
	Dispatch    dispatchConfig     `yaml:"dispatch"`
	Metrics     metricsConfig      `yaml:"metrics"`
}

type experimentConfig struct {
	Name              string `yaml:"name"`
	TargetRunDuration int    `yaml:"target_run_duration_seconds"`
}

type eccServerConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	LogPath string `yaml:"log_path"`
}

type dataRouterConfig struct {
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	ConnType string `yaml:"conn_type"`
	LogPath  string `yaml:"log_path"`
}

type dataSourceConfig struct {
	Name       string `yaml:"name"`
	ECCServer  string `yaml:"ecc_server"`
	DataRouter string `yaml:"data_router"`
}

// sshConfig supplies the defaults sshworker.Config can't infer from
// ~/.ssh/config alone.
type sshConfig struct {
	DefaultUser    string        `yaml:"default_user"`
	IdentityFile   string        `yaml:"identity_file"`
	KnownHostsFile string        `yaml:"known_hosts_file"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type pollerConfig struct {
	EccServerRefresh time.Duration `yaml:"ecc_server_refresh"`
	EccServerOnline  time.Duration `yaml:"ecc_server_online"`
	DataRouterStatus time.Duration `yaml:"data_router_status"`
}

type dispatchConfig struct {
	Workers int `yaml:"workers"`
}

type metricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads and parses path, returning an error that names the offending
// field the way graphConfig.Parse's "invalid `graph`" message does.
func Load(path string) (*File, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("config: invalid yaml: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) validate() error {
	if f.Experiment.Name == "" {
		return fmt.Errorf("config: invalid `experiment.name`")
	}
	if len(f.ECCServers) == 0 {
		return fmt.Errorf("config: invalid `ecc_servers`, need at least one")
	}
	names := map[string]bool{}
	for _, e := range f.ECCServers {
		if e.Name == "" || e.Address == "" {
			return fmt.Errorf("config: ecc_servers entry missing `name` or `address`")
		}
		if names[e.Name] {
			return fmt.Errorf("config: duplicate ecc_servers name %q", e.Name)
		}
		names[e.Name] = true
	}
	routerNames := map[string]bool{}
	for _, r := range f.DataRouters {
		if r.Name == "" || r.Address == "" {
			return fmt.Errorf("config: data_routers entry missing `name` or `address`")
		}
		if routerNames[r.Name] {
			return fmt.Errorf("config: duplicate data_routers name %q", r.Name)
		}
		routerNames[r.Name] = true
	}
	for _, ds := range f.DataSources {
		if !names[ds.ECCServer] {
			return fmt.Errorf("config: data_sources entry %q references unknown ecc_server %q", ds.Name, ds.ECCServer)
		}
		if !routerNames[ds.DataRouter] {
			return fmt.Errorf("config: data_sources entry %q references unknown data_router %q", ds.Name, ds.DataRouter)
		}
	}
	return nil
}

// Seed inserts every entity this File describes into store, returning the
// created Experiment and a lookup from config name to created ECCServer/
// DataRouter, so callers (e.g. the SSH worker factory) can resolve an entity
// back to the address it was configured with.
func (f *File) Seed(store *model.Store) (model.Experiment, map[string]model.ECCServer, map[string]model.DataRouter) {
	exp := store.CreateExperiment(model.Experiment{
		Name:              f.Experiment.Name,
		TargetRunDuration: f.Experiment.TargetRunDuration,
	})

	eccByName := make(map[string]model.ECCServer, len(f.ECCServers))
	for _, e := range f.ECCServers {
		port := e.Port
		if port == 0 {
			port = model.DefaultECCPort
		}
		created := store.CreateECCServer(model.ECCServer{
			Name:         e.Name,
			IPAddress:    e.Address,
			Port:         port,
			LogPath:      e.LogPath,
			State:        model.IDLE,
			ExperimentID: exp.ID,
		})
		eccByName[e.Name] = created
	}

	routerByName := make(map[string]model.DataRouter, len(f.DataRouters))
	for _, r := range f.DataRouters {
		port := r.Port
		if port == 0 {
			port = model.DefaultRouterPort
		}
		connType := model.ConnType(r.ConnType)
		if connType == "" {
			connType = model.ConnICE
		}
		created := store.CreateDataRouter(model.DataRouter{
			Name:         r.Name,
			IPAddress:    r.Address,
			Port:         port,
			ConnType:     connType,
			LogPath:      r.LogPath,
			ExperimentID: exp.ID,
		})
		routerByName[r.Name] = created
	}

	for _, ds := range f.DataSources {
		// Errors here can only be a dangling reference, which validate
		// already rejected, so there is nothing left to report.
		_, _ = store.CreateDataSource(model.DataSource{
			Name:         ds.Name,
			ECCServerID:  eccByName[ds.ECCServer].ID,
			DataRouterID: routerByName[ds.DataRouter].ID,
		})
	}

	return exp, eccByName, routerByName
}

// DispatchWorkers returns the configured worker pool size, or 0 if unset.
func (f *File) DispatchWorkers() int {
	return f.Dispatch.Workers
}

// MetricsEnabled reports whether the fleet layout turned metrics on.
func (f *File) MetricsEnabled() bool {
	return f.Metrics.Enabled
}

// MetricsListen returns the configured metrics bind address, falling back
// to the package default.
func (f *File) MetricsListen() string {
	if f.Metrics.Listen == "" {
		return metrics.DefaultListen
	}
	return f.Metrics.Listen
}

// SSHDefaults builds the sshworker.Config template every data router's
// Worker factory starts from, before filling in that router's own Alias.
func (f *File) SSHDefaults() sshworker.Config {
	return sshworker.Config{
		DefaultUser:    f.SSH.DefaultUser,
		IdentityFile:   f.SSH.IdentityFile,
		KnownHostsFile: f.SSH.KnownHostsFile,
		ConnectTimeout: f.SSH.ConnectTimeout,
	}
}

// PollerIntervals overlays any configured non-zero poller durations onto
// defaults, leaving defaults untouched where the fleet layout is silent.
func (f *File) PollerIntervals(defaults poller.Intervals) poller.Intervals {
	if f.Poller.EccServerRefresh > 0 {
		defaults.EccServerRefresh = f.Poller.EccServerRefresh
	}
	if f.Poller.EccServerOnline > 0 {
		defaults.EccServerOnline = f.Poller.EccServerOnline
	}
	if f.Poller.DataRouterStatus > 0 {
		defaults.DataRouterStatus = f.Poller.DataRouterStatus
	}
	return defaults
}
