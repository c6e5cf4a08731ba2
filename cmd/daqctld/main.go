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

// Command daqctld is the control plane daemon: it loads a fleet layout,
// opens the worker pool and poller, and serves the fleet's aggregate state
// over HTTP. Its CLI parsing follows cli/cli.go's structure (a single
// alexflint/go-arg root with a "run" subcommand); its top-level wiring
// follows mgmtmain.Main's Init/Run shape, adapted since this daemon has no
// etcd cluster or graph-engine layer to start.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"

	"github.com/attpc/daqctl/config"
	"github.com/attpc/daqctl/daqerr"
	"github.com/attpc/daqctl/daqlog"
	"github.com/attpc/daqctl/dispatch"
	"github.com/attpc/daqctl/eccstate"
	"github.com/attpc/daqctl/fleet"
	"github.com/attpc/daqctl/metrics"
	"github.com/attpc/daqctl/model"
	"github.com/attpc/daqctl/poller"
	"github.com/attpc/daqctl/soapclient"
	"github.com/attpc/daqctl/sshworker"

	"github.com/sirupsen/logrus"
)

var (
	version = "devel"
	program = "daqctld"
)

// rootArgs is the top-level CLI parsing structure, one alexflint/go-arg
// root with a "run" subcommand, the way Args/RunArgs split things in
// cli/cli.go and cli/run.go.
type rootArgs struct {
	RunCmd *runArgs `arg:"subcommand:run" help:"run the control plane daemon"`

	version     string `arg:"-"`
	description string `arg:"-"`
}

func (a *rootArgs) Version() string     { return a.version }
func (a *rootArgs) Description() string { return a.description }

type runArgs struct {
	Config        string `arg:"--config,required,env:DAQCTL_CONFIG" help:"path to the fleet layout YAML file"`
	Workers       int    `arg:"--workers" default:"0" help:"worker pool size; 0 uses the config file's dispatch.workers, or 8 if unset"`
	Listen        string `arg:"--listen" default:"127.0.0.1:8234" help:"operator HTTP API bind address"`
	NoMetrics     bool   `arg:"--no-metrics" help:"do not start the Prometheus metrics server"`
	MetricsListen string `arg:"--metrics-listen" help:"override the config file's metrics.listen address"`
}

func main() {
	args := &rootArgs{version: version, description: "ATTPC DAQ fleet control plane"}
	parser, err := arg.NewParser(arg.Config{Program: program}, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cli config error: %v\n", err)
		os.Exit(1)
	}
	if err := parser.Parse(os.Args[1:]); err != nil {
		if err == arg.ErrHelp {
			parser.WriteHelp(os.Stdout)
			return
		}
		if err == arg.ErrVersion {
			fmt.Println(version)
			return
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if args.RunCmd == nil {
		parser.WriteHelp(os.Stdout)
		return
	}

	if err := run(args.RunCmd); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", program, err)
		os.Exit(1)
	}
}

// daemon bundles the collaborators the operator HTTP handlers need, built
// once by run and closed over by every handler.
type daemon struct {
	disp         *dispatch.Dispatcher
	deps         *dispatch.Deps
	store        *model.Store
	experimentID int
	logf         daqlog.Logf
}

// run builds every collaborator and blocks until an interrupt or terminate
// signal arrives, the way main.go's waitForSignal gates process exit.
func run(a *runArgs) error {
	logger := logrus.StandardLogger()
	logf := daqlog.New(logger, program)

	f, err := config.Load(a.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store := model.NewStore()
	exp, eccByName, routerByName := f.Seed(store)
	logf("seeded experiment %s (id %d) with %d ecc servers, %d data routers",
		exp.Name, exp.ID, len(eccByName), len(routerByName))

	workers := a.Workers
	if workers == 0 {
		workers = f.DispatchWorkers()
	}
	if workers == 0 {
		workers = 8
	}

	eccClientFactory := func(ecc model.ECCServer) eccstate.Client {
		endpoint := fmt.Sprintf("http://%s:%d/", ecc.IPAddress, ecc.Port)
		return soapclient.New(endpoint, nil)
	}

	sshCfg := f.SSHDefaults()
	workerFactory := func(router model.DataRouter) (*sshworker.Worker, error) {
		cfg := sshCfg
		cfg.Alias = router.IPAddress
		w, err := sshworker.Dial(context.Background(), cfg)
		if err != nil {
			return nil, daqerr.Wrap(daqerr.KindTransport, err, "dial %s", router.IPAddress)
		}
		return w, nil
	}

	m := &metrics.Metrics{Listen: f.MetricsListen()}
	if a.MetricsListen != "" {
		m.Listen = a.MetricsListen
	}
	metricsEnabled := f.MetricsEnabled() && !a.NoMetrics
	if metricsEnabled {
		m.Init()
		m.Start()
		logf("metrics listening on %s", m.Listen)
	}

	disp := dispatch.New(workers, logf)
	if metricsEnabled {
		disp.OnAbandon = func(taskName string) {
			m.RecordTaskAbandoned()
		}
	}
	defer disp.Close()

	deps := &dispatch.Deps{
		Store:     store,
		ECCClient: eccClientFactory,
		Worker:    workerFactory,
		Logf:      logf,
	}

	p := poller.New(disp, deps, f.PollerIntervals(poller.DefaultIntervals()), logf)
	deps.OnTransportError = p.NoteTransportError

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	if metricsEnabled {
		go observeFleet(ctx, store, m, exp.ID, exp.Name)
	}

	d := &daemon{disp: disp, deps: deps, store: store, experimentID: exp.ID, logf: logf}
	srv := &http.Server{Addr: a.Listen, Handler: d.mux()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logf("operator API: %v", err)
		}
	}()

	waitForSignal(logf)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// mux builds the operator-facing HTTP surface: fleet state on GET, a
// change-state request on POST, following the plain net/http handler style
// prometheus/prometheus.go uses for its own /metrics endpoint rather than
// pulling in a router library for two routes.
func (d *daemon) mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/fleet/state", d.handleState)
	mux.HandleFunc("/fleet/change-state", d.handleChangeState)
	return mux
}

func (d *daemon) handleState(w http.ResponseWriter, r *http.Request) {
	servers := d.store.ECCServersForExperiment(d.experimentID)
	resp := struct {
		Overall string             `json:"overall"`
		Servers []model.ECCServer  `json:"ecc_servers"`
		Routers []model.DataRouter `json:"data_routers"`
	}{
		Overall: fleet.OverallStateName(servers),
		Servers: servers,
		Routers: d.store.DataRoutersForExperiment(d.experimentID),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (d *daemon) handleChangeState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw := r.URL.Query().Get("target")
	n, err := strconv.Atoi(raw)
	if err != nil && raw != "reset" {
		http.Error(w, "invalid ?target=", http.StatusBadRequest)
		return
	}
	target := model.State(n)
	if raw == "reset" {
		target = fleet.RESET
	}

	if err := fleet.ChangeStateAll(d.disp, d.deps, d.store, d.experimentID, target); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// observeFleet keeps the metrics gauges current on a short interval,
// independent of the poller's own remote-refresh cadence, so a dashboard
// reflects the store even between poller ticks.
func observeFleet(ctx context.Context, store *model.Store, m *metrics.Metrics, experimentID int, experimentName string) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			servers := store.ECCServersForExperiment(experimentID)
			m.ObserveECCServers(servers)
			m.ObserveDataRouters(experimentName, store.DataRoutersForExperiment(experimentID))
			m.ObserveFleetState(experimentName, fleet.OverallStateName(servers))
		}
	}
}

func waitForSignal(logf daqlog.Logf) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	sig := <-signals
	logf("shutting down on signal %v", sig)
}
