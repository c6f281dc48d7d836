package main

import (
	"context"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/pickaxe-agent/build"
	"github.com/filecoin-project/pickaxe-agent/deals"
	"github.com/filecoin-project/pickaxe-agent/journal"
	"github.com/filecoin-project/pickaxe-agent/journal/fsjournal"
	"github.com/filecoin-project/pickaxe-agent/lib/agentlog"
	"github.com/filecoin-project/pickaxe-agent/metrics"
	"github.com/filecoin-project/pickaxe-agent/node"
	"github.com/filecoin-project/pickaxe-agent/node/config"
	"github.com/filecoin-project/pickaxe-agent/node/impl"
	"github.com/filecoin-project/pickaxe-agent/shared"
	"github.com/filecoin-project/pickaxe-agent/worker"
)

const shutdownTimeout = 30 * time.Second

var runCmd = &cli.Command{
	Name:      "run",
	Usage:     "Start the deal agent",
	ArgsUsage: "[config-path]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "host address and port the agent api will listen on, overrides API.ListenAddress",
		},
	},
	Action: runAgent,
}

func runAgent(cctx *cli.Context) error {
	cfgPath := config.DefaultPath
	if cctx.Args().Present() {
		cfgPath = cctx.Args().First()
	}

	cfg, err := config.FromFile(cfgPath, config.Default())
	if err != nil {
		return xerrors.Errorf("loading config %s: %w", cfgPath, err)
	}
	if cctx.IsSet("listen") {
		cfg.API.ListenAddress = cctx.String("listen")
	}
	if err := agentlog.SetSubsystemLevels(cfg.Logging.SubsystemLevels); err != nil {
		return xerrors.Errorf("setting log levels: %w", err)
	}

	ctx, _ := tag.New(context.Background(),
		tag.Insert(metrics.Version, build.BuildVersion),
		tag.Insert(metrics.Commit, build.CurrentCommit),
	)

	// Register all metric views
	if err := view.Register(
		metrics.DefaultViews...,
	); err != nil {
		log.Fatalf("Cannot register the view: %v", err)
	}
	stats.Record(ctx, metrics.AgentInfo.M(1))

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		_ = st.Close()
		return err
	}

	w := worker.NewLocalWorker(
		worker.NewDryRunProposer(time.Duration(cfg.Worker.ProposeDelay)),
		cfg.Worker.Concurrency,
		cfg.Worker.QueueSize,
	)

	a := deals.NewAgent(st, w,
		deals.WithJournal(j),
		deals.WithSettleDelay(time.Duration(cfg.Deals.SettleDelay)),
		deals.WithStageTimeout(time.Duration(cfg.Deals.StageTimeout)),
	)

	handlers := []node.ShutdownHandler{
		{Component: "agent", StopFunc: withTimeout(a.Stop)},
		{Component: "worker", StopFunc: withTimeout(w.Close)},
		{Component: "journal", StopFunc: func(context.Context) error { return j.Close() }},
		{Component: "store", StopFunc: func(context.Context) error { return st.Close() }},
	}

	if err := a.Start(ctx); err != nil {
		return xerrors.Errorf("starting agent: %w", err)
	}

	if cfg.API.ListenAddress != "" {
		h, err := node.AgentHandler(&impl.AgentAPI{Agent: a})
		if err != nil {
			return xerrors.Errorf("creating api handler: %w", err)
		}

		rpcStopper, _, err := node.ServeRPC(h, "pickaxe-agent", cfg.API.ListenAddress)
		if err != nil {
			return xerrors.Errorf("failed to start json-rpc endpoint: %w", err)
		}
		handlers = append([]node.ShutdownHandler{
			{Component: "rpc server", StopFunc: withTimeout(rpcStopper)},
		}, handlers...)
	}

	log.Infow("pickaxe agent running", "version", build.UserVersion(), "collection", cfg.Store.Collection, "backend", cfg.Store.Backend)

	// Monitor for shutdown.
	finishCh := node.MonitorShutdown(make(chan struct{}), handlers...)
	<-finishCh

	return nil
}

func withTimeout(stop node.StopFunc) node.StopFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return stop(ctx)
	}
}

func openStore(cfg config.Store) (*shared.DSStore, error) {
	if cfg.Backend == config.BackendMemory {
		log.Warnw("using the in-memory store, deal requests will be lost on exit", "collection", cfg.Collection)
		return shared.NewMemory(cfg.Collection), nil
	}

	path, err := homedir.Expand(cfg.Path)
	if err != nil {
		return nil, xerrors.Errorf("expanding store path: %w", err)
	}

	st, err := shared.OpenLevelDB(path, cfg.Collection)
	if err != nil {
		return nil, xerrors.Errorf("opening store: %w", err)
	}
	return st, nil
}

func openJournal(cfg config.Journal) (journal.Journal, error) {
	if cfg.Disabled {
		return journal.NilJournal(), nil
	}

	disabled, err := journal.ParseDisabledEvents(cfg.DisabledEvents)
	if err != nil {
		return nil, xerrors.Errorf("parsing Journal.DisabledEvents: %w", err)
	}
	disabled = journal.EnvDisabledEvents(append(journal.DefaultDisabledEvents, disabled...))

	path, err := homedir.Expand(cfg.Path)
	if err != nil {
		return nil, xerrors.Errorf("expanding journal path: %w", err)
	}

	j, err := fsjournal.OpenFSJournal(path, disabled)
	if err != nil {
		return nil, xerrors.Errorf("opening journal: %w", err)
	}
	return j, nil
}
