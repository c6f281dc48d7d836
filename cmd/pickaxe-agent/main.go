package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"

	"github.com/filecoin-project/pickaxe-agent/build"
	"github.com/filecoin-project/pickaxe-agent/lib/agentlog"
)

var log = logging.Logger("main")

func main() {
	agentlog.SetupLogLevels()

	app, pr := newApp()
	if err := runApp(app, pr, os.Args); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
}

// panicReport holds where a panic report goes, as resolved from the global
// flags once they are parsed.
type panicReport struct {
	persist string
	repo    string
}

func (p *panicReport) capture(cctx *cli.Context) {
	p.repo, _ = homedir.Expand(cctx.String("repo"))
	p.persist, _ = homedir.Expand(cctx.String("panic-reports"))
}

// runApp runs app, writing a panic report before re-raising any panic.
func runApp(app *cli.App, pr *panicReport, args []string) error {
	defer func() {
		if r := recover(); r != nil {
			// Generate report in PICKAXE_PANIC_REPORT_PATH and re-raise panic
			build.GeneratePanicReport(pr.persist, pr.repo, app.Name)
			panic(r)
		}
	}()

	return app.Run(args)
}

func newApp(extra ...*cli.Command) (*cli.App, *panicReport) {
	local := append([]*cli.Command{
		runCmd,
		configCmd,
		requestsCmd,
	}, extra...)

	pr := &panicReport{}
	app := &cli.App{
		Name:                 "pickaxe-agent",
		Usage:                "Drive Filecoin deal requests found in a shared collection",
		Version:              build.UserVersion(),
		EnableBashCompletion: true,
		ArgsUsage:            "[config-path]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Usage:   "host:port of a running agent's API",
				EnvVars: []string{"PICKAXE_API"},
				Value:   "127.0.0.1:3456",
			},
			&cli.StringFlag{
				Name:    "panic-reports",
				EnvVars: []string{"PICKAXE_PANIC_REPORT_PATH"},
				Hidden:  true,
			},
			&cli.StringFlag{
				Name:    "repo",
				Usage:   "directory holding the journal, as Journal.Path",
				EnvVars: []string{"PICKAXE_PATH"},
				Value:   "~/.filecoin-pickaxe",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level of every subsystem, eg. debug",
			},
		},
		Before: func(cctx *cli.Context) error {
			pr.capture(cctx)
			if lvl := cctx.String("log-level"); lvl != "" {
				return logging.SetLogLevel("*", lvl)
			}
			return nil
		},
		// with no subcommand the agent runs, like `run`
		Action:   runAgent,
		Commands: local,
	}
	app.Setup()

	return app, pr
}
