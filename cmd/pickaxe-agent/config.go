package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"

	"github.com/filecoin-project/pickaxe-agent/node/config"
)

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "Manage agent config",
	Subcommands: []*cli.Command{
		configDefaultCmd,
		configShowCmd,
	},
}

var configDefaultCmd = &cli.Command{
	Name:    "default",
	Aliases: []string{"defaults"},
	Usage:   "Print default agent config",
	Action: func(cctx *cli.Context) error {
		cb, err := config.ConfigComment(config.Default())
		if err != nil {
			return err
		}
		fmt.Print(string(cb))

		return nil
	},
}

var configShowCmd = &cli.Command{
	Name:      "show",
	Usage:     "Print the config the agent would run with",
	ArgsUsage: "[config-path]",
	Action: func(cctx *cli.Context) error {
		cfgPath := config.DefaultPath
		if cctx.Args().Present() {
			cfgPath = cctx.Args().First()
		}

		cfg, err := config.FromFile(cfgPath, config.Default())
		if err != nil {
			return err
		}

		return toml.NewEncoder(cctx.App.Writer).Encode(cfg)
	},
}
