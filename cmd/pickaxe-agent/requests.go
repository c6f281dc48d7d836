package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-jsonrpc"

	"github.com/filecoin-project/pickaxe-agent/api"
	"github.com/filecoin-project/pickaxe-agent/api/client"
	"github.com/filecoin-project/pickaxe-agent/deals"
)

var requestsCmd = &cli.Command{
	Name:  "requests",
	Usage: "Inspect and submit deal requests of a running agent",
	Subcommands: []*cli.Command{
		requestsListCmd,
		requestsGetCmd,
		requestsSubmitCmd,
	},
}

var requestsListCmd = &cli.Command{
	Name:  "list",
	Usage: "List deal requests",
	Action: func(cctx *cli.Context) error {
		a, closer, err := getAgentAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := reqContext(cctx)

		list, err := a.DealRequestList(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cctx.App.Writer, 2, 4, 2, ' ', 0)
		_, _ = fmt.Fprintf(tw, "ID\tState\tClaimed\tPayload\n")
		for _, info := range list {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.ID, stateString(info.State), claimedString(info), info.Payload)
		}
		return tw.Flush()
	},
}

var requestsGetCmd = &cli.Command{
	Name:      "get",
	Usage:     "Print a deal request",
	ArgsUsage: "<id>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return cli.ShowSubcommandHelp(cctx)
		}

		a, closer, err := getAgentAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := reqContext(cctx)

		info, err := a.DealRequestGet(ctx, cctx.Args().First())
		if api.IsDealRequestNotFound(err) {
			return xerrors.Errorf("no deal request %s", cctx.Args().First())
		}
		if err != nil {
			return err
		}

		return printInfo(cctx.App.Writer, info)
	},
}

var requestsSubmitCmd = &cli.Command{
	Name:      "submit",
	Usage:     "Add a deal request to the collection",
	ArgsUsage: "<json payload>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return cli.ShowSubcommandHelp(cctx)
		}

		payload := json.RawMessage(cctx.Args().First())
		if !json.Valid(payload) {
			return xerrors.New("payload must be valid JSON")
		}

		a, closer, err := getAgentAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := reqContext(cctx)

		id, err := a.DealRequestSubmit(ctx, payload)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cctx.App.Writer, id)
		return nil
	},
}

func getAgentAPI(cctx *cli.Context) (api.AgentAPI, jsonrpc.ClientCloser, error) {
	addr := "ws://" + cctx.String("api") + "/rpc/v0"

	a, closer, err := client.NewAgentRPC(cctx.Context, addr, nil)
	if err != nil {
		return nil, nil, xerrors.Errorf("connecting to agent at %s: %w", addr, err)
	}
	return a, closer, nil
}

// reqContext is cancelled on SIGINT or SIGTERM.
func reqContext(cctx *cli.Context) context.Context {
	ctx, done := context.WithCancel(cctx.Context)
	sigChan := make(chan os.Signal, 2)
	go func() {
		<-sigChan
		done()
	}()
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	return ctx
}

func stateString(st string) string {
	switch deals.DealState(st) {
	case "":
		return color.YellowString("new")
	case deals.StateDealSuccess:
		return color.GreenString(st)
	case deals.StateDealFailed:
		return color.RedString(st)
	default:
		return st
	}
}

func claimedString(info api.DealRequestInfo) string {
	if !info.Active || info.ClaimedAt == nil {
		return "-"
	}
	return humanize.Time(*info.ClaimedAt)
}

func printInfo(w io.Writer, info *api.DealRequestInfo) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", info.ID)
	_, _ = fmt.Fprintf(tw, "State:\t%s\n", stateString(info.State))
	_, _ = fmt.Fprintf(tw, "Claimed:\t%s\n", claimedString(*info))
	_, _ = fmt.Fprintf(tw, "Payload:\t%s\n", info.Payload)
	if info.Deal != nil {
		_, _ = fmt.Fprintf(tw, "Deal:\t%s\n", info.Deal)
	}
	if info.ErrorMsg != nil {
		_, _ = fmt.Fprintf(tw, "Error:\t%s\n", info.ErrorMsg)
	}
	return tw.Flush()
}
