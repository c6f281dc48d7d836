package client

import (
	"context"
	"net/http"

	"github.com/filecoin-project/go-jsonrpc"

	"github.com/filecoin-project/pickaxe-agent/api"
)

// NewAgentRPC creates a new http jsonrpc client for the agent
func NewAgentRPC(ctx context.Context, addr string, requestHeader http.Header, opts ...jsonrpc.Option) (api.AgentAPI, jsonrpc.ClientCloser, error) {
	var res api.AgentStruct
	closer, err := jsonrpc.NewMergeClient(ctx, addr, "Pickaxe",
		[]interface{}{
			&res.Internal,
		},
		requestHeader,
		append([]jsonrpc.Option{jsonrpc.WithErrors(api.RPCErrors)}, opts...)...,
	)

	return &res, closer, err
}
