package node

import (
	"context"
	"net"
	"net/http"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/gorilla/mux"
	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opencensus.io/tag"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-jsonrpc"

	"github.com/filecoin-project/pickaxe-agent/api"
	"github.com/filecoin-project/pickaxe-agent/metrics"
)

// AgentHandler returns the agent http.Handler, to be mounted as-is on the
// server. It serves the JSON-RPC API under /rpc/v0 and the opencensus views
// under /debug/metrics.
func AgentHandler(a api.AgentAPI, opts ...jsonrpc.ServerOption) (http.Handler, error) {
	m := mux.NewRouter()

	rpcServer := jsonrpc.NewServer(append(opts, jsonrpc.WithServerErrors(api.RPCErrors))...)
	rpcServer.Register("Pickaxe", a)
	m.Handle("/rpc/v0", rpcServer)

	registry := promclient.NewRegistry()
	exporter, err := prometheus.NewExporter(prometheus.Options{
		Registry:  registry,
		Namespace: "pickaxe",
	})
	if err != nil {
		return nil, xerrors.Errorf("creating prometheus exporter: %w", err)
	}
	m.Handle("/debug/metrics", exporter)

	m.HandleFunc("/health/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return m, nil
}

// ServeRPC serves an HTTP handler over the supplied listen address.
//
// This function spawns a goroutine to run the server, and returns immediately.
// It returns the stop function to be called to terminate the endpoint, and the
// address actually listened on.
//
// The supplied ID is used in tracing, by inserting a tag in the context.
func ServeRPC(h http.Handler, id string, addr string) (StopFunc, net.Addr, error) {
	// Start listening to the addr; if invalid or occupied, we will fail early.
	lst, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, xerrors.Errorf("could not listen: %w", err)
	}

	// Instantiate the server and start listening.
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 30 * time.Second,
		BaseContext: func(listener net.Listener) context.Context {
			ctx, _ := tag.New(context.Background(), tag.Upsert(metrics.APIInterface, id))
			return ctx
		},
	}

	go func() {
		err := srv.Serve(lst)
		if err != http.ErrServerClosed {
			log.Warnf("rpc server failed: %s", err)
		}
	}()

	log.Infow("serving api", "id", id, "addr", lst.Addr().String())
	return srv.Shutdown, lst.Addr(), nil
}
