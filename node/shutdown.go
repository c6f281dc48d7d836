package node

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("node")

// StopFunc stops a component.
type StopFunc func(context.Context) error

type ShutdownHandler struct {
	Component string
	StopFunc  StopFunc
}

// MonitorShutdown waits for SIGTERM, SIGINT or triggerCh, then stops the
// handlers one at a time in the order given. A failing handler is logged and
// the next one still runs. The returned channel is closed once every handler
// has returned.
func MonitorShutdown(triggerCh <-chan struct{}, handlers ...ShutdownHandler) <-chan struct{} {
	sigCh := make(chan os.Signal, 2)
	out := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			log.Warnw("received shutdown", "signal", sig)
		case <-triggerCh:
			log.Warn("received shutdown")
		}

		var failed int
		for _, h := range handlers {
			if err := h.StopFunc(context.Background()); err != nil {
				failed++
				log.Errorw("stopping component", "component", h.Component, "error", err)
				continue
			}
			log.Infow("component stopped", "component", h.Component)
		}

		if failed > 0 {
			log.Warnw("shutdown finished with errors", "failed", failed, "components", len(handlers))
		} else {
			log.Warn("shutdown complete")
		}

		_ = log.Sync() //nolint:errcheck
		close(out)
	}()

	signal.Reset(syscall.SIGTERM, syscall.SIGINT)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	return out
}
