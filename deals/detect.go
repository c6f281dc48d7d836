package deals

import (
	"context"
	"sync"

	"go.opencensus.io/stats"

	"github.com/filecoin-project/pickaxe-agent/lib/bus"
	"github.com/filecoin-project/pickaxe-agent/metrics"
)

// Detector finds requests nobody has started yet and claims them.
type Detector struct {
	active *ActiveSet
	events *bus.Bus

	// a snapshot is fully claimed before the next one is looked at
	lk sync.Mutex
}

func NewDetector(active *ActiveSet, events *bus.Bus) *Detector {
	return &Detector{
		active: active,
		events: events,
	}
}

// Detect emits a NewDealRequest for every request in snap that has no
// agentState and that this call managed to claim. It returns the claimed ids.
func (d *Detector) Detect(ctx context.Context, snap Snapshot, st Store) []string {
	d.lk.Lock()
	defer d.lk.Unlock()

	var claimed []string
	for _, id := range snap.IDs() {
		req := snap[id]
		if req.AgentState != nil || !d.active.Claim(id) {
			continue
		}

		claimed = append(claimed, id)
		stats.Record(ctx, metrics.DealRequestsDiscovered.M(1))

		err := d.events.Emit(evtNewDealRequest, NewDealRequest{
			ID:      id,
			Request: req,
			Store:   st,
		})
		if err != nil {
			log.Errorw("emitting new deal request", "request", id, "error", err)
		}
	}

	return claimed
}
