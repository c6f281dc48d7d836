package deals

import (
	"context"
	"encoding/json"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/pickaxe-agent/lib/bus"
	"github.com/filecoin-project/pickaxe-agent/metrics"
	"github.com/filecoin-project/pickaxe-agent/shared"
)

// StageEvt is the journal entry written on every stage a request enters.
type StageEvt struct {
	Request string
	State   DealState
}

type stageHandler func(d *driver, ctx context.Context) (interface{}, error)

// States without a handler settle for a moment and move on.
var stageHandlers = map[DealState]stageHandler{
	StateQueuing:   (*driver).queue,
	StateQueued:    (*driver).awaitStart,
	StateProposing: (*driver).awaitOutcome,
}

// driver runs the state machine of a single deal request.
type driver struct {
	a     *Agent
	id    string
	req   DealRequest
	store Store

	// jobs carries worker events for this request only
	jobs *bus.Bus

	state   DealState
	outcome interface{}
}

func newDriver(a *Agent, nr NewDealRequest) *driver {
	return &driver{
		a:     a,
		id:    nr.ID,
		req:   nr.Request,
		store: nr.Store,
		jobs:  bus.New(bus.WithReplay()),
		state: StateAck,
	}
}

func (d *driver) run(ctx context.Context) error {
	for !d.state.Terminal() {
		if err := d.enter(ctx); err != nil {
			return err
		}

		h, ok := stageHandlers[d.state]
		if !ok {
			h = (*driver).settle
		}

		sctx, _ := tag.New(ctx, tag.Upsert(metrics.DealStage, string(d.state)))
		done := metrics.Timer(sctx, metrics.DealStageDuration)
		evt, err := h(d, ctx)
		done()
		if err != nil {
			return xerrors.Errorf("deal request %s in stage %s: %w", d.id, d.state, err)
		}

		next, err := plan(d.state, evt)
		if err != nil {
			return xerrors.Errorf("deal request %s: %w", d.id, err)
		}

		switch evt.(type) {
		case evtDealSuccess, evtDealFailed:
			d.outcome = evt
		}
		d.state = next
	}

	if err := d.enter(ctx); err != nil {
		return err
	}
	if err := d.recordOutcome(ctx); err != nil {
		return err
	}

	log.Infow("deal request done", "request", d.id, "state", d.state)
	return nil
}

// enter records the current stage before any work for it starts.
func (d *driver) enter(ctx context.Context) error {
	log.Infow("entered stage", "request", d.id, "state", d.state)

	sctx, _ := tag.New(ctx, tag.Upsert(metrics.DealStage, string(d.state)))
	stats.Record(sctx, metrics.DealStageEntered.M(1))

	d.a.journal.RecordEvent(d.a.evtStage, func() interface{} {
		return StageEvt{Request: d.id, State: d.state}
	})

	if err := d.write(ctx, FieldAgentState, AgentState{State: d.state}); err != nil {
		return xerrors.Errorf("recording stage %s of deal request %s: %w", d.state, d.id, err)
	}
	return nil
}

func (d *driver) recordOutcome(ctx context.Context) error {
	var err error
	switch o := d.outcome.(type) {
	case evtDealSuccess:
		err = d.write(ctx, FieldDeal, o.Deal)
	case evtDealFailed:
		err = d.write(ctx, FieldErrorMsg, o.Err)
	default:
		return xerrors.Errorf("deal request %s ended in %s without an outcome", d.id, d.state)
	}
	if err != nil {
		return xerrors.Errorf("recording outcome of deal request %s: %w", d.id, err)
	}
	return nil
}

func (d *driver) write(ctx context.Context, field string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return xerrors.Errorf("encoding %s: %w", field, err)
	}

	return d.store.ApplySub(ctx, d.id,
		shared.ContainerORMap, shared.OpApplySub,
		field, shared.RegisterMVReg, shared.OpWrite,
		string(b))
}

func (d *driver) settle(ctx context.Context) (interface{}, error) {
	if d.a.settleDelay > 0 {
		select {
		case <-d.a.clock.After(d.a.settleDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return evtNext{}, nil
}

func (d *driver) queue(ctx context.Context) (interface{}, error) {
	if err := d.a.worker.QueueProposeDeal(ctx, d.jobs, d.id, d.req.Payload); err != nil {
		return nil, xerrors.Errorf("queueing proposal: %w", err)
	}
	return evtNext{}, nil
}

func (d *driver) awaitStart(ctx context.Context) (interface{}, error) {
	if _, err := d.waitFor(ctx, JobStarted); err != nil {
		return nil, err
	}
	return evtNext{}, nil
}

func (d *driver) awaitOutcome(ctx context.Context) (interface{}, error) {
	evt, err := d.waitFor(ctx, JobSuccess, JobFail)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(evt.Data)
	if err != nil {
		return nil, xerrors.Errorf("encoding %s payload: %w", evt.Name, err)
	}

	if evt.Name == JobSuccess {
		return evtDealSuccess{Deal: b}, nil
	}
	return evtDealFailed{Err: b}, nil
}

func (d *driver) waitFor(ctx context.Context, names ...string) (bus.Event, error) {
	if d.a.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.a.stageTimeout)
		defer cancel()
	}

	evt, err := d.jobs.WaitFor(ctx, names...)
	if err != nil {
		return bus.Event{}, xerrors.Errorf("waiting for %v: %w", names, err)
	}
	return evt, nil
}
