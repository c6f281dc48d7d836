package deals

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/pickaxe-agent/build"
	"github.com/filecoin-project/pickaxe-agent/journal"
	"github.com/filecoin-project/pickaxe-agent/lib/bus"
	"github.com/filecoin-project/pickaxe-agent/metrics"
	"github.com/filecoin-project/pickaxe-agent/shared"
)

var log = logging.Logger("deals")

// DefaultSettleDelay is how long a request stays in ack before it is queued.
const DefaultSettleDelay = time.Second

// Agent watches the shared deal request collection and runs one driver per
// request it claims.
type Agent struct {
	store   Store
	worker  Worker
	journal journal.Journal
	clock   clock.Clock

	settleDelay  time.Duration
	stageTimeout time.Duration

	events   *bus.Bus
	active   *ActiveSet
	detector *Detector
	evtStage journal.EventType

	changed chan struct{}
	unsubs  []bus.Unsubscribe

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	stopped chan struct{}

	drivers sync.WaitGroup
	running atomic.Int64
}

type Option func(*Agent)

func WithClock(c clock.Clock) Option {
	return func(a *Agent) {
		a.clock = c
	}
}

func WithJournal(j journal.Journal) Option {
	return func(a *Agent) {
		a.journal = j
	}
}

// WithSettleDelay sets how long a new request waits in ack.
func WithSettleDelay(d time.Duration) Option {
	return func(a *Agent) {
		a.settleDelay = d
	}
}

// WithStageTimeout bounds each wait for a worker event. Zero waits forever.
func WithStageTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.stageTimeout = d
	}
}

func NewAgent(st Store, w Worker, opts ...Option) *Agent {
	a := &Agent{
		store:       st,
		worker:      w,
		journal:     journal.NilJournal(),
		clock:       build.Clock,
		settleDelay: DefaultSettleDelay,

		events: bus.New(),

		changed: make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.active = NewActiveSet(a.clock)
	a.detector = NewDetector(a.active, a.events)
	a.evtStage = a.journal.RegisterEventType("deals", "stage")

	return a
}

// Start subscribes to the collection and evaluates it once right away.
func (a *Agent) Start(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return xerrors.New("agent already started")
	}

	// all subscriptions to a.events happen here, before anything is emitted
	a.unsubs = append(a.unsubs,
		a.events.On(evtNewState, func(data interface{}) {
			a.detector.Detect(a.ctx, data.(Snapshot), a.store)
		}),
		a.events.On(evtNewDealRequest, func(data interface{}) {
			a.startDriver(data.(NewDealRequest))
		}),
		a.store.OnChange(a.notify),
	)

	go a.run()
	a.notify()

	log.Infow("deal agent started", "settle", a.settleDelay, "stageTimeout", a.stageTimeout)
	return nil
}

// Stop cancels every driver and waits for them to return, or for ctx.
func (a *Agent) Stop(ctx context.Context) error {
	a.cancel()
	if !a.started.Load() {
		return nil
	}

	<-a.stopped
	for _, unsub := range a.unsubs {
		unsub()
	}

	done := make(chan struct{})
	go func() {
		a.drivers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return xerrors.Errorf("waiting for %d deal drivers: %w", a.running.Load(), ctx.Err())
	}
}

func (a *Agent) run() {
	defer close(a.stopped)

	for {
		select {
		case <-a.changed:
			a.refresh(a.ctx)
		case <-a.ctx.Done():
			return
		}
	}
}

// notify coalesces change notifications; it never blocks the writer.
func (a *Agent) notify() {
	select {
	case a.changed <- struct{}{}:
	default:
	}
}

func (a *Agent) refresh(ctx context.Context) {
	snap, err := a.Snapshot(ctx)
	if snap == nil {
		log.Errorw("reading deal requests", "error", err)
		return
	}

	if err := a.events.Emit(evtNewState, snap); err != nil {
		log.Errorw("emitting new state", "error", err)
	}
}

// Snapshot returns the projected collection. Requests that fail to decode are
// left out and logged.
func (a *Agent) Snapshot(ctx context.Context) (Snapshot, error) {
	raw, err := a.store.Value(ctx)
	if err != nil {
		return nil, xerrors.Errorf("reading collection: %w", err)
	}

	snap, err := Project(raw)
	for _, derr := range multierr.Errors(err) {
		log.Warnw("skipping deal request", "error", derr)
		stats.Record(ctx, metrics.DealDecodeErrors.M(1))
	}
	return snap, err
}

// Submit adds a new deal request with the given payload to the collection.
func (a *Agent) Submit(ctx context.Context, payload json.RawMessage) (string, error) {
	if !json.Valid(payload) {
		return "", xerrors.New("deal request payload is not valid JSON")
	}

	id := uuid.New().String()
	err := a.store.ApplySub(ctx, id,
		shared.ContainerORMap, shared.OpApplySub,
		FieldPayload, shared.RegisterMVReg, shared.OpWrite,
		string(payload))
	if err != nil {
		return "", xerrors.Errorf("submitting deal request: %w", err)
	}

	return id, nil
}

// Active reports whether a driver of this agent owns id.
func (a *Agent) Active(id string) bool {
	return a.active.Has(id)
}

// ClaimedAt returns when this agent claimed id.
func (a *Agent) ClaimedAt(id string) (time.Time, bool) {
	return a.active.ClaimedAt(id)
}

// Running returns how many drivers have not returned yet.
func (a *Agent) Running() int {
	return int(a.running.Load())
}

func (a *Agent) startDriver(nr NewDealRequest) {
	log.Infow("new deal request", "request", nr.ID, "payload", string(nr.Request.Payload))

	d := newDriver(a, nr)

	a.drivers.Add(1)
	go func() {
		defer a.drivers.Done()

		stats.Record(a.ctx, metrics.DealDriversActive.M(a.running.Add(1)))
		defer func() {
			stats.Record(a.ctx, metrics.DealDriversActive.M(a.running.Add(-1)))
		}()

		err := d.run(a.ctx)
		switch {
		case err == nil:
		case xerrors.Is(err, context.Canceled):
			log.Infow("deal request driver stopped", "request", nr.ID, "state", d.state)
		default:
			log.Errorw("deal request driver failed", "request", nr.ID, "state", d.state, "error", err)

			ctx, _ := tag.New(a.ctx, tag.Upsert(metrics.FailureType, failureType(err)))
			stats.Record(ctx, metrics.DealDriverErrors.M(1))
		}
	}()
}

func failureType(err error) string {
	switch {
	case xerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case xerrors.Is(err, shared.ErrUnsupportedOp), xerrors.Is(err, shared.ErrInvalidKey):
		return "store"
	default:
		return "driver"
	}
}
