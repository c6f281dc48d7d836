package worker

import (
	"context"
	"encoding/json"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/pickaxe-agent/deals"
	"github.com/filecoin-project/pickaxe-agent/lib/bus"
	"github.com/filecoin-project/pickaxe-agent/metrics"
)

var log = logging.Logger("worker")

var ErrClosed = xerrors.New("worker is closed")

// Proposer makes the deal proposal for one request.
type Proposer interface {
	ProposeDeal(ctx context.Context, id string, payload json.RawMessage) (interface{}, error)
}

type job struct {
	id      string
	payload json.RawMessage
	jobs    *bus.Bus
}

// LocalWorker runs proposals on a fixed number of goroutines fed by a
// bounded queue.
type LocalWorker struct {
	proposer Proposer

	queue chan job

	lk     sync.RWMutex
	closed bool

	ctx     context.Context
	cancel  context.CancelFunc
	workers *errgroup.Group
}

var _ deals.Worker = (*LocalWorker)(nil)

func NewLocalWorker(p Proposer, concurrency, queueSize int) *LocalWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	w := &LocalWorker{
		proposer: p,
		queue:    make(chan job, queueSize),
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.workers = new(errgroup.Group)
	for i := 0; i < concurrency; i++ {
		w.workers.Go(w.loop)
	}

	log.Infow("worker started", "concurrency", concurrency, "queue", queueSize)
	return w
}

// QueueProposeDeal enqueues a proposal, waiting for room in the queue, and
// returns without waiting for the proposal itself. Progress is reported on
// jobs.
func (w *LocalWorker) QueueProposeDeal(ctx context.Context, jobs *bus.Bus, id string, payload json.RawMessage) error {
	w.lk.RLock()
	closed := w.closed
	w.lk.RUnlock()
	if closed {
		return ErrClosed
	}

	select {
	case w.queue <- job{id: id, payload: payload, jobs: jobs}:
		stats.Record(ctx, metrics.WorkerQueueDepth.M(int64(len(w.queue))))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return ErrClosed
	}
}

func (w *LocalWorker) loop() error {
	for {
		select {
		case j := <-w.queue:
			stats.Record(w.ctx, metrics.WorkerQueueDepth.M(int64(len(w.queue))))
			w.process(j)
		case <-w.ctx.Done():
			return nil
		}
	}
}

func (w *LocalWorker) process(j job) {
	emit := func(name string, data interface{}) {
		if err := j.jobs.Emit(name, data); err != nil {
			log.Errorw("emitting job event", "request", j.id, "event", name, "error", err)
		}
	}

	emit(deals.JobStarted, nil)

	deal, err := w.proposer.ProposeDeal(w.ctx, j.id, j.payload)
	if err != nil {
		if w.ctx.Err() != nil {
			log.Warnw("proposal interrupted", "request", j.id, "error", err)
			return
		}
		log.Warnw("proposal failed", "request", j.id, "error", err)
		emit(deals.JobFail, deals.DealFailure{Reason: err.Error()})
		return
	}

	log.Infow("proposal done", "request", j.id)
	emit(deals.JobSuccess, deal)
}

// Close stops accepting jobs, interrupts running proposals and waits for the
// worker goroutines to exit, or for ctx. Queued jobs are dropped.
func (w *LocalWorker) Close(ctx context.Context) error {
	w.lk.Lock()
	if w.closed {
		w.lk.Unlock()
		return nil
	}
	w.closed = true
	w.lk.Unlock()

	w.cancel()

	done := make(chan struct{})
	go func() {
		_ = w.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		if n := len(w.queue); n > 0 {
			log.Warnw("dropping queued proposals", "count", n)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
