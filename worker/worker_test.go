package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/pickaxe-agent/deals"
	"github.com/filecoin-project/pickaxe-agent/lib/bus"
	"github.com/filecoin-project/pickaxe-agent/shared"
)

type proposerFunc func(ctx context.Context, id string, payload json.RawMessage) (interface{}, error)

func (f proposerFunc) ProposeDeal(ctx context.Context, id string, payload json.RawMessage) (interface{}, error) {
	return f(ctx, id, payload)
}

func closeWorker(t *testing.T, w *LocalWorker) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, w.Close(ctx))
	})
}

func waitOutcome(t *testing.T, jobs *bus.Bus) bus.Event {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := jobs.WaitFor(ctx, deals.JobStarted)
	require.NoError(t, err)

	evt, err := jobs.WaitFor(ctx, deals.JobSuccess, deals.JobFail)
	require.NoError(t, err)
	return evt
}

func TestLocalWorkerReportsSuccess(t *testing.T) {
	w := NewLocalWorker(proposerFunc(func(ctx context.Context, id string, payload json.RawMessage) (interface{}, error) {
		return map[string]string{"dealId": "X", "for": id}, nil
	}), 2, 4)
	closeWorker(t, w)

	jobs := bus.New(bus.WithReplay())
	require.NoError(t, w.QueueProposeDeal(context.Background(), jobs, "R1", json.RawMessage(`{}`)))

	evt := waitOutcome(t, jobs)
	require.Equal(t, deals.JobSuccess, evt.Name)
	require.Equal(t, map[string]string{"dealId": "X", "for": "R1"}, evt.Data)
}

func TestLocalWorkerReportsFailure(t *testing.T) {
	w := NewLocalWorker(proposerFunc(func(ctx context.Context, id string, payload json.RawMessage) (interface{}, error) {
		return nil, xerrors.New("insufficient funds")
	}), 1, 1)
	closeWorker(t, w)

	jobs := bus.New(bus.WithReplay())
	require.NoError(t, w.QueueProposeDeal(context.Background(), jobs, "R2", json.RawMessage(`{}`)))

	evt := waitOutcome(t, jobs)
	require.Equal(t, deals.JobFail, evt.Name)
	require.Equal(t, deals.DealFailure{Reason: "insufficient funds"}, evt.Data)
}

func TestLocalWorkerQueueWaitsForRoom(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 4)
	w := NewLocalWorker(proposerFunc(func(ctx context.Context, id string, payload json.RawMessage) (interface{}, error) {
		started <- struct{}{}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return map[string]string{"dealId": id}, nil
	}), 1, 1)
	closeWorker(t, w)

	ctx := context.Background()
	require.NoError(t, w.QueueProposeDeal(ctx, bus.New(bus.WithReplay()), "a", json.RawMessage(`{}`)))
	<-started
	require.NoError(t, w.QueueProposeDeal(ctx, bus.New(bus.WithReplay()), "b", json.RawMessage(`{}`)))

	// no room: the caller waits until its context gives up
	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	err := w.QueueProposeDeal(tctx, bus.New(bus.WithReplay()), "c", json.RawMessage(`{}`))
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	jobs := bus.New(bus.WithReplay())
	queued := make(chan error, 1)
	go func() {
		queued <- w.QueueProposeDeal(ctx, jobs, "c", json.RawMessage(`{}`))
	}()

	close(block)
	require.NoError(t, <-queued)

	evt := waitOutcome(t, jobs)
	require.Equal(t, deals.JobSuccess, evt.Name)
	require.Equal(t, map[string]string{"dealId": "c"}, evt.Data)
}

func TestLocalWorkerCloseReleasesWaitingCallers(t *testing.T) {
	started := make(chan struct{}, 1)
	w := NewLocalWorker(proposerFunc(func(ctx context.Context, id string, payload json.RawMessage) (interface{}, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}), 1, 0)

	ctx := context.Background()
	require.NoError(t, w.QueueProposeDeal(ctx, bus.New(bus.WithReplay()), "a", json.RawMessage(`{}`)))
	<-started

	waiting := make(chan error, 1)
	go func() {
		waiting <- w.QueueProposeDeal(ctx, bus.New(bus.WithReplay()), "b", json.RawMessage(`{}`))
	}()

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, w.Close(cctx))

	select {
	case err := <-waiting:
		require.ErrorIs(t, err, ErrClosed)
	case <-cctx.Done():
		t.Fatal("caller still waiting after close")
	}
}

func TestLocalWorkerDrainsBacklog(t *testing.T) {
	const backlog = 40

	w := NewLocalWorker(proposerFunc(func(ctx context.Context, id string, payload json.RawMessage) (interface{}, error) {
		select {
		case <-time.After(time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return map[string]string{"dealId": "D-" + id}, nil
	}), 2, 4)
	closeWorker(t, w)

	ctx := context.Background()
	st := shared.NewMemory("pickaxe-test")
	for i := 0; i < backlog; i++ {
		require.NoError(t, st.ApplySub(ctx, fmt.Sprintf("R%02d", i),
			shared.ContainerORMap, shared.OpApplySub,
			deals.FieldPayload, shared.RegisterMVReg, shared.OpWrite, `{"cid":"abc"}`))
	}

	a := deals.NewAgent(st, w, deals.WithSettleDelay(time.Millisecond))
	require.NoError(t, a.Start(ctx))
	t.Cleanup(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, a.Stop(sctx))
	})

	require.Eventually(t, func() bool {
		snap, err := a.Snapshot(ctx)
		if err != nil || len(snap) != backlog {
			return false
		}
		for _, req := range snap {
			if req.AgentState == nil || req.AgentState.State != deals.StateDealSuccess || req.Deal == nil {
				return false
			}
		}
		return true
	}, 10*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool { return a.Running() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestLocalWorkerClosed(t *testing.T) {
	w := NewLocalWorker(NewDryRunProposer(0), 1, 1)
	require.NoError(t, w.Close(context.Background()))
	require.NoError(t, w.Close(context.Background()))

	err := w.QueueProposeDeal(context.Background(), bus.New(), "a", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrClosed)
}

func TestDryRunProposer(t *testing.T) {
	mc := clock.NewMock()
	p := &DryRunProposer{Delay: time.Second, Clock: mc}

	_, err := p.ProposeDeal(context.Background(), "bad", json.RawMessage(`[1,2]`))
	require.Error(t, err)
	_, err = p.ProposeDeal(context.Background(), "bad", json.RawMessage(`null`))
	require.Error(t, err)

	type result struct {
		deal interface{}
		err  error
	}
	res := make(chan result, 1)
	go func() {
		deal, err := p.ProposeDeal(context.Background(), "R1", json.RawMessage(`{"cid":"abc"}`))
		res <- result{deal, err}
	}()

	var r result
	require.Eventually(t, func() bool {
		mc.Add(100 * time.Millisecond)
		select {
		case r = <-res:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, r.err)
	deal := r.deal.(DryRunDeal)
	require.Equal(t, "R1", deal.Request)
	require.NotEmpty(t, deal.DealID)

	b, err := json.Marshal(deal)
	require.NoError(t, err)
	require.Contains(t, string(b), `"request":"R1"`)
}

func TestDryRunProposerCancelled(t *testing.T) {
	p := &DryRunProposer{Delay: time.Hour, Clock: clock.NewMock()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ProposeDeal(ctx, "R1", json.RawMessage(`{}`))
	require.ErrorIs(t, err, context.Canceled)
}
