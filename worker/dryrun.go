package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/raulk/clock"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/pickaxe-agent/build"
)

// DryRunDeal is what DryRunProposer answers.
type DryRunDeal struct {
	DealID  string `json:"dealId"`
	Request string `json:"request"`
}

// DryRunProposer pretends to propose a deal. It takes Delay to answer with a
// fresh deal id, and rejects payloads that are not JSON objects.
type DryRunProposer struct {
	Delay time.Duration
	Clock clock.Clock
}

var _ Proposer = (*DryRunProposer)(nil)

func NewDryRunProposer(delay time.Duration) *DryRunProposer {
	return &DryRunProposer{Delay: delay, Clock: build.Clock}
}

func (p *DryRunProposer) ProposeDeal(ctx context.Context, id string, payload json.RawMessage) (interface{}, error) {
	var params map[string]json.RawMessage
	if err := json.Unmarshal(payload, &params); err != nil || params == nil {
		return nil, xerrors.Errorf("deal request %s: payload is not a JSON object", id)
	}

	if p.Delay > 0 {
		c := p.Clock
		if c == nil {
			c = build.Clock
		}
		select {
		case <-c.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return DryRunDeal{
		DealID:  uuid.New().String(),
		Request: id,
	}, nil
}
