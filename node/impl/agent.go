package impl

import (
	"context"
	"encoding/json"

	logging "github.com/ipfs/go-log/v2"

	"github.com/filecoin-project/pickaxe-agent/api"
	"github.com/filecoin-project/pickaxe-agent/build"
	"github.com/filecoin-project/pickaxe-agent/deals"
)

var log = logging.Logger("node")

// AgentAPI serves api.AgentAPI from a running deal agent.
type AgentAPI struct {
	Agent *deals.Agent
}

var _ api.AgentAPI = (*AgentAPI)(nil)

func (a *AgentAPI) Version(context.Context) (api.APIVersion, error) {
	return api.APIVersion{
		Version:    build.UserVersion(),
		APIVersion: build.APIVersion,
	}, nil
}

func (a *AgentAPI) DealRequestList(ctx context.Context) ([]api.DealRequestInfo, error) {
	snap, err := a.Agent.Snapshot(ctx)
	if snap == nil {
		return nil, err
	}

	out := make([]api.DealRequestInfo, 0, len(snap))
	for _, id := range snap.IDs() {
		out = append(out, a.info(snap[id]))
	}
	return out, nil
}

func (a *AgentAPI) DealRequestGet(ctx context.Context, id string) (*api.DealRequestInfo, error) {
	snap, err := a.Agent.Snapshot(ctx)
	if snap == nil {
		return nil, err
	}

	req, ok := snap[id]
	if !ok {
		return nil, api.ErrDealRequestNotFound
	}
	info := a.info(req)
	return &info, nil
}

func (a *AgentAPI) DealRequestSubmit(ctx context.Context, payload json.RawMessage) (string, error) {
	id, err := a.Agent.Submit(ctx, payload)
	if err != nil {
		return "", err
	}

	log.Infow("deal request submitted", "request", id)
	return id, nil
}

func (a *AgentAPI) info(req deals.DealRequest) api.DealRequestInfo {
	info := api.DealRequestInfo{
		ID:       req.ID,
		Payload:  req.Payload,
		Active:   a.Agent.Active(req.ID),
		ErrorMsg: req.ErrorMsg,
		Deal:     req.Deal,
	}
	if at, ok := a.Agent.ClaimedAt(req.ID); ok {
		info.ClaimedAt = &at
	}
	if req.AgentState != nil {
		info.State = string(req.AgentState.State)
	}
	return info
}
