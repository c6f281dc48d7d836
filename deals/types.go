package deals

import (
	"context"
	"encoding/json"

	"github.com/filecoin-project/pickaxe-agent/lib/bus"
	"github.com/filecoin-project/pickaxe-agent/shared"
)

// DealState names a stage of a deal request.
type DealState string

const (
	StateAck         DealState = "ack"
	StateQueuing     DealState = "queuing"
	StateQueued      DealState = "queued"
	StateProposing   DealState = "proposing"
	StateDealSuccess DealState = "dealSuccess"
	StateDealFailed  DealState = "dealFailed"
)

// AllStates lists every stage in progression order.
var AllStates = []DealState{
	StateAck,
	StateQueuing,
	StateQueued,
	StateProposing,
	StateDealSuccess,
	StateDealFailed,
}

// Fields of a deal request entry in the shared collection.
const (
	FieldPayload    = "dealRequest"
	FieldAgentState = "agentState"
	FieldErrorMsg   = "errorMsg"
	FieldDeal       = "deal"
)

// Events a worker emits on a request's job bus.
const (
	JobStarted = "started"
	JobSuccess = "success"
	JobFail    = "fail"
)

// Events on the agent's bus.
const (
	evtNewState       = "newState"
	evtNewDealRequest = "newDealRequest"
)

// AgentState is the progress record the agent keeps on a request.
type AgentState struct {
	State DealState `json:"state"`
}

// DealRequest is the projected view of one entry of the shared collection.
type DealRequest struct {
	ID string

	Payload    json.RawMessage
	AgentState *AgentState
	ErrorMsg   json.RawMessage
	Deal       json.RawMessage

	// Extra holds any other field stored on the entry.
	Extra map[string]json.RawMessage
}

// Snapshot maps request ids to their projected requests.
type Snapshot map[string]DealRequest

// DealFailure is the payload of a fail event.
type DealFailure struct {
	Reason string `json:"reason"`
}

// NewDealRequest is emitted once for every request claimed by the agent.
type NewDealRequest struct {
	ID      string
	Request DealRequest
	Store   Store
}

// Store is the shared collection the agent reads requests from and records
// progress into.
type Store interface {
	Value(ctx context.Context) (shared.RawState, error)
	ApplySub(ctx context.Context, key, containerType, containerOp, field, registerType, registerOp, value string) error
	OnChange(cb func()) bus.Unsubscribe
}

//go:generate go run github.com/golang/mock/mockgen -destination=mocks/mock_worker.go -package=mocks . Worker

// Worker performs deal proposals. QueueProposeDeal returns once the job is
// accepted; the outcome is reported later on jobs as JobStarted followed by
// JobSuccess or JobFail.
type Worker interface {
	QueueProposeDeal(ctx context.Context, jobs *bus.Bus, id string, payload json.RawMessage) error
}
