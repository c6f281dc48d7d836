package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/filecoin-project/pickaxe-agent/build"
)

// AgentAPI is the API of a running pickaxe agent.
type AgentAPI interface {
	// Version returns the agent and API versions.
	Version(context.Context) (APIVersion, error)

	// DealRequestList returns every deal request in the collection, sorted
	// by id. Requests whose fields fail to decode are left out.
	DealRequestList(ctx context.Context) ([]DealRequestInfo, error)

	// DealRequestGet returns a single deal request, or ErrDealRequestNotFound.
	DealRequestGet(ctx context.Context, id string) (*DealRequestInfo, error)

	// DealRequestSubmit adds a new deal request with the given payload and
	// returns its id. The agent picks it up like any other request.
	DealRequestSubmit(ctx context.Context, payload json.RawMessage) (string, error)
}

// APIVersion provides various build-time information
type APIVersion struct {
	Version string

	// APIVersion is a binary encoded semver version of the remote implementing
	// this api
	//
	// See APIVersion in build/version.go
	APIVersion build.Version
}

func (v APIVersion) String() string {
	return "pickaxe-agent " + v.Version + "+api" + v.APIVersion.String()
}

// DealRequestInfo is the state of a deal request as seen by the agent.
type DealRequestInfo struct {
	ID      string
	Payload json.RawMessage

	// State is empty until the request is claimed by an agent.
	State string
	// Active is set when this agent runs the request.
	Active    bool
	ClaimedAt *time.Time `json:",omitempty"`

	ErrorMsg json.RawMessage `json:",omitempty"`
	Deal     json.RawMessage `json:",omitempty"`
}
