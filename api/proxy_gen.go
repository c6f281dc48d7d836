package api

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotSupported = errors.New("method not supported")

// AgentStruct implements AgentAPI passing calls to user-provided function
// values. It is the client side of the agent RPC.
type AgentStruct struct {
	Internal struct {
		Version func(p0 context.Context) (APIVersion, error)

		DealRequestList   func(p0 context.Context) ([]DealRequestInfo, error)
		DealRequestGet    func(p0 context.Context, p1 string) (*DealRequestInfo, error)
		DealRequestSubmit func(p0 context.Context, p1 json.RawMessage) (string, error)
	}
}

type AgentStub struct {
}

func (s *AgentStruct) Version(p0 context.Context) (APIVersion, error) {
	if s.Internal.Version == nil {
		return *new(APIVersion), ErrNotSupported
	}
	return s.Internal.Version(p0)
}

func (s *AgentStub) Version(p0 context.Context) (APIVersion, error) {
	return *new(APIVersion), ErrNotSupported
}

func (s *AgentStruct) DealRequestList(p0 context.Context) ([]DealRequestInfo, error) {
	if s.Internal.DealRequestList == nil {
		return *new([]DealRequestInfo), ErrNotSupported
	}
	return s.Internal.DealRequestList(p0)
}

func (s *AgentStub) DealRequestList(p0 context.Context) ([]DealRequestInfo, error) {
	return *new([]DealRequestInfo), ErrNotSupported
}

func (s *AgentStruct) DealRequestGet(p0 context.Context, p1 string) (*DealRequestInfo, error) {
	if s.Internal.DealRequestGet == nil {
		return nil, ErrNotSupported
	}
	return s.Internal.DealRequestGet(p0, p1)
}

func (s *AgentStub) DealRequestGet(p0 context.Context, p1 string) (*DealRequestInfo, error) {
	return nil, ErrNotSupported
}

func (s *AgentStruct) DealRequestSubmit(p0 context.Context, p1 json.RawMessage) (string, error) {
	if s.Internal.DealRequestSubmit == nil {
		return "", ErrNotSupported
	}
	return s.Internal.DealRequestSubmit(p0, p1)
}

func (s *AgentStub) DealRequestSubmit(p0 context.Context, p1 json.RawMessage) (string, error) {
	return "", ErrNotSupported
}

var _ AgentAPI = new(AgentStruct)
var _ AgentAPI = new(AgentStub)
