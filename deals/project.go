package deals

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/filecoin-project/pickaxe-agent/shared"
)

// DecodeError reports a field of a request whose stored value is not valid.
type DecodeError struct {
	ID    string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding field %q of deal request %s: %s", e.Field, e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Project resolves every register in raw to its first value and decodes it.
// Requests with an undecodable field are left out of the snapshot; their
// errors are returned combined, the rest of the snapshot is still usable.
func Project(raw shared.RawState) (Snapshot, error) {
	snap := Snapshot{}
	var errs error

	for id, fields := range raw {
		req, err := projectOne(id, fields)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		snap[id] = req
	}

	return snap, errs
}

func projectOne(id string, fields map[string][]string) (DealRequest, error) {
	req := DealRequest{ID: id}

	var errs error
	for _, field := range sortedKeys(fields) {
		vals := fields[field]
		if len(vals) == 0 {
			continue
		}

		raw := json.RawMessage(vals[0])
		if !json.Valid(raw) {
			errs = multierr.Append(errs, &DecodeError{ID: id, Field: field, Err: fmt.Errorf("invalid JSON %q", vals[0])})
			continue
		}

		switch field {
		case FieldPayload:
			req.Payload = raw
		case FieldAgentState:
			var st AgentState
			if err := json.Unmarshal(raw, &st); err != nil {
				errs = multierr.Append(errs, &DecodeError{ID: id, Field: field, Err: err})
				continue
			}
			if !st.State.Valid() {
				errs = multierr.Append(errs, &DecodeError{ID: id, Field: field, Err: fmt.Errorf("unknown state %q", st.State)})
				continue
			}
			req.AgentState = &st
		case FieldErrorMsg:
			req.ErrorMsg = raw
		case FieldDeal:
			req.Deal = raw
		default:
			if req.Extra == nil {
				req.Extra = map[string]json.RawMessage{}
			}
			req.Extra[field] = raw
		}
	}

	return req, errs
}

// IDs returns the ids of the snapshot in a stable order.
func (s Snapshot) IDs() []string {
	return sortedKeys(s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
