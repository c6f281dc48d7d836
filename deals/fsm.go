package deals

import (
	"encoding/json"
	"reflect"

	"golang.org/x/xerrors"
)

type evtNext struct{}

type evtDealSuccess struct {
	Deal json.RawMessage
}

type evtDealFailed struct {
	Err json.RawMessage
}

type planner func(evt interface{}) (DealState, error)

var fsmPlanners = map[DealState]planner{
	StateAck:       planOne(on(evtNext{}, StateQueuing)),
	StateQueuing:   planOne(on(evtNext{}, StateQueued)),
	StateQueued:    planOne(on(evtNext{}, StateProposing)),
	StateProposing: planOne(
		on(evtDealSuccess{}, StateDealSuccess),
		on(evtDealFailed{}, StateDealFailed),
	),

	StateDealSuccess: final,
	StateDealFailed:  final,
}

// Terminal reports whether the state has no outgoing transitions.
func (s DealState) Terminal() bool {
	switch s {
	case StateDealSuccess, StateDealFailed:
		return true
	}
	return false
}

func (s DealState) Valid() bool {
	_, ok := fsmPlanners[s]
	return ok
}

// plan computes the state following cur when evt happens.
func plan(cur DealState, evt interface{}) (DealState, error) {
	p, ok := fsmPlanners[cur]
	if !ok {
		return "", xerrors.Errorf("planner for state %q not found", cur)
	}

	next, err := p(evt)
	if err != nil {
		return "", xerrors.Errorf("running planner for state %s failed: %w", cur, err)
	}
	return next, nil
}

func final(evt interface{}) (DealState, error) {
	return "", xerrors.Errorf("didn't expect any events in a final state, got %T", evt)
}

func on(mut interface{}, next DealState) func() (interface{}, DealState) {
	return func() (interface{}, DealState) {
		return mut, next
	}
}

func planOne(ts ...func() (mut interface{}, next DealState)) planner {
	return func(evt interface{}) (DealState, error) {
		for _, t := range ts {
			mut, next := t()

			if reflect.TypeOf(evt) != reflect.TypeOf(mut) {
				continue
			}

			return next, nil
		}

		return "", xerrors.Errorf("planner: unexpected event %T", evt)
	}
}
