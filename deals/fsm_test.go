package deals

import (
	"testing"

	logging "github.com/ipfs/go-log/v2"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = logging.SetLogLevel("*", "INFO")
}

type test struct {
	t     *testing.T
	state DealState
}

func (t *test) planSingle(evt interface{}) {
	next, err := plan(t.state, evt)
	require.NoError(t.t, err)
	t.state = next
}

func TestHappyPath(t *testing.T) {
	m := test{t: t, state: StateAck}

	m.planSingle(evtNext{})
	require.Equal(m.t, StateQueuing, m.state)

	m.planSingle(evtNext{})
	require.Equal(m.t, StateQueued, m.state)

	m.planSingle(evtNext{})
	require.Equal(m.t, StateProposing, m.state)

	m.planSingle(evtDealSuccess{})
	require.Equal(m.t, StateDealSuccess, m.state)
	require.True(t, m.state.Terminal())
}

func TestFailedProposal(t *testing.T) {
	m := test{t: t, state: StateProposing}

	m.planSingle(evtDealFailed{})
	require.Equal(m.t, StateDealFailed, m.state)
	require.True(t, m.state.Terminal())
}

func TestUnexpectedEvents(t *testing.T) {
	_, err := plan(StateQueued, evtDealSuccess{})
	require.Error(t, err)

	_, err = plan(StateProposing, evtNext{})
	require.Error(t, err)

	_, err = plan(StateDealSuccess, evtNext{})
	require.Error(t, err)

	_, err = plan(DealState("sealing"), evtNext{})
	require.Error(t, err)
}

func TestEveryStateHasPlanner(t *testing.T) {
	require.Len(t, fsmPlanners, len(AllStates))
	for _, st := range AllStates {
		require.True(t, st.Valid(), st)
		_, isHandled := stageHandlers[st]
		require.False(t, st.Terminal() && isHandled, "terminal state %s has a stage handler", st)
	}
	require.False(t, DealState("").Valid())
}
