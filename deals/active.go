package deals

import (
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v2"
	"github.com/raulk/clock"
)

// ActiveSet records the requests owned by a driver of this agent. Claims are
// never released; a restarted agent re-evaluates requests from their stored
// agentState.
type ActiveSet struct {
	m     *xsync.MapOf[string, time.Time]
	clock clock.Clock
}

func NewActiveSet(c clock.Clock) *ActiveSet {
	return &ActiveSet{m: xsync.NewMapOf[time.Time](), clock: c}
}

// Claim marks id as owned and reports whether this call was the one to do it.
func (s *ActiveSet) Claim(id string) bool {
	_, loaded := s.m.LoadOrStore(id, s.clock.Now())
	return !loaded
}

// ClaimedAt returns when id was claimed.
func (s *ActiveSet) ClaimedAt(id string) (time.Time, bool) {
	return s.m.Load(id)
}

func (s *ActiveSet) Has(id string) bool {
	_, ok := s.m.Load(id)
	return ok
}

func (s *ActiveSet) Len() int {
	return s.m.Size()
}

// List returns the claimed ids, sorted.
func (s *ActiveSet) List() []string {
	out := make([]string, 0, s.m.Size())
	s.m.Range(func(id string, _ time.Time) bool {
		out = append(out, id)
		return true
	})
	sort.Strings(out)
	return out
}
