package journal

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDisabledEvents lists the journal events disabled by default.
var DefaultDisabledEvents = DisabledEvents{}

// DisabledEvents is the set of event types whose journaling is suppressed.
type DisabledEvents []EventType

// ParseDisabledEvents parses a string of the form: "system1:event1,system1:event2[,...]"
// into a DisabledEvents object, returning an error if the string failed to parse.
//
// It sanitizes strings via strings.TrimSpace.
func ParseDisabledEvents(s string) (DisabledEvents, error) {
	s = strings.TrimSpace(s)
	ret := DisabledEvents{}
	if len(s) == 0 {
		return ret, nil
	}
	for _, evt := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(evt), ":")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid event type: %s", evt)
		}
		ret = append(ret, EventType{System: parts[0], Event: parts[1]})
	}
	return ret, nil
}

// EventType represents the signature of an event.
type EventType struct {
	System string
	Event  string

	// enabled stores whether this event type is enabled.
	enabled bool

	// safe is set when the EventType was obtained from an EventTypeRegistry.
	safe bool
}

func (et EventType) String() string {
	return et.System + ":" + et.Event
}

// Enabled returns whether this event type is enabled in the journaling
// subsystem. Check this before building an entry so discarded events cost
// nothing.
func (et EventType) Enabled() bool {
	return et.safe && et.enabled
}

// Journal represents an audit trail of system actions.
type Journal interface {
	EventTypeRegistry

	// RecordEvent records this event to the journal, if and only if the
	// EventType is enabled. If so, it calls the supplier function to obtain
	// the payload to record.
	RecordEvent(evtType EventType, supplier func() interface{})

	// Close closes this journal for further writing.
	Close() error
}

// Event represents a journal entry.
type Event struct {
	EventType

	Timestamp time.Time
	Data      interface{}
}
