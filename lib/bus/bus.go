package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hannahhoward/go-pubsub"
	"golang.org/x/xerrors"
)

// Event is a named message carried by a Bus.
type Event struct {
	Name string
	Data interface{}
}

// Unsubscribe removes a handler from the bus. Calling it more than once is a
// no-op.
type Unsubscribe func()

// record is what travels through the pubsub; seq orders emits on a replay
// bus.
type record struct {
	Event
	seq uint64
}

type subscriberFn func(record)

// Bus is an in-process publish/subscribe dispatcher keyed by event name.
//
// Handlers run synchronously on the goroutine calling Emit. The underlying
// pubsub holds its subscriber list while dispatching, so handlers must not
// subscribe to the bus they are being called from.
type Bus struct {
	ps *pubsub.PubSub

	replay bool
	subs   atomic.Int64

	lk   sync.Mutex
	seq  uint64
	seen []record
}

type Option func(*Bus)

// WithReplay makes the bus remember every emitted event. Handlers and waiters
// registered after an emit still observe it.
func WithReplay() Option {
	return func(b *Bus) {
		b.replay = true
	}
}

func New(opts ...Option) *Bus {
	b := &Bus{}
	for _, o := range opts {
		o(b)
	}
	b.ps = pubsub.New(dispatch)
	return b
}

func dispatch(event pubsub.Event, subFn pubsub.SubscriberFn) error {
	rec, ok := event.(record)
	if !ok {
		return xerrors.Errorf("wrong type of event")
	}
	sub, ok := subFn.(subscriberFn)
	if !ok {
		return xerrors.Errorf("wrong type of subscriber")
	}
	sub(rec)
	return nil
}

// Emit delivers an event to every handler currently subscribed to name.
func (b *Bus) Emit(name string, data interface{}) error {
	rec := record{Event: Event{Name: name, Data: data}}
	if b.replay {
		b.lk.Lock()
		b.seq++
		rec.seq = b.seq
		b.seen = append(b.seen, rec)
		b.lk.Unlock()
	}

	if err := b.ps.Publish(rec); err != nil {
		return xerrors.Errorf("publishing %s event: %w", name, err)
	}
	return nil
}

// On calls fn for every event emitted under name until unsubscribed. On a
// replay bus fn first sees the matching past events, each exactly once.
func (b *Bus) On(name string, fn func(data interface{})) Unsubscribe {
	b.lk.Lock()
	var past []Event
	if b.replay {
		for _, rec := range b.seen {
			if rec.Name == name {
				past = append(past, rec.Event)
			}
		}
	}
	// events up to cutoff are delivered from past even if their publish
	// reaches this subscriber too
	cutoff := b.seq

	var sub subscriberFn = func(rec record) {
		if rec.Name != name || (b.replay && rec.seq <= cutoff) {
			return
		}
		fn(rec.Data)
	}
	unsub := b.ps.Subscribe(sub)
	b.subs.Add(1)
	b.lk.Unlock()

	for _, evt := range past {
		fn(evt.Data)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			b.subs.Add(-1)
		})
	}
}

// Subscribers returns the number of handlers currently registered.
func (b *Bus) Subscribers() int {
	return int(b.subs.Load())
}

// Once calls fn for the first event emitted under name and then removes
// itself from the bus.
func (b *Bus) Once(name string, fn func(data interface{})) Unsubscribe {
	b.lk.Lock()
	if evt, ok := b.firstSeen(name); ok {
		b.lk.Unlock()
		fn(evt.Data)
		return func() {}
	}
	unsub := b.subscribeOnce(name, fn)
	b.lk.Unlock()
	return unsub
}

// WaitFor blocks until one of the named events is emitted and returns it.
// When several of them are emitted only the first is returned; the rest are
// dropped. Every subscription made by WaitFor is removed before it returns.
func (b *Bus) WaitFor(ctx context.Context, names ...string) (Event, error) {
	if len(names) == 0 {
		return Event{}, xerrors.New("no events to wait for")
	}

	resolved := make(chan Event, 1)

	b.lk.Lock()
	if evt, ok := b.firstSeen(names...); ok {
		b.lk.Unlock()
		return evt, nil
	}
	unsubs := make([]Unsubscribe, 0, len(names))
	for _, name := range names {
		name := name
		unsubs = append(unsubs, b.subscribeOnce(name, func(data interface{}) {
			select {
			case resolved <- Event{Name: name, Data: data}:
			default:
			}
		}))
	}
	b.lk.Unlock()

	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	select {
	case evt := <-resolved:
		return evt, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// firstSeen returns the earliest replayed event matching any of names.
// b.lk must be held.
func (b *Bus) firstSeen(names ...string) (Event, bool) {
	if !b.replay {
		return Event{}, false
	}
	for _, rec := range b.seen {
		for _, name := range names {
			if rec.Name == name {
				return rec.Event, true
			}
		}
	}
	return Event{}, false
}

// subscribeOnce registers a self-removing handler. b.lk must be held.
func (b *Bus) subscribeOnce(name string, fn func(data interface{})) Unsubscribe {
	o := &onceSub{ready: make(chan struct{}), subs: &b.subs}

	var sub subscriberFn = func(rec record) {
		if rec.Name != name || !o.fired.CompareAndSwap(false, true) {
			return
		}
		fn(rec.Data)
		// the publisher still holds the subscriber list here
		go o.release()
	}

	o.unsub = b.ps.Subscribe(sub)
	b.subs.Add(1)
	close(o.ready)

	return o.release
}

type onceSub struct {
	fired atomic.Bool

	ready chan struct{}
	unsub pubsub.Unsubscribe
	done  sync.Once
	subs  *atomic.Int64
}

func (o *onceSub) release() {
	<-o.ready
	o.done.Do(func() {
		o.unsub()
		o.subs.Add(-1)
	})
}
