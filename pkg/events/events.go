// Package events carries grant changes from the mutation path to live
// listeners (the panel event stream, audit hooks). Delivery is best
// effort: publishing never blocks a request.
package events

import (
	"sync"

	"github.com/objperms/objperms/pkg/rowkey"
)

// Op says which way a grant changed.
type Op string

const (
	OpGranted Op = "granted"
	OpRevoked Op = "revoked"
)

// Change describes one permission change for one subject on one object.
// A bulk edit publishes one Change per permission touched.
type Change struct {
	Op      Op         `json:"op"`
	Subject rowkey.Key `json:"subject"`
	ObjKind string     `json:"obj_kind"`
	ObjID   int64      `json:"obj_id"`
	Perm    string     `json:"perm"`
}

// subscriptionBuffer is how many undelivered changes a subscriber may
// accumulate before further publishes to it are dropped.
const subscriptionBuffer = 256

// Bus fans changes out to any number of subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]bool)}
}

// Subscription receives published changes on C until Close is called.
type Subscription struct {
	bus  *Bus
	ch   chan Change
	once sync.Once
}

// Subscribe registers a new subscriber. The caller must Close it when
// done or the bus holds the subscription forever.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{bus: b, ch: make(chan Change, subscriptionBuffer)}
	b.mu.Lock()
	b.subs[s] = true
	b.mu.Unlock()
	return s
}

// Publish delivers the change to every subscriber with buffer room.
// Subscribers that are full miss the change.
func (b *Bus) Publish(change Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- change:
		default:
		}
	}
}

func (s *Subscription) C() <-chan Change {
	return s.ch
}

// Close unregisters the subscription and closes C. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		close(s.ch)
		s.bus.mu.Unlock()
	})
}
