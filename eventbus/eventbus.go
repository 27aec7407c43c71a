// SPDX-License-Identifier: GPL-3.0-or-later
package eventbus

import (
	"sync"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"
	"github.com/CrawX/go-imap-sentinel/log"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBacklog          = 64
	DefaultSubscriberBuffer = 32
)

// Sink receives every published event after it has been fanned out to subscribers.
type Sink interface {
	Forward(event domain.Event) error
}

// Bus fans events out per user. Each user has its own topic with its own lock, so subscribing for
// one user never blocks publishing for another. Sequences live in memory and restart at 1 with
// the process.
type Bus struct {
	topics sync.Map

	backlogSize int
	bufferSize  int
	sinks       []Sink
	now         func() time.Time

	l *logrus.Logger
}

type topic struct {
	mu          sync.Mutex
	sequence    uint64
	backlog     []domain.Event
	subscribers map[string]*Subscription
}

// Subscription delivers the events of one user in sequence order. The channel is closed on
// Close or when the subscriber fell behind by more than its buffer, see Lagged.
type Subscription struct {
	Id     string
	UserId string

	events chan domain.Event
	topic  *topic
	closed bool
	lagged bool

	bus *Bus
}

type ConfigFunc func(b *Bus)

func WithBacklog(size int) ConfigFunc {
	return func(b *Bus) {
		b.backlogSize = size
	}
}

func WithSubscriberBuffer(size int) ConfigFunc {
	return func(b *Bus) {
		b.bufferSize = size
	}
}

func WithSink(sink Sink) ConfigFunc {
	return func(b *Bus) {
		b.sinks = append(b.sinks, sink)
	}
}

func WithClock(now func() time.Time) ConfigFunc {
	return func(b *Bus) {
		b.now = now
	}
}

func NewBus(configFuncs ...ConfigFunc) *Bus {
	b := &Bus{
		backlogSize: DefaultBacklog,
		bufferSize:  DefaultSubscriberBuffer,
		now:         time.Now,
		l:           log.Logger(log.LOG_EVENTS),
	}
	for _, configFunc := range configFuncs {
		configFunc(b)
	}
	if b.bufferSize < 1 {
		b.bufferSize = 1
	}
	return b
}

func (b *Bus) topic(userId string) *topic {
	t, _ := b.topics.LoadOrStore(userId, &topic{subscribers: map[string]*Subscription{}})
	return t.(*topic)
}

// Publish implements domain.Publisher. Publishing never blocks on subscribers.
func (b *Bus) Publish(userId string, eventType domain.EventType, payload domain.EventPayload) domain.Event {
	t := b.topic(userId)

	t.mu.Lock()
	t.sequence++
	event := domain.Event{
		UserId:    userId,
		Type:      eventType,
		Payload:   payload,
		Sequence:  t.sequence,
		EmittedAt: b.now().UTC(),
	}

	if b.backlogSize > 0 {
		t.backlog = append(t.backlog, event)
		if len(t.backlog) > b.backlogSize {
			t.backlog = t.backlog[len(t.backlog)-b.backlogSize:]
		}
	}

	for id, sub := range t.subscribers {
		select {
		case sub.events <- event:
		default:
			sub.lagged = true
			sub.closed = true
			close(sub.events)
			delete(t.subscribers, id)
			b.l.WithFields(logrus.Fields{"user": userId, "subscription": id, "sequence": event.Sequence}).Warn("Subscriber fell behind, closing it")
		}
	}
	t.mu.Unlock()

	b.l.WithFields(logrus.Fields{"user": userId, "type": eventType, "sequence": event.Sequence}).Debug("Published event")

	// sinks see a user's events in order as long as only the lease holder publishes for the user
	for _, sink := range b.sinks {
		err := sink.Forward(event)
		if err != nil {
			b.l.WithError(err).WithFields(logrus.Fields{"user": userId, "sequence": event.Sequence}).Warn("Could not forward event")
		}
	}

	return event
}

// Subscribe registers a subscriber for the user. Backlog events with a sequence above
// afterSequence are replayed first; 0 subscribes to new events only.
func (b *Bus) Subscribe(userId string, afterSequence uint64) *Subscription {
	t := b.topic(userId)

	t.mu.Lock()
	defer t.mu.Unlock()

	replay := []domain.Event{}
	if afterSequence > 0 {
		for _, event := range t.backlog {
			if event.Sequence > afterSequence {
				replay = append(replay, event)
			}
		}
	}

	sub := &Subscription{
		Id:     uuid.NewString(),
		UserId: userId,
		events: make(chan domain.Event, b.bufferSize+len(replay)),
		topic:  t,
		bus:    b,
	}
	for _, event := range replay {
		sub.events <- event
	}
	t.subscribers[sub.Id] = sub

	b.l.WithFields(logrus.Fields{"user": userId, "subscription": sub.Id, "replayed": len(replay)}).Debug("Subscribed")
	return sub
}

// Forget drops the user's topic with its backlog and closes its subscriptions. A later publish
// for the user starts a new topic at sequence 1.
func (b *Bus) Forget(userId string) {
	value, ok := b.topics.LoadAndDelete(userId)
	if !ok {
		return
	}
	t := value.(*topic)

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, sub := range t.subscribers {
		sub.closed = true
		close(sub.events)
		delete(t.subscribers, id)
	}
	t.backlog = nil

	b.l.WithField("user", userId).Debug("Forgot topic")
}

// LastSequence returns the sequence of the newest event published for the user.
func (b *Bus) LastSequence(userId string) uint64 {
	value, ok := b.topics.Load(userId)
	if !ok {
		return 0
	}
	t := value.(*topic)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sequence
}

// Subscribers returns the number of live subscriptions of the user.
func (b *Bus) Subscribers(userId string) int {
	value, ok := b.topics.Load(userId)
	if !ok {
		return 0
	}
	t := value.(*topic)
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}

func (s *Subscription) Events() <-chan domain.Event {
	return s.events
}

// Lagged reports whether the bus dropped the subscription because its buffer overflowed.
func (s *Subscription) Lagged() bool {
	s.topic.mu.Lock()
	defer s.topic.mu.Unlock()
	return s.lagged
}

// Close unsubscribes. It is safe to call several times and after the bus dropped the subscription.
func (s *Subscription) Close() {
	s.topic.mu.Lock()
	defer s.topic.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
	delete(s.topic.subscribers, s.Id)

	s.bus.l.WithFields(logrus.Fields{"user": s.UserId, "subscription": s.Id}).Debug("Unsubscribed")
}
