package livesync

import (
	"context"
	"errors"
	"sync"

	"talk-n-share/internal/models"

	"github.com/sirupsen/logrus"
)

// ErrSubscriptionLost closes a subscription that may have missed events.
// The owner should re-read the record from the store and subscribe again.
var ErrSubscriptionLost = errors.New("live sync subscription lost")

type EventType string

const (
	EventSession       EventType = "session"
	EventMessage       EventType = "message"
	EventTyping        EventType = "typing"
	EventMatchFound    EventType = "match_found"
	EventDirectSession EventType = "direct_session"
)

// Event is what travels on a topic. Session is the full authoritative record;
// message events carry it too so receivers know whether to mask the sender.
type Event struct {
	Type    EventType            `json:"type"`
	Topic   string               `json:"topic"`
	Session *models.MatchSession `json:"session,omitempty"`
	Message *models.Message      `json:"message,omitempty"`
	ActorID string               `json:"actor_id,omitempty"`
	Typing  bool                 `json:"typing,omitempty"`
}

func SessionTopic(id string) string { return "session:" + id }

func UserTopic(id string) string { return "user:" + id }

// Broker fans events out to the subscriptions of this process.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
	log    *logrus.Logger
}

func NewBroker(buffer int, log *logrus.Logger) *Broker {
	if buffer < 1 {
		buffer = 16
	}
	return &Broker{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

func (b *Broker) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic:  topic,
		ch:     make(chan Event, b.buffer),
		broker: b,
	}

	b.mu.Lock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish satisfies the publisher contract for single-instance deployments.
func (b *Broker) Publish(_ context.Context, ev Event) error {
	b.Deliver(ev)
	return nil
}

// Deliver hands ev to every subscription of its topic without blocking.
// A subscription whose buffer is full is dropped with ErrSubscriptionLost.
func (b *Broker) Deliver(ev Event) {
	var slow []*Subscription

	b.mu.RLock()
	for sub := range b.topics[ev.Topic] {
		select {
		case sub.ch <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		b.log.WithField("topic", sub.topic).Warn("dropping slow live sync subscriber")
		b.remove(sub, ErrSubscriptionLost)
	}
}

// Invalidate drops every subscription. Used after the upstream feed
// reconnects, since events may have been missed in between.
func (b *Broker) Invalidate() {
	b.mu.RLock()
	var all []*Subscription
	for _, subs := range b.topics {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range all {
		b.remove(sub, ErrSubscriptionLost)
	}
}

// Subscribers reports how many subscriptions a topic has.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Broker) remove(sub *Subscription, reason error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, sub.topic)
	}

	sub.errMu.Lock()
	sub.err = reason
	sub.errMu.Unlock()
	close(sub.ch)
}

// Subscription is a stream of events for one topic. Events is closed when the
// subscription ends; Err then tells whether it was lost or closed.
type Subscription struct {
	topic  string
	ch     chan Event
	broker *Broker

	errMu sync.Mutex
	err   error
}

func (s *Subscription) Topic() string { return s.topic }

func (s *Subscription) Events() <-chan Event { return s.ch }

// Err is nil while the subscription is open or after a clean Close.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Subscription) Close() {
	s.broker.remove(s, nil)
}
