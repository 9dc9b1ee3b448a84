package bus

import (
	"context"
	"sync"
)

// Message is one recorded publish.
type Message struct {
	Topic string
	Raw   []byte
}

// Loopback is an in-memory Bus for tests: it records every publish,
// tracks the subscription set, and delivers injected messages straight
// into the registered handler.
type Loopback struct {
	mu        sync.Mutex
	handler   Handler
	onConnect func()
	subs      map[string]bool
	published []Message
}

func NewLoopback() *Loopback {
	return &Loopback{subs: map[string]bool{}}
}

func (b *Loopback) OnMessage(h Handler) {
	b.handler = h
}

func (b *Loopback) OnConnect(fn func()) {
	b.onConnect = fn
}

func (b *Loopback) Connect(context.Context) error {
	if b.onConnect != nil {
		b.onConnect()
	}
	return nil
}

func (b *Loopback) Publish(topic string, raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, Message{Topic: topic, Raw: append([]byte(nil), raw...)})
	return nil
}

func (b *Loopback) Subscribe(topicList ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topicList {
		b.subs[t] = true
	}
	return nil
}

func (b *Loopback) Unsubscribe(topicList ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topicList {
		delete(b.subs, t)
	}
	return nil
}

func (b *Loopback) Close() {}

// Inject delivers an inbound message synchronously, the way the bus
// worker would.
func (b *Loopback) Inject(topic string, raw []byte) {
	if b.handler != nil {
		b.handler(topic, raw)
	}
}

// Published returns every recorded publish, oldest first.
func (b *Loopback) Published() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.published...)
}

// PublishedTo returns the publishes on one topic, oldest first.
func (b *Loopback) PublishedTo(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, m := range b.published {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Subscribed reports whether the topic is in the subscription set.
func (b *Loopback) Subscribed(topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs[topic]
}

// Reset clears the recorded publishes.
func (b *Loopback) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
}
