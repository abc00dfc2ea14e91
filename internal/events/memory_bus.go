package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const memoryBufferSize = 32

// MemoryBus is an in-process Bus for single node deployments and tests.
// Slow subscribers lose messages rather than block publishers.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*memorySubscription
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[string]*memorySubscription)}
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, sub := range b.subs[channel] {
		msg := Message{Channel: channel, Payload: append([]byte(nil), payload...)}
		select {
		case sub.out <- msg:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	sub := &memorySubscription{
		id:       uuid.NewString(),
		bus:      b,
		channels: channels,
		out:      make(chan Message, memoryBufferSize),
	}
	for _, ch := range channels {
		if b.subs[ch] == nil {
			b.subs[ch] = make(map[string]*memorySubscription)
		}
		b.subs[ch][sub.id] = sub
	}
	return sub, nil
}

// SubscriberCount returns the number of live subscriptions on channel.
func (b *MemoryBus) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

// Close drops every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ch, subs := range b.subs {
		for _, sub := range subs {
			sub.once.Do(func() { close(sub.out) })
		}
		delete(b.subs, ch)
	}
	return nil
}

type memorySubscription struct {
	id       string
	bus      *MemoryBus
	channels []string
	out      chan Message
	once     sync.Once
}

func (s *memorySubscription) Messages() <-chan Message {
	return s.out
}

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	for _, ch := range s.channels {
		delete(s.bus.subs[ch], s.id)
		if len(s.bus.subs[ch]) == 0 {
			delete(s.bus.subs, ch)
		}
	}
	s.once.Do(func() { close(s.out) })
	return nil
}
