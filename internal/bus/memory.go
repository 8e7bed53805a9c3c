package bus

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Bus fake used by pipeline tests in place of a
// real NATS cluster — grounded on the teacher's own preference for
// hand-written fakes over a sqlmock-style library where no such library
// exists for the adapter in question (see DESIGN.md §8).
type Memory struct {
	mu       sync.Mutex
	topics   map[string][]Message
	watchers map[string][]chan Message
	closed   bool
}

// NewMemory constructs an empty in-memory bus.
func NewMemory() *Memory {
	return &Memory{
		topics:   make(map[string][]Message),
		watchers: make(map[string][]chan Message),
	}
}

// Publish marshals value to JSON and stores/delivers it synchronously.
func (m *Memory) Publish(_ context.Context, topic, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msg := Message{
		Topic: topic,
		Key:   key,
		Value: payload,
		Ack:   func() error { return nil },
		Nak:   func() error { return nil },
	}
	m.topics[topic] = append(m.topics[topic], msg)
	for _, ch := range m.watchers[topic] {
		ch <- msg
	}
	return nil
}

// Subscribe returns a channel fed by subsequent Publish calls on the given
// topics. Unlike the real bus there is no consumer-group fan-out: every
// subscriber sees every message, which is sufficient for single-consumer
// pipeline tests.
func (m *Memory) Subscribe(ctx context.Context, topics []string, _ string) (<-chan Message, error) {
	ch := make(chan Message, 64)

	m.mu.Lock()
	for _, topic := range topics {
		m.watchers[topic] = append(m.watchers[topic], ch)
	}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		close(ch)
	}()

	return ch, nil
}

// Close marks the bus closed. Safe to call multiple times.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsConnected reports whether the bus has been closed.
func (m *Memory) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Published returns every message published to topic so far, for test
// assertions.
func (m *Memory) Published(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.topics[topic]))
	copy(out, m.topics[topic])
	return out
}
