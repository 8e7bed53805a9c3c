// Package bus implements the message-bus adapter every pipeline stage
// publishes to and consumes from. It is backed by NATS JetStream, selected
// as the grounded substitute transport for the KAFKA_BOOTSTRAP_SERVERS
// configuration surface (see DESIGN.md Open Question 1): no Kafka client
// exists anywhere in the retrieval pack this project was built from, so
// JetStream's durable streams and consumer groups stand in for Kafka's
// topics and consumer groups behind the same env var name.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"newsstream/internal/resilience/circuitbreaker"
	"newsstream/internal/resilience/retry"
)

// Message is a single delivery handed to a subscriber. Ack must be called
// once the subscriber's side effect has committed; Nak requeues for
// redelivery.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Ack     func() error
	Nak     func() error
	Subject string
}

// Bus is the adapter contract every pipeline stage depends on: a topic to
// publish JSON-encoded values to, keyed for per-key ordering, and a
// subscription that fans deliveries into a channel grouped by a durable
// consumer name.
type Bus interface {
	Publish(ctx context.Context, topic, key string, value any) error
	Subscribe(ctx context.Context, topics []string, group string) (<-chan Message, error)
	Close() error
}

// Config configures the JetStream-backed bus.
type Config struct {
	// Servers is the comma-separated bus endpoint list, read from the
	// KAFKA_BOOTSTRAP_SERVERS env var per spec §6 and repurposed here as
	// a NATS server list (first reachable wins, matching nats.Connect's
	// own multi-URL dial behavior).
	Servers string

	// ConsumerGroupPrefix namespaces durable consumer names so multiple
	// deployments sharing one NATS cluster do not collide.
	ConsumerGroupPrefix string
}

type jetstreamBus struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	breaker *circuitbreaker.CircuitBreaker
	prefix  string
}

// New dials the configured NATS servers and returns a JetStream-backed Bus.
func New(cfg Config) (Bus, error) {
	servers := strings.ReplaceAll(cfg.Servers, ",", ",")
	if servers == "" {
		servers = nats.DefaultURL
	}

	conn, err := nats.Connect(servers,
		nats.Name("newsstream"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to bus: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open jetstream context: %w", err)
	}

	return &jetstreamBus{
		conn:    conn,
		js:      js,
		breaker: circuitbreaker.New(circuitbreaker.BusConfig()),
		prefix:  cfg.ConsumerGroupPrefix,
	}, nil
}

// ensureStream creates the durable stream backing a topic if it does not
// already exist. Idempotent — mirrors the teacher's lazy check-then-create
// repository idiom, retargeted at JetStream streams instead of SQL tables.
func (b *jetstreamBus) ensureStream(topic string) error {
	_, err := b.js.StreamInfo(topic)
	if err == nil {
		return nil
	}
	_, err = b.js.AddStream(&nats.StreamConfig{
		Name:     topic,
		Subjects: []string{topic + ".>"},
		Storage:  nats.FileStorage,
	})
	if err != nil && !strings.Contains(err.Error(), "already") {
		return fmt.Errorf("ensure stream %s: %w", topic, err)
	}
	return nil
}

// Publish encodes value as JSON and publishes it under topic, subject-keyed
// on key so JetStream's per-subject ordering guarantee keeps all messages
// for a given key in order within the same consumer-queue member.
func (b *jetstreamBus) Publish(ctx context.Context, topic, key string, value any) error {
	if err := b.ensureStream(topic); err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	subject := topic
	if key != "" {
		subject = topic + "." + key
	} else {
		subject = topic + ".unkeyed"
	}

	return retry.WithBackoff(ctx, retry.BusPublishConfig(), func() error {
		_, err := b.breaker.Execute(func() (interface{}, error) {
			_, pubErr := b.js.Publish(subject, payload, nats.Context(ctx))
			return nil, pubErr
		})
		return err
	})
}

// Subscribe creates (or reuses) a durable, queue-grouped consumer per topic
// and fans deliveries into a single channel. DeliverAll is used so a brand
// new durable consumer starts from the earliest retained message, matching
// spec §6's earliest-offset-for-new-consumers requirement.
func (b *jetstreamBus) Subscribe(ctx context.Context, topics []string, group string) (<-chan Message, error) {
	out := make(chan Message, 64)
	durable := group
	if b.prefix != "" {
		durable = b.prefix + "-" + group
	}

	var subs []*nats.Subscription
	for _, topic := range topics {
		if err := b.ensureStream(topic); err != nil {
			closeAll(subs)
			return nil, err
		}

		topic := topic
		sub, err := b.js.QueueSubscribe(topic+".>", durable, func(msg *nats.Msg) {
			select {
			case out <- Message{
				Topic:   topic,
				Key:     strings.TrimPrefix(msg.Subject, topic+"."),
				Value:   msg.Data,
				Subject: msg.Subject,
				Ack:     msg.Ack,
				Nak:     func() error { return msg.Nak() },
			}:
			case <-ctx.Done():
			}
		},
			nats.Durable(durable),
			nats.DeliverAll(),
			nats.ManualAck(),
			nats.AckWait(1*time.Second),
		)
		if err != nil {
			closeAll(subs)
			return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		subs = append(subs, sub)
	}

	go func() {
		<-ctx.Done()
		closeAll(subs)
		close(out)
	}()

	return out, nil
}

func closeAll(subs []*nats.Subscription) {
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("bus unsubscribe failed", slog.Any("error", err))
		}
	}
}

// Close drains and closes the underlying NATS connection.
func (b *jetstreamBus) Close() error {
	b.conn.Close()
	return nil
}

// IsConnected reports the underlying NATS connection state, for the Query
// API's health endpoint.
func (b *jetstreamBus) IsConnected() bool {
	return b.conn.IsConnected()
}
