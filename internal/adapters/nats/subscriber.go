package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using a durable JetStream consumer.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber connects to NATS. durable names the consumer so restarts
// resume where they left off.
func NewSubscriber(url, durable string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

func (s *Subscriber) SubscribeObservationsUpdated(ctx context.Context, handler func(ctx context.Context, event *domain.ObservationsUpdated) error) error {
	sub, err := s.js.Subscribe(UpdatedSubjectAll, func(msg *nats.Msg) {
		event, err := DecodeObservationsUpdated(msg.Data)
		if err != nil {
			// Malformed payloads will never decode; drop them.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(s.durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// DecodeObservationsUpdated parses an event payload.
func DecodeObservationsUpdated(data []byte) (*domain.ObservationsUpdated, error) {
	var event domain.ObservationsUpdated
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode observations.updated: %w", err)
	}
	if event.UserID == "" {
		return nil, fmt.Errorf("decode observations.updated: missing user_id")
	}
	return &event, nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
