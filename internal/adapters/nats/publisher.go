package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

const (
	// StreamName is the JetStream stream carrying observation events.
	StreamName = "OBSERVATIONS"
	// UpdatedSubjectPrefix prefixes the per-user update subject.
	UpdatedSubjectPrefix = "observations.updated."
	// UpdatedSubjectAll matches the update subject of every user.
	UpdatedSubjectAll = UpdatedSubjectPrefix + ">"
)

// UpdatedSubject returns the subject for a user's update events. Tokens
// that would break the subject hierarchy are replaced.
func UpdatedSubject(userID string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return UpdatedSubjectPrefix + r.Replace(userID)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the observation stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"observations.>"},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist; update it
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishObservationsUpdated announces that a user's observations changed.
func (p *Publisher) PublishObservationsUpdated(ctx context.Context, event *domain.ObservationsUpdated) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(UpdatedSubject(event.UserID), data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection (e.g. for the WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
