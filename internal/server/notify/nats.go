package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is used when no NATS subject is configured.
const DefaultSubject = "blindauth.notifications"

type jetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSDispatcher publishes messages to a JetStream subject consumed by a mailer.
type NATSDispatcher struct {
	conn    *nats.Conn
	js      jetStreamPublisher
	subject string
	now     func() time.Time
}

func NewNATSDispatcher(url, subject string, opts ...nats.Option) (*NATSDispatcher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSDispatcher{conn: nc, js: js, subject: subject, now: time.Now}, nil
}

func (d *NATSDispatcher) Send(ctx context.Context, m Message) error {
	if m.SentAt.IsZero() {
		m.SentAt = d.now().UTC()
	}

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	if _, err := d.js.Publish(d.subject+"."+m.Kind, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close drains the connection.
func (d *NATSDispatcher) Close() {
	if d == nil || d.conn == nil {
		return
	}
	if err := d.conn.Drain(); err != nil {
		d.conn.Close()
	}
}
