// Package eventbus provides the process-wide event bus
// backed by an embedded NATS server. Every lifecycle-relevant event is
// published as a typed envelope on a subject; correlation-ID replies
// (asset resolution) ride NATS's native request/reply instead of a
// hand-rolled map of one-shot channels.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Bus is the publish/subscribe/request surface the rest of jobcore
// programs against; internal/events and internal/cluster depend only on
// this interface so tests can substitute an in-memory fake.
type Bus interface {
	Publish(subject string, payload interface{}) error
	Subscribe(subject string, handler func(subject string, payload json.RawMessage)) (Subscription, error)
	Request(ctx context.Context, subject string, payload interface{}, reply interface{}) error
	Close()
}

// Subscription can be torn down independently of the bus itself.
type Subscription interface {
	Unsubscribe() error
}

// NATSBus runs an embedded NATS server in-process and talks to it over a
// loopback client connection using nats-server/v2 embedded mode plus
// nats.go for pub/sub.
type NATSBus struct {
	srv  *server.Server
	conn *nats.Conn
}

// New starts an embedded NATS server on an OS-assigned port on the
// loopback interface (127.0.0.1) and connects a client to it.
func New() (*NATSBus, error) {
	opts := &server.Options{
		Host:           "127.0.0.1",
		Port:           server.RANDOM_PORT,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 4096,
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("eventbus: start embedded nats: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("eventbus: embedded nats did not become ready")
	}

	conn, err := nats.Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("eventbus: connect to embedded nats: %w", err)
	}

	return &NATSBus{srv: srv, conn: conn}, nil
}

// Connect attaches to an already-running NATS server at url instead of
// embedding one; used by worker processes, which join the controller's
// bus rather than hosting their own.
func Connect(url string) (*NATSBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect to %s: %w", url, err)
	}
	return &NATSBus{conn: conn}, nil
}

// Publish marshals payload to JSON and publishes it on subject.
func (b *NATSBus) Publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("eventbus: marshal publish payload for %s: %w", subject, err)
	}
	return b.conn.Publish(subject, data)
}

// Subscribe registers handler for every message on subject. handler
// receives the raw JSON payload so callers can unmarshal into their own
// event-specific type.
func (b *NATSBus) Subscribe(subject string, handler func(subject string, payload json.RawMessage)) (Subscription, error) {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("eventbus: subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// Request publishes payload on subject and awaits a single reply,
// unmarshaling it into reply. This is the correlation-ID round trip the
// design notes call for: NATS's inbox subject IS the one-shot channel,
// so no hand-rolled correlation map is needed.
func (b *NATSBus) Request(ctx context.Context, subject string, payload interface{}, reply interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("eventbus: marshal request payload for %s: %w", subject, err)
	}
	msg, err := b.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("eventbus: request %s: %w", subject, err)
	}
	if reply == nil {
		return nil
	}
	if err := json.Unmarshal(msg.Data, reply); err != nil {
		return fmt.Errorf("eventbus: unmarshal reply from %s: %w", subject, err)
	}
	return nil
}

// Close closes the client connection without draining it and shuts down
// the embedded server, if there is one.
func (b *NATSBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
	if b.srv != nil {
		b.srv.Shutdown()
	}
}
