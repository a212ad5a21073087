package egress

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNotConnected is returned when publishing without a live connection.
var ErrNotConnected = errors.New("not connected to NATS")

// Publisher ships frame records to an external consumer.
type Publisher interface {
	Publish(subject string, data []byte) error
	Close()
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(string, []byte) error { return nil }

func (NopPublisher) Close() {}

// PublisherOption is a functional option for configuring the NATS publisher.
type PublisherOption func(*NATSPublisher) error

// WithName sets the client name presented to the server.
func WithName(name string) PublisherOption {
	return func(p *NATSPublisher) error {
		if name == "" {
			return fmt.Errorf("client name cannot be empty")
		}
		p.name = name
		return nil
	}
}

// WithReconnectWait sets the delay between reconnection attempts.
func WithReconnectWait(d time.Duration) PublisherOption {
	return func(p *NATSPublisher) error {
		if d <= 0 {
			return fmt.Errorf("reconnect wait must be positive")
		}
		p.reconnectWait = d
		return nil
	}
}

// WithMaxReconnects sets the reconnection attempt limit. Negative means
// retry forever.
func WithMaxReconnects(n int) PublisherOption {
	return func(p *NATSPublisher) error {
		p.maxReconnects = n
		return nil
	}
}

// NATSPublisher publishes records over a NATS connection.
type NATSPublisher struct {
	url  string
	name string

	reconnectWait time.Duration
	maxReconnects int

	conn *nats.Conn
}

// NewNATSPublisher connects to the given NATS URL.
func NewNATSPublisher(url string, opts ...PublisherOption) (*NATSPublisher, error) {
	p := &NATSPublisher{
		url:           url,
		name:          "framering",
		reconnectWait: 2 * time.Second,
		maxReconnects: -1,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	conn, err := nats.Connect(url,
		nats.Name(p.name),
		nats.ReconnectWait(p.reconnectWait),
		nats.MaxReconnects(p.maxReconnects),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	p.conn = conn
	return p, nil
}

// Publish sends one record.
func (p *NATSPublisher) Publish(subject string, data []byte) error {
	if p == nil || p.conn == nil {
		return ErrNotConnected
	}
	return p.conn.Publish(subject, data)
}

// Close drains the connection so buffered records flush before shutdown.
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
