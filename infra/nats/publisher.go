// Package nats publishes event log entries on NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kilianp07/emsdispatch/core/eventlog"
	"github.com/kilianp07/emsdispatch/infra/logger"
)

// Config configures the NATS connection.
type Config struct {
	URL           string        `json:"url"`
	Name          string        `json:"name"`
	SubjectPrefix string        `json:"subject_prefix"`
	Token         string        `json:"token"`
	Timeout       time.Duration `json:"timeout"`
}

// SetDefaults fills the optional fields.
func (c *Config) SetDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Name == "" {
		c.Name = "emsdispatch"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "emsdispatch"
	}
	if c.Timeout <= 0 {
		c.Timeout = nats.DefaultTimeout
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.ContainsAny(c.SubjectPrefix, " *>") {
		return fmt.Errorf("nats: subject_prefix %q must not contain spaces or wildcards", c.SubjectPrefix)
	}
	return nil
}

// Conn is the subset of *nats.Conn used by the publisher.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// Connect opens a connection with reconnect logging.
func Connect(cfg Config) (*nats.Conn, error) {
	log := logger.New("nats")
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("reconnected to %s", nc.ConnectedUrl())
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// EventPublisher is an event log sink publishing each event on
// <prefix>.events.<kind>.
type EventPublisher struct {
	nc     Conn
	prefix string
}

// NewEventPublisher wraps nc.
func NewEventPublisher(nc Conn, prefix string) *EventPublisher {
	return &EventPublisher{nc: nc, prefix: strings.TrimSuffix(prefix, ".")}
}

// Subject returns the subject of events of the given kind.
func (p *EventPublisher) Subject(kind eventlog.Kind) string {
	return p.prefix + ".events." + string(kind)
}

func (p *EventPublisher) Write(_ context.Context, ev eventlog.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.Subject(ev.Kind), payload); err != nil {
		return fmt.Errorf("publish %s: %w", p.Subject(ev.Kind), err)
	}
	return nil
}

// Flush waits until the server processed every published event.
func (p *EventPublisher) Flush(ctx context.Context) error {
	return p.nc.FlushWithContext(ctx)
}

// Close drains the connection so buffered events are delivered.
func (p *EventPublisher) Close() error {
	return p.nc.Drain()
}

var _ eventlog.Sink = (*EventPublisher)(nil)
