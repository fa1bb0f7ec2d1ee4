// Package redis mirrors the event log into Redis: every event is appended to
// a list and published on a channel for live dashboards.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/emsdispatch/core/eventlog"
)

// Config configures the Redis event stream.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	ListKey  string `json:"list_key"`
	Channel  string `json:"channel"`
	// MaxLen caps the list length; zero keeps everything.
	MaxLen int64 `json:"max_len"`
}

// SetDefaults fills the optional fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.ListKey == "" {
		c.ListKey = "emsdispatch:events"
	}
	if c.Channel == "" {
		c.Channel = "emsdispatch:events"
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DB < 0 {
		return fmt.Errorf("redis: db must be >= 0")
	}
	if c.MaxLen < 0 {
		return fmt.Errorf("redis: max_len must be >= 0")
	}
	return nil
}

// Commander is the subset of *redis.Client used by the stream.
type Commander interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// NewClient creates a client and checks the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 10,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// EventStream is an event log sink writing to Redis.
type EventStream struct {
	rdb     Commander
	listKey string
	channel string
	maxLen  int64
}

// NewEventStream wraps rdb. cfg must have its defaults set.
func NewEventStream(rdb Commander, cfg Config) *EventStream {
	return &EventStream{rdb: rdb, listKey: cfg.ListKey, channel: cfg.Channel, maxLen: cfg.MaxLen}
}

// Write appends ev to the list, trims it and publishes ev on the channel.
func (s *EventStream) Write(ctx context.Context, ev eventlog.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.listKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to append event to Redis: %w", err)
	}
	if s.maxLen > 0 {
		if err := s.rdb.LTrim(ctx, s.listKey, -s.maxLen, -1).Err(); err != nil {
			return fmt.Errorf("failed to trim event list: %w", err)
		}
	}
	if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Recent returns the last n events stored in the list, oldest first.
func (s *EventStream) Recent(ctx context.Context, n int64) ([]eventlog.Event, error) {
	if n <= 0 {
		return []eventlog.Event{}, nil
	}
	raw, err := s.rdb.LRange(ctx, s.listKey, -n, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]eventlog.Event, 0, len(raw))
	for _, r := range raw {
		var ev eventlog.Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Close closes the client.
func (s *EventStream) Close() error { return s.rdb.Close() }

var _ eventlog.Sink = (*EventStream)(nil)
