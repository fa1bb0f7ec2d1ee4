package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/emsdispatch/core/eventlog"
	"github.com/kilianp07/emsdispatch/core/eventlog/store"
	"github.com/kilianp07/emsdispatch/core/factory"
	"github.com/kilianp07/emsdispatch/infra/mqtt"
	infranats "github.com/kilianp07/emsdispatch/infra/nats"
	infraredis "github.com/kilianp07/emsdispatch/infra/redis"
)

const connectTimeout = 5 * time.Second

type fileConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func decodeFile(conf map[string]any) (fileConfig, error) {
	var c fileConfig
	if err := factory.Decode(conf, &c); err != nil {
		return c, err
	}
	if c.Path == "" {
		return c, fmt.Errorf("path required")
	}
	return c, nil
}

func init() {
	_ = RegisterEventSink("jsonl", func(conf map[string]any) (eventlog.Sink, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		return store.NewJSONLStore(c.Path)
	})
	_ = RegisterEventSink("rotating_jsonl", func(conf map[string]any) (eventlog.Sink, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		return store.NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	_ = RegisterEventSink("sqlite", func(conf map[string]any) (eventlog.Sink, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		return store.NewSQLiteStore(c.Path)
	})

	_ = RegisterEventSink("mqtt", func(conf map[string]any) (eventlog.Sink, error) {
		var c mqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		client, err := mqtt.NewPahoClient(c)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		return mqtt.NewStatusFeed(client, c.TopicPrefix), nil
	})
	_ = RegisterEventSink("redis", func(conf map[string]any) (eventlog.Sink, error) {
		var c infraredis.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		rdb, err := infraredis.NewClient(ctx, c)
		if err != nil {
			return nil, err
		}
		return infraredis.NewEventStream(rdb, c), nil
	})
	_ = RegisterEventSink("nats", func(conf map[string]any) (eventlog.Sink, error) {
		var c infranats.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		nc, err := infranats.Connect(c)
		if err != nil {
			return nil, err
		}
		return infranats.NewEventPublisher(nc, c.SubjectPrefix), nil
	})
}
