package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/emsdispatch/config"
	coremon "github.com/kilianp07/emsdispatch/core/monitoring"
)

// NewSentryMonitor initializes Sentry using the provided configuration. An
// empty DSN disables reporting.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		ServerName:       "emsdispatch",
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{}, nil
}

type sentryMonitor struct{}

func withTags(tags map[string]string, f func()) {
	if len(tags) == 0 {
		f()
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		f()
	})
}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	withTags(tags, func() { sentry.CaptureException(err) })
}

func (s *sentryMonitor) CapturePanic(v any, tags map[string]string) {
	withTags(tags, func() { sentry.CurrentHub().Recover(v) })
}

func (s *sentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }
