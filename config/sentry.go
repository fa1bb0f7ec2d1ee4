package config

import (
	"fmt"
	"os"
)

// SentryConfig defines settings for Sentry error monitoring. An empty DSN
// disables reporting.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
}

// SetDefaults takes the environment from APP_ENV when unset.
func (s *SentryConfig) SetDefaults() {
	if s.Environment == "" {
		s.Environment = os.Getenv("APP_ENV")
	}
	if s.Environment == "" {
		s.Environment = "development"
	}
}

func (s SentryConfig) Validate() error {
	if s.TracesSampleRate < 0 || s.TracesSampleRate > 1 {
		return fmt.Errorf("sentry.traces_sample_rate must be within [0,1], got %v", s.TracesSampleRate)
	}
	return nil
}
