package config

import (
	"fmt"
	"net"
)

// APIConfig enables the read-only HTTP API when Addr is set.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token, when set, is required as "Authorization: Bearer <token>".
	Token       string   `json:"token"`
	CORSOrigins []string `json:"cors_origins"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
}

// Validate checks the listen address.
func (c APIConfig) Validate() error {
	if c.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("api.addr: %w", err)
	}
	return nil
}

// Enabled reports whether the API should be served.
func (c APIConfig) Enabled() bool { return c.Addr != "" }
