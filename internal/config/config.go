// Package config loads process configuration from a YAML file,
// environment variables, and defaults.
package config

import (
	"fmt"
	"time"
)

// Defaults.
const (
	DefaultPort          = 8000
	DefaultHTTPTimeoutS  = 30
	DefaultMetricDelayMS = 0
	DefaultToolTimeoutS  = 90
	DefaultWorkerBinary  = "equityscope"
)

// Config is the process-wide configuration surface.
type Config struct {
	// Port is the task endpoint listen port.
	Port int `mapstructure:"port"`

	// UseHTTPFinancials routes the fundamentals basket through the HTTP
	// worker transport instead of the child-process transport.
	UseHTTPFinancials bool `mapstructure:"use_http_financials"`

	// FinancialsHTTPURL is the load-balancer URL of the fundamentals
	// HTTP worker.
	FinancialsHTTPURL string `mapstructure:"financials_http_url"`

	// HTTPTimeoutSeconds is the per-call timeout for the HTTP transport.
	HTTPTimeoutSeconds int `mapstructure:"http_timeout"`

	// MetricDelayMS paces emitted metric events. Zero emits as fast as
	// results arrive.
	MetricDelayMS int `mapstructure:"metric_delay_ms"`

	// ToolTimeoutSeconds is the per-tool deadline on the worker transport.
	ToolTimeoutSeconds int `mapstructure:"tool_timeout"`

	// WorkerBinary is the executable spawned for child-process workers.
	WorkerBinary string `mapstructure:"worker_binary"`

	Keys Keys `mapstructure:"keys"`

	Log Log `mapstructure:"log"`
}

// Keys holds per-upstream API credentials. Empty keys disable the
// corresponding provider; its basket advances to the next in the chain.
type Keys struct {
	FRED         string `mapstructure:"fred"`
	AlphaVantage string `mapstructure:"alpha_vantage"`
	Finnhub      string `mapstructure:"finnhub"`
	Tavily       string `mapstructure:"tavily"`
	NYT          string `mapstructure:"nyt"`

	// SECUserAgent identifies this client to the filings API, which
	// requires a contact string in the User-Agent header.
	SECUserAgent string `mapstructure:"sec_user_agent"`
}

// Log holds logging settings.
type Log struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// HTTPTimeout returns the HTTP transport timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// ToolTimeout returns the per-tool deadline as a duration.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}

// MetricDelay returns the inter-event pacing delay as a duration.
func (c *Config) MetricDelay() time.Duration {
	return time.Duration(c.MetricDelayMS) * time.Millisecond
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}

	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("http_timeout must be positive: %d", c.HTTPTimeoutSeconds)
	}

	if c.ToolTimeoutSeconds <= 0 {
		return fmt.Errorf("tool_timeout must be positive: %d", c.ToolTimeoutSeconds)
	}

	if c.UseHTTPFinancials && c.FinancialsHTTPURL == "" {
		return fmt.Errorf("use_http_financials requires financials_http_url")
	}

	return nil
}
