// Package config holds the adwatch configuration, loaded with Viper from
// a TOML file, environment variables and defaults.
package config

import "time"

// Config represents the adwatch configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Push     PushConfig     `mapstructure:"push"`
	Session  SessionConfig  `mapstructure:"session"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP façade
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	AssetDir string `mapstructure:"asset_dir"` // static web client files
}

// BrowserConfig configures the headless renderer the crawl scheduler talks to
type BrowserConfig struct {
	URL            string `mapstructure:"url"`             // base URL of the renderer sidecar
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // per-call HTTP timeout
}

// CrawlConfig configures the crawl scheduler and ad housekeeping
type CrawlConfig struct {
	RefreshIntervalSeconds   int `mapstructure:"refresh_interval_seconds"`    // lease bump per pull
	AdTextExpirationSeconds  int `mapstructure:"ad_text_expiration_seconds"`  // text-hash dedup window
	MinNotifyIntervalSeconds int `mapstructure:"min_notify_interval_seconds"` // per-query notify throttle
	MaxAdHistory             int `mapstructure:"max_ad_history"`              // retained ads per query
	IdlePollSeconds          int `mapstructure:"idle_poll_seconds"`           // sleep when no query is due
}

// PushConfig configures web-push delivery
type PushConfig struct {
	VAPIDSub                    string `mapstructure:"vapid_sub"` // sub claim, e.g. mailto:ops@example.com
	MaxMessageRetries           int    `mapstructure:"max_message_retries"`
	MessageRetryIntervalSeconds int    `mapstructure:"message_retry_interval_seconds"`
	IdlePollSeconds             int    `mapstructure:"idle_poll_seconds"`
	SendsPerMinute              int    `mapstructure:"sends_per_minute"` // fan-out rate limit
}

// SessionConfig configures browser client sessions
type SessionConfig struct {
	ExpirationSeconds int `mapstructure:"expiration_seconds"` // idle clients older than this are purged
}

// RefreshInterval returns the crawl refresh interval as a Duration.
func (c CrawlConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// AdTextExpiration returns the text dedup window as a Duration.
func (c CrawlConfig) AdTextExpiration() time.Duration {
	return time.Duration(c.AdTextExpirationSeconds) * time.Second
}

// MinNotifyInterval returns the per-query notify throttle as a Duration.
func (c CrawlConfig) MinNotifyInterval() time.Duration {
	return time.Duration(c.MinNotifyIntervalSeconds) * time.Second
}

// IdlePoll returns the scheduler idle sleep as a Duration.
func (c CrawlConfig) IdlePoll() time.Duration {
	return time.Duration(c.IdlePollSeconds) * time.Second
}

// MessageRetryInterval returns the push retry lease as a Duration.
func (c PushConfig) MessageRetryInterval() time.Duration {
	return time.Duration(c.MessageRetryIntervalSeconds) * time.Second
}

// IdlePoll returns the dispatcher idle sleep as a Duration.
func (c PushConfig) IdlePoll() time.Duration {
	return time.Duration(c.IdlePollSeconds) * time.Second
}

// Expiration returns the session expiration as a Duration.
func (c SessionConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationSeconds) * time.Second
}

// Timeout returns the renderer call timeout as a Duration.
func (c BrowserConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
