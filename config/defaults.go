package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "adwatch.db")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.asset_dir", "web")

	// Headless renderer defaults
	v.SetDefault("browser.url", "http://127.0.0.1:8793")
	v.SetDefault("browser.timeout_seconds", 120) // renders are slow

	// Crawl scheduler defaults
	v.SetDefault("crawl.refresh_interval_seconds", 60*60)           // one pull per query per hour
	v.SetDefault("crawl.ad_text_expiration_seconds", 60*60*24*5)    // 5 days
	v.SetDefault("crawl.min_notify_interval_seconds", 60*5)         // 5 minutes
	v.SetDefault("crawl.max_ad_history", 50)
	v.SetDefault("crawl.idle_poll_seconds", 10)

	// Push dispatcher defaults
	v.SetDefault("push.vapid_sub", "mailto:admin@localhost")
	v.SetDefault("push.max_message_retries", 3)
	v.SetDefault("push.message_retry_interval_seconds", 60*30) // 30 minutes
	v.SetDefault("push.idle_poll_seconds", 10)
	v.SetDefault("push.sends_per_minute", 60)

	// Session defaults
	v.SetDefault("session.expiration_seconds", 60*60*24*120) // 120 days
}

// BindEnvVars explicitly binds configuration to environment variables
func BindEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "ADWATCH_DATABASE_PATH")
	v.BindEnv("server.host", "ADWATCH_SERVER_HOST")
	v.BindEnv("server.port", "ADWATCH_SERVER_PORT")
	v.BindEnv("browser.url", "ADWATCH_BROWSER_URL")
	v.BindEnv("push.vapid_sub", "ADWATCH_PUSH_VAPID_SUB")
}
