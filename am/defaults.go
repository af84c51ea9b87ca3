package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "realtechee.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.admin_base_url", "http://localhost:3001")

	// Data API defaults
	v.SetDefault("data_api.timeout_seconds", 30)

	// Notification defaults
	v.SetDefault("notify.debug", true) // Safety: sandbox until explicitly disabled
	v.SetDefault("notify.sandbox_email", "info@realtechee.com")
	v.SetDefault("notify.email.base_url", "https://api.sendgrid.com")
	v.SetDefault("notify.email.from_email", "notifications@realtechee.com")
	v.SetDefault("notify.email.from_name", "RealTechee")
	v.SetDefault("notify.sms.base_url", "https://api.twilio.com")

	// Lead capture defaults
	v.SetDefault("leads.rate_per_minute", 5)
	v.SetDefault("leads.burst", 10)

	// Dispatch (job queue) defaults
	v.SetDefault("dispatch.workers", 1)
	v.SetDefault("dispatch.poll_interval_seconds", 5)
	v.SetDefault("dispatch.prune_after_days", 30)

	// Enhanced resolution cache defaults
	v.SetDefault("enhance.cache_ttl_seconds", 300) // 5 minute TTL, full clear
	v.SetDefault("enhance.max_cache_size", 1000)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("data_api.api_key", "REALTECHEE_DATA_API_KEY")
	v.BindEnv("notify.email.api_key", "REALTECHEE_SENDGRID_API_KEY")
	v.BindEnv("notify.sms.account_sid", "REALTECHEE_TWILIO_ACCOUNT_SID")
	v.BindEnv("notify.sms.auth_token", "REALTECHEE_TWILIO_AUTH_TOKEN")
	v.BindEnv("server.admin_api_key", "REALTECHEE_ADMIN_API_KEY")
}
