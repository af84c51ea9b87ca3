// Package am manages platform configuration ("I am").
// Configuration merges TOML files (system → user → project) with
// REALTECHEE_* environment variable overrides.
package am

// Config represents the core platform configuration
type Config struct {
	Database Database `mapstructure:"database"`
	Server   Server   `mapstructure:"server"`
	DataAPI  DataAPI  `mapstructure:"data_api"`
	Notify   Notify   `mapstructure:"notify"`
	Leads    Leads    `mapstructure:"leads"`
	Dispatch Dispatch `mapstructure:"dispatch"`
	Enhance  Enhance  `mapstructure:"enhance"`
}

// Database configures the local SQLite store (job queue, delivery log)
type Database struct {
	Path string `mapstructure:"path"`
}

// Server configures the admin/API HTTP server
type Server struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AdminAPIKey    string   `mapstructure:"admin_api_key"`  // empty = admin endpoints open (dev only)
	AdminBaseURL   string   `mapstructure:"admin_base_url"` // used for links in notifications
}

// DataAPI configures the managed GraphQL data API that owns business records
type DataAPI struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Notify configures the notification subsystem
type Notify struct {
	// Debug reroutes every notification to the sandbox inbox/number
	// and prefixes email subjects with [TEST].
	Debug        bool   `mapstructure:"debug"`
	SandboxEmail string `mapstructure:"sandbox_email"`
	SandboxPhone string `mapstructure:"sandbox_phone"`

	Email EmailProvider `mapstructure:"email"`
	SMS   SMSProvider   `mapstructure:"sms"`
}

// EmailProvider configures the SendGrid-compatible email provider
type EmailProvider struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

// SMSProvider configures the Twilio-compatible SMS provider
type SMSProvider struct {
	BaseURL    string `mapstructure:"base_url"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
}

// Leads configures the public lead-capture endpoints
type Leads struct {
	RatePerMinute int `mapstructure:"rate_per_minute"` // per-IP token refill rate
	Burst         int `mapstructure:"burst"`
}

// Dispatch configures the background job queue
type Dispatch struct {
	Workers             int `mapstructure:"workers"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	PruneAfterDays      int `mapstructure:"prune_after_days"` // completed jobs older than this are pruned
}

// Enhance configures the enhanced-entity resolution cache
type Enhance struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
	MaxCacheSize    int `mapstructure:"max_cache_size"`
}

// Server port constants
const (
	DefaultServerPort = 3001 // Matches the original backend's dev port
)
