// Package config provides centralized configuration management for the dashboard.
// It loads configuration from environment variables with defaults and
// validates all settings on startup so a missing credential stops the process
// instead of producing an empty table.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Sheets    SheetsConfig
	Messaging MessagingConfig
	Schema    SchemaConfig
	Table     TableConfig
	Batch     BatchConfig
	Export    ExportConfig
	History   HistoryConfig
	Gate      GateConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays 0 so SSE progress streams are not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// SheetsConfig identifies the spreadsheet the dataset is read from.
type SheetsConfig struct {
	SpreadsheetID string `env:"SHEETS_SPREADSHEET_ID" envAlt:"SPREADSHEET_ID" required:"true"`
	SheetName     string `env:"SHEETS_SHEET_NAME" envAlt:"SHEET_NAME" required:"true"`
	APIKey        string `env:"SHEETS_API_KEY" envAlt:"API_KEY" required:"true"`

	// Range is appended to the sheet name, e.g. "Leads!A1:Z".
	Range string `env:"SHEETS_RANGE" default:"A1:Z"`

	FetchTimeout time.Duration `env:"SHEETS_FETCH_TIMEOUT" default:"20s"`

	// RefreshInterval re-fetches the sheet in the background; 0 disables it.
	RefreshInterval time.Duration `env:"SHEETS_REFRESH_INTERVAL" default:"0s"`
}

// MessagingConfig holds the outbound template-message API settings.
type MessagingConfig struct {
	Token         string `env:"MESSAGING_TOKEN" envAlt:"WHATSAPP_TOKEN" required:"true"`
	PhoneNumberID string `env:"MESSAGING_PHONE_NUMBER_ID" required:"true"`
	BaseURL       string `env:"MESSAGING_BASE_URL" default:"https://graph.facebook.com/v21.0"`
	CountryCode   string `env:"MESSAGING_COUNTRY_CODE" default:"91"`
	Language      string `env:"MESSAGING_LANGUAGE" default:"en"`

	// Timeout bounds a single upload or send call.
	Timeout time.Duration `env:"MESSAGING_TIMEOUT" default:"30s"`

	MaxImageSize int64 `env:"MESSAGING_MAX_IMAGE_SIZE" default:"5242880"`
}

// SchemaConfig selects the column layout of the sheet.
type SchemaConfig struct {
	// Variant names an embedded schema: leads-11 or leads-12.
	Variant string `env:"SCHEMA_VARIANT" default:"leads-12"`

	// File overrides Variant with an external YAML schema.
	File string `env:"SCHEMA_FILE"`
}

// TableConfig holds table view settings.
type TableConfig struct {
	PageSize int `env:"TABLE_PAGE_SIZE" default:"10"`

	// SessionTTL drops idle per-browser table state.
	SessionTTL time.Duration `env:"TABLE_SESSION_TTL" default:"12h"`
}

// BatchConfig holds batch send settings.
type BatchConfig struct {
	// MaxConcurrent is the number of batches allowed to run at once (default: 1).
	MaxConcurrent int           `env:"BATCH_MAX_CONCURRENT" default:"1"`
	MaxWait       time.Duration `env:"BATCH_MAX_WAIT" default:"5s"`

	// Timeout bounds a whole batch run; 0 means no limit.
	Timeout time.Duration `env:"BATCH_TIMEOUT" default:"0s"`

	// Retain is how long a finished batch stays queryable in memory.
	Retain time.Duration `env:"BATCH_RETAIN" default:"1h"`
}

// ExportConfig holds optional object-storage archiving of error reports.
type ExportConfig struct {
	S3Endpoint  string `env:"EXPORT_S3_ENDPOINT"`
	S3AccessKey string `env:"EXPORT_S3_ACCESS_KEY"`
	S3SecretKey string `env:"EXPORT_S3_SECRET_KEY"`
	S3Bucket    string `env:"EXPORT_S3_BUCKET" default:"leaddesk-reports"`
	S3UseSSL    bool   `env:"EXPORT_S3_USE_SSL" default:"true"`
}

// HistoryConfig holds batch history storage settings.
type HistoryConfig struct {
	// DatabaseURL enables the Postgres backend; empty keeps history in memory.
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MemoryLimit caps the in-memory backend.
	MemoryLimit int `env:"HISTORY_MEMORY_LIMIT" default:"200"`
}

// GateConfig holds the UI password gate. It is a convenience toggle, not access control.
type GateConfig struct {
	Password string        `env:"GATE_PASSWORD"`
	Secret   string        `env:"GATE_SECRET"`
	TTL      time.Duration `env:"GATE_TTL" default:"24h"`
}

// Enabled reports whether the gate page is shown.
func (c GateConfig) Enabled() bool {
	return c.Password != ""
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
	EnableCSP      bool     `env:"SECURITY_ENABLE_CSP" default:"true"`

	// SecureCookies marks session and gate cookies Secure; enable behind HTTPS.
	SecureCookies bool `env:"SECURITY_SECURE_COOKIES" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	// Exporter is one of: none, stdout, otlphttp.
	Exporter    string  `env:"OTEL_EXPORTER" default:"none"`
	Endpoint    string  `env:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	Insecure    bool    `env:"OTEL_INSECURE" default:"true"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" default:"1"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" default:"leaddesk"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
