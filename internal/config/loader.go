package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Every missing required variable is reported, not just the first.
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string
	if err := loadStruct(reflect.ValueOf(cfg).Elem(), &missing); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config load: required environment variables not set: %s", strings.Join(missing, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
// Names of required variables that are unset are appended to missing.
func loadStruct(v reflect.Value, missing *[]string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, missing); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}
		envAlt := field.Tag.Get("envAlt")

		value := strings.TrimSpace(os.Getenv(envName))
		if value == "" && envAlt != "" {
			value = strings.TrimSpace(os.Getenv(envAlt))
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				*missing = append(*missing, envName)
				continue
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if strings.ContainsAny(c.Sheets.SheetName, "!") {
		errs = append(errs, "SHEETS_SHEET_NAME must not contain '!'; use SHEETS_RANGE for the cell range")
	}
	if c.Sheets.FetchTimeout <= 0 {
		errs = append(errs, "SHEETS_FETCH_TIMEOUT must be positive")
	}
	if c.Sheets.RefreshInterval < 0 {
		errs = append(errs, "SHEETS_REFRESH_INTERVAL must be non-negative")
	}

	if !strings.HasPrefix(c.Messaging.BaseURL, "http://") && !strings.HasPrefix(c.Messaging.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("MESSAGING_BASE_URL (%q) must be an http(s) URL", c.Messaging.BaseURL))
	}
	if strings.Trim(c.Messaging.CountryCode, "0123456789") != "" {
		errs = append(errs, fmt.Sprintf("MESSAGING_COUNTRY_CODE (%q) must be digits only", c.Messaging.CountryCode))
	}
	if c.Messaging.Timeout <= 0 {
		errs = append(errs, "MESSAGING_TIMEOUT must be positive")
	}
	if c.Messaging.MaxImageSize <= 0 {
		errs = append(errs, "MESSAGING_MAX_IMAGE_SIZE must be positive")
	}

	if c.Schema.File == "" && c.Schema.Variant == "" {
		errs = append(errs, "one of SCHEMA_VARIANT or SCHEMA_FILE is required")
	}

	if c.Table.PageSize <= 0 {
		errs = append(errs, "TABLE_PAGE_SIZE must be positive")
	}
	if c.Table.SessionTTL <= 0 {
		errs = append(errs, "TABLE_SESSION_TTL must be positive")
	}

	if c.Batch.MaxConcurrent <= 0 {
		errs = append(errs, "BATCH_MAX_CONCURRENT must be positive")
	}
	if c.Batch.MaxWait <= 0 {
		errs = append(errs, "BATCH_MAX_WAIT must be positive")
	}
	if c.Batch.Timeout < 0 {
		errs = append(errs, "BATCH_TIMEOUT must be non-negative")
	}

	if c.Export.S3Endpoint != "" && (c.Export.S3AccessKey == "" || c.Export.S3SecretKey == "") {
		errs = append(errs, "EXPORT_S3_ACCESS_KEY and EXPORT_S3_SECRET_KEY are required when EXPORT_S3_ENDPOINT is set")
	}

	if c.History.DatabaseURL != "" && c.History.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.History.MemoryLimit <= 0 {
		errs = append(errs, "HISTORY_MEMORY_LIMIT must be positive")
	}

	if c.Gate.Enabled() && len(c.Gate.Secret) < 16 {
		errs = append(errs, "GATE_SECRET must be at least 16 characters when GATE_PASSWORD is set")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	validExporters := map[string]bool{"none": true, "stdout": true, "otlphttp": true}
	if !validExporters[strings.ToLower(c.Tracing.Exporter)] {
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER (%q) must be one of: none, stdout, otlphttp", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, "OTEL_SAMPLE_RATIO must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Sheets: {SpreadsheetID: %q, SheetName: %q, APIKey: [MASKED]}, ", c.Sheets.SpreadsheetID, c.Sheets.SheetName)
	fmt.Fprintf(&b, "Messaging: {PhoneNumberID: %q, Token: [MASKED]}, ", c.Messaging.PhoneNumberID)
	fmt.Fprintf(&b, "Table: {PageSize: %d}, ", c.Table.PageSize)
	fmt.Fprintf(&b, "Batch: {MaxConcurrent: %d}, ", c.Batch.MaxConcurrent)
	fmt.Fprintf(&b, "History: {Postgres: %v}, ", c.History.DatabaseURL != "")
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
