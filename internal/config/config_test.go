package config

import (
	"strings"
	"testing"
	"time"
)

// setRequired sets the minimum environment for Load to succeed.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SHEETS_SPREADSHEET_ID", "sheet-123")
	t.Setenv("SHEETS_SHEET_NAME", "Leads")
	t.Setenv("SHEETS_API_KEY", "key-abc")
	t.Setenv("MESSAGING_TOKEN", "token-xyz")
	t.Setenv("MESSAGING_PHONE_NUMBER_ID", "4223888")
}

// clearRequired blanks both primary and alternate names.
func clearRequired(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SHEETS_SPREADSHEET_ID", "SPREADSHEET_ID",
		"SHEETS_SHEET_NAME", "SHEET_NAME",
		"SHEETS_API_KEY", "API_KEY",
		"MESSAGING_TOKEN", "WHATSAPP_TOKEN",
		"MESSAGING_PHONE_NUMBER_ID",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearRequired(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Table.PageSize != 10 {
		t.Errorf("Table.PageSize = %d, want %d", cfg.Table.PageSize, 10)
	}
	if cfg.Batch.MaxConcurrent != 1 {
		t.Errorf("Batch.MaxConcurrent = %d, want %d", cfg.Batch.MaxConcurrent, 1)
	}
	if cfg.Messaging.CountryCode != "91" {
		t.Errorf("Messaging.CountryCode = %q, want %q", cfg.Messaging.CountryCode, "91")
	}
	if cfg.Sheets.Range != "A1:Z" {
		t.Errorf("Sheets.Range = %q, want %q", cfg.Sheets.Range, "A1:Z")
	}
	if cfg.Schema.Variant != "leads-12" {
		t.Errorf("Schema.Variant = %q, want %q", cfg.Schema.Variant, "leads-12")
	}
	if cfg.Gate.Enabled() {
		t.Error("Gate.Enabled() = true, want false without GATE_PASSWORD")
	}
	if cfg.Tracing.SampleRatio != 1 {
		t.Errorf("Tracing.SampleRatio = %v, want 1", cfg.Tracing.SampleRatio)
	}
}

func TestLoad_MissingRequiredListsAll(t *testing.T) {
	clearRequired(t)
	t.Setenv("SHEETS_SPREADSHEET_ID", "sheet-123")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing credentials")
	}
	for _, name := range []string{"SHEETS_SHEET_NAME", "SHEETS_API_KEY", "MESSAGING_TOKEN", "MESSAGING_PHONE_NUMBER_ID"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s: %v", name, err)
		}
	}
	if strings.Contains(err.Error(), "SHEETS_SPREADSHEET_ID") {
		t.Errorf("error should not mention a variable that is set: %v", err)
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	clearRequired(t)
	setRequired(t)
	t.Setenv("SHEETS_SPREADSHEET_ID", "")
	t.Setenv("SPREADSHEET_ID", "legacy-sheet")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sheets.SpreadsheetID != "legacy-sheet" {
		t.Errorf("Sheets.SpreadsheetID = %q, want %q", cfg.Sheets.SpreadsheetID, "legacy-sheet")
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	clearRequired(t)
	setRequired(t)
	t.Setenv("TABLE_PAGE_SIZE", "25")
	t.Setenv("BATCH_MAX_WAIT", "1m30s")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.0.0/16 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Table.PageSize != 25 {
		t.Errorf("Table.PageSize = %d, want %d", cfg.Table.PageSize, 25)
	}
	if cfg.Batch.MaxWait != 90*time.Second {
		t.Errorf("Batch.MaxWait = %v, want %v", cfg.Batch.MaxWait, 90*time.Second)
	}
	if cfg.Tracing.SampleRatio != 0.25 {
		t.Errorf("Tracing.SampleRatio = %v, want 0.25", cfg.Tracing.SampleRatio)
	}
	want := []string{"10.0.0.0/8", "192.168.0.0/16"}
	if len(cfg.Security.TrustedProxies) != len(want) {
		t.Fatalf("TrustedProxies = %v, want %v", cfg.Security.TrustedProxies, want)
	}
	for i := range want {
		if cfg.Security.TrustedProxies[i] != want[i] {
			t.Errorf("TrustedProxies[%d] = %q, want %q", i, cfg.Security.TrustedProxies[i], want[i])
		}
	}
}

func TestLoad_InvalidInteger(t *testing.T) {
	clearRequired(t)
	setRequired(t)
	t.Setenv("TABLE_PAGE_SIZE", "ten")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "TABLE_PAGE_SIZE") {
		t.Fatalf("Load() error = %v, want mention of TABLE_PAGE_SIZE", err)
	}
}

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Sheets:    SheetsConfig{SpreadsheetID: "s", SheetName: "Leads", APIKey: "k", FetchTimeout: time.Second},
		Messaging: MessagingConfig{Token: "t", PhoneNumberID: "1", BaseURL: "https://graph.example", CountryCode: "91", Timeout: time.Second, MaxImageSize: 1},
		Schema:    SchemaConfig{Variant: "leads-12"},
		Table:     TableConfig{PageSize: 10, SessionTTL: time.Hour},
		Batch:     BatchConfig{MaxConcurrent: 1, MaxWait: time.Second},
		History:   HistoryConfig{MemoryLimit: 10},
		Rate:      RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Tracing:   TracingConfig{Exporter: "none", SampleRatio: 1},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"range in sheet name", func(c *Config) { c.Sheets.SheetName = "Leads!A1:Z" }, "SHEETS_SHEET_NAME"},
		{"country code letters", func(c *Config) { c.Messaging.CountryCode = "+91" }, "MESSAGING_COUNTRY_CODE"},
		{"zero page size", func(c *Config) { c.Table.PageSize = 0 }, "TABLE_PAGE_SIZE"},
		{"gate without secret", func(c *Config) { c.Gate.Password = "open sesame" }, "GATE_SECRET"},
		{"s3 without keys", func(c *Config) { c.Export.S3Endpoint = "minio:9000" }, "EXPORT_S3_ACCESS_KEY"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, "OTEL_EXPORTER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %s: %v", tt.wantErr, err)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		if got := cfg.Addr(); got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfigString_MasksCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Sheets.APIKey = "super-secret-key"
	cfg.Messaging.Token = "bearer-secret"

	str := cfg.String()
	if strings.Contains(str, "super-secret-key") || strings.Contains(str, "bearer-secret") {
		t.Errorf("String() leaked a credential: %s", str)
	}
	if !strings.Contains(str, "MASKED") {
		t.Error("String() should contain MASKED placeholder")
	}
}
