package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hibrida/pricing-engine/internal/config"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := config.Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %q, want 8080", cfg.Server.Port)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Demo.InitialCredit != 100 {
		t.Errorf("initial credit = %v, want default 100", cfg.Demo.InitialCredit)
	}
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
log_level = "debug"

[server]
port = "9090"

[demo]
initial_credit = 250.0

[market]
b = 40.0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Demo.InitialCredit != 250 {
		t.Errorf("initial credit = %v, want 250", cfg.Demo.InitialCredit)
	}
	if cfg.Market.B != 40 {
		t.Errorf("b = %v, want 40", cfg.Market.B)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	// Sections the file omits keep their defaults.
	if cfg.Demo.TopUpAmount != 100 {
		t.Errorf("top_up_amount = %v, want default 100", cfg.Demo.TopUpAmount)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = \"9090\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("HIBRIDA_PORT", "7070")
	t.Setenv("HIBRIDA_DEMO_INITIAL_CREDIT", "42")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("port = %q, want env override 7070", cfg.Server.Port)
	}
	if cfg.Demo.InitialCredit != 42 {
		t.Errorf("initial credit = %v, want env override 42", cfg.Demo.InitialCredit)
	}
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := config.Load(path); err == nil {
		t.Error("expected error for malformed TOML")
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty port", func(c *config.Config) { c.Server.Port = "" }},
		{"non-positive credit", func(c *config.Config) { c.Demo.InitialCredit = 0 }},
		{"non-positive top-up", func(c *config.Config) { c.Demo.TopUpAmount = -1 }},
		{"non-positive b", func(c *config.Config) { c.Market.B = 0 }},
		{"negative cache ttl", func(c *config.Config) { c.Redis.CacheTTLSeconds = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEngineParams_ConvertsToDecimal(t *testing.T) {
	cfg := config.Defaults()
	params := cfg.EngineParams()

	if !params.InitialCredit.Equal(decimal.NewFromInt(100)) {
		t.Errorf("initial credit = %s, want 100", params.InitialCredit)
	}
	if !params.MarketB.Equal(decimal.NewFromInt(80)) {
		t.Errorf("market b = %s, want 80", params.MarketB)
	}
}
