package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Env:                    "development",
		PlatformBaseURL:        "http://platform.local",
		DatabaseURL:            "postgres://localhost/dre",
		PlatformTimeoutSeconds: 30,
		PlatformMaxAttempts:    3,
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing base url", func(c *Config) { c.PlatformBaseURL = "" }, "PLATFORM_BASE_URL"},
		{"bad scheme", func(c *Config) { c.PlatformBaseURL = "ftp://x" }, "http(s)"},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"zero timeout", func(c *Config) { c.PlatformTimeoutSeconds = 0 }, "PLATFORM_TIMEOUT_SECONDS"},
		{"zero attempts", func(c *Config) { c.PlatformMaxAttempts = 0 }, "PLATFORM_MAX_ATTEMPTS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateProductionHardening(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.PlatformPassword = "secret"
	c.APIKey = "key"

	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "https") {
		t.Errorf("plain http should be rejected in production, got %v", err)
	}

	c.PlatformBaseURL = "https://platform.example.com"
	if err := c.Validate(); err != nil {
		t.Fatalf("hardened production config rejected: %v", err)
	}

	c.PlatformPassword = ""
	if err := c.Validate(); err == nil {
		t.Error("missing credential should be rejected in production")
	}
}
