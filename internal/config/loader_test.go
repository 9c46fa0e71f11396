package config

import (
	"os"
	"testing"
	"time"
)

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_VAR", "hello")
	defer os.Unsetenv("TEST_VAR")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"${TEST_VAR:default}", "hello"},
		{"${UNSET_VAR:fallback}", "fallback"},
		{"${UNSET_VAR}", ""},
		{"no vars here", "no vars here"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
	}

	for _, tt := range tests {
		got := expandEnvVars(tt.input)
		if got != tt.expected {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
server:
  host: "0.0.0.0"
  port: 9999
quota:
  default_limit: 3
  default_window: 30s
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	cfg := DefaultConfig()
	if err := LoadFile(tmpFile.Name(), cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Quota.DefaultLimit != 3 {
		t.Errorf("expected default_limit 3, got %d", cfg.Quota.DefaultLimit)
	}
	if cfg.Quota.DefaultWindow != 30*time.Second {
		t.Errorf("expected default_window 30s, got %s", cfg.Quota.DefaultWindow)
	}
	// Untouched sections keep defaults
	if cfg.Backoff.MaxDelay != 2*time.Minute {
		t.Errorf("expected default max_delay, got %s", cfg.Backoff.MaxDelay)
	}
}

func TestLoadProvidersFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-providers-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
providers:
  github:
    type: github
    base_url: https://api.github.com
    timeout: 10s
    limit: 5000
    window: 1h
    endpoints:
      issues: /issues
      pull-requests: /search/issues
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	var provCfg ProvidersConfig
	if err := LoadFile(tmpFile.Name(), &provCfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	gh, ok := provCfg.Providers["github"]
	if !ok {
		t.Fatal("expected github provider")
	}
	if gh.Limit != 5000 {
		t.Errorf("expected limit 5000, got %d", gh.Limit)
	}
	if gh.Endpoints["issues"] != "/issues" {
		t.Errorf("unexpected issues endpoint: %s", gh.Endpoints["issues"])
	}
}
