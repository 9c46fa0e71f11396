package config

import "time"

type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one upstream work-tracking service. Limit and
// Window override the global quota defaults; Endpoints maps a logical
// endpoint name (issues, pull-requests, pipelines) to the provider-native
// path relative to BaseURL.
type ProviderConfig struct {
	Type      string            `yaml:"type"`
	BaseURL   string            `yaml:"base_url"`
	Timeout   time.Duration     `yaml:"timeout"`
	Limit     int               `yaml:"limit,omitempty"`
	Window    time.Duration     `yaml:"window,omitempty"`
	Endpoints map[string]string `yaml:"endpoints,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
}
