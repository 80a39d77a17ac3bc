// Package config loads the leadline configuration from a YAML file with
// environment fallbacks for secrets and deploy-time overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	ListenAddr string         `yaml:"listen_addr"`
	LLM        LLMConfig      `yaml:"llm"`
	Carbon     CarbonConfig   `yaml:"carbon"`
	Geocoder   GeocoderConfig `yaml:"geocoder"`
	Store      StoreConfig    `yaml:"store"`
	Engine     EngineConfig   `yaml:"engine"`
}

// LLMConfig selects and configures the decision-step provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "ollama"
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"` // ollama server or openai-compatible base URL
	APIKey   string `yaml:"api_key"`
}

// CarbonConfig configures the partner API client.
type CarbonConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// GeocoderConfig configures the zip lookup endpoint.
type GeocoderConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "memory" or "sqlite"
	Path   string `yaml:"path"`   // sqlite database file
}

// EngineConfig bounds the turn orchestrator.
type EngineConfig struct {
	MaxRetries         int `yaml:"max_retries"`
	MaxToolHops        int `yaml:"max_tool_hops"`
	ToolTimeoutSeconds int `yaml:"tool_timeout_seconds"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ListenAddr: envOrDefault("LEADLINE_LISTEN_ADDR", ":8080"),
		LLM: LLMConfig{
			Provider: envOrDefault("LEADLINE_LLM_PROVIDER", "openai"),
			Model:    os.Getenv("LEADLINE_LLM_MODEL"),
			Endpoint: os.Getenv("OLLAMA_ENDPOINT"),
			APIKey:   os.Getenv("OPENAI_API_KEY"),
		},
		Carbon: CarbonConfig{
			BaseURL:        envOrDefault("CARBON_BASE_URL", "https://carbon.clearoneadvantage.com"),
			APIKey:         os.Getenv("CARBON_API_KEY"),
			TimeoutSeconds: 30,
		},
		Geocoder: GeocoderConfig{
			Endpoint: envOrDefault("GEOCODER_ENDPOINT", "https://api.zippopotam.us"),
		},
		Store: StoreConfig{
			Driver: envOrDefault("LEADLINE_STORE_DRIVER", "sqlite"),
			Path:   envOrDefault("LEADLINE_STORE_PATH", "leadline.db"),
		},
		Engine: EngineConfig{
			MaxRetries:         envIntOrDefault("LEADLINE_MAX_RETRIES", 3),
			MaxToolHops:        envIntOrDefault("LEADLINE_MAX_TOOL_HOPS", 8),
			ToolTimeoutSeconds: envIntOrDefault("LEADLINE_TOOL_TIMEOUT", 30),
		},
	}
}

// Load reads the config file at path on top of the defaults. A missing file
// is not an error; the defaults (and environment) stand alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
