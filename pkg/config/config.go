// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads agentloop settings from defaults, an optional YAML
// file, AGENTLOOP_ environment variables and command line overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/jllopis/agentloop/pkg/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read by Load.
const EnvPrefix = "AGENTLOOP_"

type Config struct {
	Log          LogConfig          `koanf:"log"`
	LLM          LLMConfig          `koanf:"llm"`
	Agent        AgentConfig        `koanf:"agent"`
	Capabilities CapabilitiesConfig `koanf:"capabilities"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
	Audit        AuditConfig        `koanf:"audit"`
	Cache        CacheConfig        `koanf:"cache"`
	MCP          MCPConfig          `koanf:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error off"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type LLMConfig struct {
	Provider    string        `koanf:"provider" validate:"oneof=openai ollama mock"`
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey      string        `koanf:"api_key"`
	APIKeyEnv   string        `koanf:"api_key_env"`
	Timeout     time.Duration `koanf:"timeout" validate:"gte=0"`
	JSONMode    bool          `koanf:"json_mode"`
	Temperature float64       `koanf:"temperature" validate:"gte=0,lte=2"`
	// Replies feeds the mock provider, one reply per turn.
	Replies []string `koanf:"replies"`
}

// ResolveAPIKey returns APIKey, or the value of the APIKeyEnv variable.
func (c LLMConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}

type AgentConfig struct {
	ID        string `koanf:"id" validate:"required"`
	MaxMemory int    `koanf:"max_memory" validate:"gte=0"`
	// FallbackMessage replaces the reply to unknown capabilities when set.
	FallbackMessage string `koanf:"fallback_message"`
	SessionID       string `koanf:"session_id"`
}

type CapabilitiesConfig struct {
	Enabled            []string `koanf:"enabled" validate:"dive,oneof=clock calculator textstats websearch webfetch"`
	CalculatorExtended bool     `koanf:"calculator_extended"`
	SearchEndpoint     string   `koanf:"search_endpoint" validate:"omitempty,url"`
	SearchResults      int      `koanf:"search_results" validate:"gte=1,lte=50"`
	FetchMaxBytes      int      `koanf:"fetch_max_bytes" validate:"gte=1"`
}

type TelemetryConfig struct {
	Exporter    string        `koanf:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint    string        `koanf:"endpoint" validate:"required_if=Exporter otlp"`
	Insecure    bool          `koanf:"insecure"`
	ServiceName string        `koanf:"service_name" validate:"required"`
	Timeout     time.Duration `koanf:"timeout" validate:"gte=0"`
}

type AuditConfig struct {
	Driver string `koanf:"driver" validate:"oneof=none memory sqlite"`
	Path   string `koanf:"path" validate:"required_if=Driver sqlite"`
}

type CacheConfig struct {
	Driver   string        `koanf:"driver" validate:"oneof=none memory redis"`
	Size     int           `koanf:"size" validate:"gte=1"`
	TTL      time.Duration `koanf:"ttl" validate:"gte=0"`
	Addr     string        `koanf:"addr" validate:"required_if=Driver redis"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db" validate:"gte=0"`
	Prefix   string        `koanf:"prefix"`
}

type MCPConfig struct {
	// Servers are MCP servers whose tools become capabilities, keyed by a
	// local name.
	Servers map[string]MCPServerConfig `koanf:"servers" validate:"dive"`
}

// MCPServerConfig launches Command over stdio, or connects to URL over
// streamable HTTP.
type MCPServerConfig struct {
	Command string   `koanf:"command" validate:"required_without=URL"`
	Args    []string `koanf:"args"`
	Env     []string `koanf:"env"`
	URL     string   `koanf:"url" validate:"omitempty,url"`
}

var defaults = map[string]any{
	"log.level":  "info",
	"log.format": "text",

	"llm.provider":    "ollama",
	"llm.model":       "qwen2.5-coder:7b-instruct-q5_K_M",
	"llm.api_key_env": "OPENAI_API_KEY",
	"llm.timeout":     60 * time.Second,
	"llm.json_mode":   true,

	"agent.id":         "agentloop",
	"agent.max_memory": 10,

	"capabilities.enabled":         []string{"clock", "calculator"},
	"capabilities.search_endpoint": "https://api.duckduckgo.com/",
	"capabilities.search_results":  5,
	"capabilities.fetch_max_bytes": 50 * 1024,

	"telemetry.exporter":     "none",
	"telemetry.endpoint":     "localhost:4317",
	"telemetry.insecure":     true,
	"telemetry.service_name": "agentloop",
	"telemetry.timeout":      10 * time.Second,

	"audit.driver": "none",
	"audit.path":   "agentloop-audit.db",

	"cache.driver": "none",
	"cache.size":   256,
	"cache.ttl":    10 * time.Minute,
	"cache.addr":   "localhost:6379",
	"cache.prefix": "agentloop:llm:",
}

var validate = validator.New()

// Load reads defaults, the YAML file at path (when not empty) and the
// AGENTLOOP_ environment, then validates the result.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load followed by key=value overrides such as
// "llm.provider=mock", applied last.
func LoadWithOverrides(path string, overrides []string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, configError("set default "+key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, configError("load "+path, err)
		}
	}

	// AGENTLOOP_LLM_BASE_URL -> llm.base_url
	if err := k.Load(env.Provider(EnvPrefix, ".", EnvKey), nil); err != nil {
		return nil, configError("load environment", err)
	}

	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, configError(fmt.Sprintf("invalid override %q, want key=value", o), nil)
		}
		if err := k.Set(key, value); err != nil {
			return nil, configError("override "+key, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{DecoderConfig: decoderConfig()}); err != nil {
		return nil, configError("decode", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decoderConfig extends the koanf defaults so comma separated strings from
// the environment or --set decode into string slices.
func decoderConfig() *mapstructure.DecoderConfig {
	return &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		WeaklyTypedInput: true,
	}
}

// EnvKey maps an AGENTLOOP_ variable to its koanf key: the first segment
// after the prefix is the section and the rest is the field name.
func EnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(s, "_")
	if !ok {
		return section
	}
	return section + "." + field
}

// Validate checks the struct tags of cfg.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return configError("validation failed", err)
	}
	return nil
}

func configError(msg string, err error) error {
	return errors.New(errors.CodeConfigError, "config: "+msg, err)
}
