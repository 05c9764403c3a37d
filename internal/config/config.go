// Package config loads engine settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/cogflow/pkg/domain"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "cogflow.yaml"

// Config is the full engine configuration.
type Config struct {
	LogLevel     string             `mapstructure:"log_level"`
	Model        ModelConfig        `mapstructure:"model"`
	Retry        RetryConfig        `mapstructure:"retry"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Generation   GenerationConfig   `mapstructure:"generation"`
	Syntax       domain.Syntax      `mapstructure:"syntax"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Store        StoreConfig        `mapstructure:"store"`
	Server       ServerConfig       `mapstructure:"server"`
	Tools        string             `mapstructure:"tools"`
}

type ModelConfig struct {
	// Kind is llamacpp, random or oracle.
	Kind      string        `mapstructure:"kind"`
	Endpoint  string        `mapstructure:"endpoint"`
	VocabSize int           `mapstructure:"vocab_size"`
	TopK      int           `mapstructure:"top_k"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Seed      int64         `mapstructure:"seed"`
	// Script is the text the oracle model steers towards, one entry per prompt step.
	Script []string `mapstructure:"script"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Growth      float64       `mapstructure:"growth"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

type CacheConfig struct {
	// Size is the number of cached log-prob vectors. Zero disables the cache.
	Size int `mapstructure:"size"`
}

type GenerationConfig struct {
	CompletionLength int     `mapstructure:"completion_length"`
	Width            int     `mapstructure:"width"`
	Threshold        float64 `mapstructure:"threshold"`
	Scoring          string  `mapstructure:"scoring"`
	MaxSteps         int     `mapstructure:"max_steps"`
	MaxNodes         int     `mapstructure:"max_nodes"`
	ZeroIndex        bool    `mapstructure:"zero_index"`
}

type OrchestratorConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// Retention is the number of finished invocations kept in memory.
	Retention int `mapstructure:"retention"`
}

type StoreConfig struct {
	// Kind is memory, file or redis.
	Kind          string        `mapstructure:"kind"`
	Path          string        `mapstructure:"path"`
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
	EncryptionKey string        `mapstructure:"encryption_key"`
	// Mask lists regular expressions of keys whose values are masked before saving.
	Mask []string `mapstructure:"mask"`
}

type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	MCPAddr string `mapstructure:"mcp_addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LogLevel: "info",
		Model: ModelConfig{
			Kind:      "llamacpp",
			Endpoint:  "http://localhost:8080",
			VocabSize: 32000,
			TopK:      64,
			Timeout:   60 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Growth:      4,
			MaxDelay:    time.Minute,
		},
		Cache: CacheConfig{Size: 4096},
		Generation: GenerationConfig{
			CompletionLength: 64,
			Scoring:          "tokwise_norm",
			MaxSteps:         64,
			MaxNodes:         100_000,
		},
		Syntax:       domain.DefaultSyntax(),
		Orchestrator: OrchestratorConfig{Concurrency: 4, Retention: 256},
		Store:        StoreConfig{Kind: "memory", Path: ".cogflow/runs", Addr: "localhost:6379"},
		Server:       ServerConfig{Addr: ":8080", MCPAddr: ":8081"},
		Tools:        "tools.yaml",
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := Parse(data, &cfg); err != nil {
				return cfg, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping the values it does not mention.
func Parse(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// ApplyEnv overrides cfg with COGFLOW_* variables found by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"COGFLOW_LOG_LEVEL":      &cfg.LogLevel,
		"COGFLOW_MODEL_KIND":     &cfg.Model.Kind,
		"COGFLOW_MODEL_ENDPOINT": &cfg.Model.Endpoint,
		"COGFLOW_STORE":          &cfg.Store.Kind,
		"COGFLOW_STORE_PATH":     &cfg.Store.Path,
		"COGFLOW_REDIS_ADDR":     &cfg.Store.Addr,
		"COGFLOW_REDIS_PASSWORD": &cfg.Store.Password,
		"COGFLOW_ENCRYPTION_KEY": &cfg.Store.EncryptionKey,
		"COGFLOW_SERVER_ADDR":    &cfg.Server.Addr,
		"COGFLOW_MCP_ADDR":       &cfg.Server.MCPAddr,
		"COGFLOW_TOOLS":          &cfg.Tools,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := lookup("COGFLOW_MODEL_VOCAB_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("COGFLOW_MODEL_VOCAB_SIZE: %w", err)
		}
		cfg.Model.VocabSize = n
	}
	return nil
}
