// Package config handles configuration loading and validation for the
// GOI engine and its serving surfaces.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// Duration wraps time.Duration so YAML values like "250ms" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds")
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the application configuration.
type Config struct {
	// Mode is the default interaction mode for new sessions.
	Mode string `yaml:"mode"`

	Engine    EngineConfig     `yaml:"engine"`
	Intent    IntentConfig     `yaml:"intent"`
	Redis     RedisConfig      `yaml:"redis"`
	Server    ServerConfig     `yaml:"server"`
	Security  SecurityConfig   `yaml:"security"`
	UserRules []map[string]any `yaml:"rules"`
}

// EngineConfig tunes the agent loop.
type EngineConfig struct {
	MaxRetries int      `yaml:"max_retries"`
	StepDelay  Duration `yaml:"step_delay"`
}

// IntentConfig tunes the natural-language command pipeline.
type IntentConfig struct {
	AutoExecuteThreshold float64 `yaml:"auto_execute_threshold"`
	ConfirmThreshold     float64 `yaml:"confirm_threshold"`
	ClarifyThreshold     float64 `yaml:"clarify_threshold"`
	MaxClarifyRounds     int     `yaml:"max_clarify_rounds"`
}

// RedisConfig selects the persistent store. An empty Addr keeps
// sessions in memory.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// SecurityConfig enables persistence middleware.
type SecurityConfig struct {
	// EncryptionKey is a 32-byte key, hex or raw. Empty disables
	// snapshot encryption.
	EncryptionKey string `yaml:"encryption_key"`
	// PIIPatterns are regexps matched against item parameter keys.
	PIIPatterns []string `yaml:"pii_patterns"`
}

// Default returns a Config with stock values.
func Default() Config {
	return Config{
		Mode: string(domain.ModeAssisted),
		Engine: EngineConfig{
			MaxRetries: 2,
			StepDelay:  0,
		},
		Intent: IntentConfig{
			AutoExecuteThreshold: 0.9,
			ConfirmThreshold:     0.7,
			ClarifyThreshold:     0.4,
			MaxClarifyRounds:     3,
		},
		Redis: RedisConfig{
			TTL: Duration(24 * time.Hour),
		},
		Server: ServerConfig{
			Listen: ":8720",
		},
	}
}

// Load reads configuration from the given path, falling back to
// defaults when the path is empty or the file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if c.Mode == "" {
		c.Mode = defaults.Mode
	}
	if c.Intent.AutoExecuteThreshold == 0 {
		c.Intent.AutoExecuteThreshold = defaults.Intent.AutoExecuteThreshold
	}
	if c.Intent.ConfirmThreshold == 0 {
		c.Intent.ConfirmThreshold = defaults.Intent.ConfirmThreshold
	}
	if c.Intent.ClarifyThreshold == 0 {
		c.Intent.ClarifyThreshold = defaults.Intent.ClarifyThreshold
	}
	if c.Intent.MaxClarifyRounds == 0 {
		c.Intent.MaxClarifyRounds = defaults.Intent.MaxClarifyRounds
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = defaults.Redis.TTL
	}
	if c.Server.Listen == "" {
		c.Server.Listen = defaults.Server.Listen
	}
}

// Validate checks structural constraints.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("mode", c.Mode, validMode),
		c.validateEngine(),
		c.validateThresholds(),
		c.validateEncryptionKey(),
	)
}

func (c *Config) validateEngine() error {
	var errs criterio.FieldErrorsBuilder
	if c.Engine.MaxRetries < 0 {
		errs = errs.Append("engine.max_retries", fmt.Errorf("must not be negative"))
	}
	if c.Engine.StepDelay < 0 {
		errs = errs.Append("engine.step_delay", fmt.Errorf("must not be negative"))
	}
	if c.Intent.MaxClarifyRounds < 1 {
		errs = errs.Append("intent.max_clarify_rounds", fmt.Errorf("must be at least 1"))
	}
	return errs.ToError()
}

func (c *Config) validateThresholds() error {
	t := c.Intent
	if t.AutoExecuteThreshold <= t.ConfirmThreshold || t.ConfirmThreshold <= t.ClarifyThreshold {
		return criterio.NewFieldErrors("intent",
			fmt.Errorf("thresholds must descend: auto_execute > confirm > clarify"))
	}
	if t.AutoExecuteThreshold > 1 || t.ClarifyThreshold < 0 {
		return criterio.NewFieldErrors("intent",
			fmt.Errorf("thresholds must stay within [0, 1]"))
	}
	return nil
}

func (c *Config) validateEncryptionKey() error {
	key := c.Security.EncryptionKey
	if key == "" {
		return nil
	}
	if len(key) != 32 && len(key) != 64 {
		return criterio.NewFieldErrors("security.encryption_key",
			fmt.Errorf("key must be 32 raw bytes or 64 hex characters, got %d", len(key)))
	}
	return nil
}

func validMode(mode string) error {
	if !domain.Mode(mode).Valid() {
		return fmt.Errorf("unknown mode %q", mode)
	}
	return nil
}

// EncryptionKeyBytes returns the configured key as raw bytes, decoding
// hex when the key is 64 characters. Nil when encryption is disabled.
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	key := c.Security.EncryptionKey
	switch len(key) {
	case 0:
		return nil, nil
	case 32:
		return []byte(key), nil
	case 64:
		raw, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("decoding encryption key: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("encryption key must be 32 raw bytes or 64 hex characters")
	}
}

// CheckpointRules decodes the loose rule maps from the YAML file into
// typed checkpoint rules.
func (c *Config) CheckpointRules() ([]domain.CheckpointRule, error) {
	rules := make([]domain.CheckpointRule, 0, len(c.UserRules))
	for i, raw := range c.UserRules {
		var rule domain.CheckpointRule
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &rule,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, fmt.Errorf("building rule decoder: %w", err)
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if rule.Action == "" {
			rule.Action = domain.RuleRequireConfirm
		}
		if !rule.Action.Valid() {
			return nil, fmt.Errorf("rule %d: unknown action %q", i, rule.Action)
		}
		rule.Source = domain.RuleSourceUser
		rules = append(rules, rule)
	}
	return rules, nil
}
