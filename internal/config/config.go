package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/MJE43/czn-savedata-calc/internal/score"
	"github.com/MJE43/czn-savedata-calc/internal/scripting"
	"github.com/MJE43/czn-savedata-calc/internal/secrets"
)

// Config is loaded from CZN_* environment variables.
type Config struct {
	HTTPAddr        string `env:"CZN_HTTP_ADDR" envDefault:"127.0.0.1:17889"`
	LogLevel        string `env:"CZN_LOG_LEVEL" envDefault:"info"`
	LogDevelopment  bool   `env:"CZN_LOG_DEV" envDefault:"false"`
	APIToken        string `env:"CZN_API_TOKEN"`
	KeyringService  string `env:"CZN_KEYRING_SERVICE" envDefault:"czn-savedata-calc"`
	SecretsFallback string `env:"CZN_SECRETS_FALLBACK"`
	DefaultTier     int    `env:"CZN_DEFAULT_TIER" envDefault:"1"`
	RuleSet         string `env:"CZN_RULESET" envDefault:"per-unit"`
	RulesScript     string `env:"CZN_RULES_SCRIPT"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be clamped.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("CZN_HTTP_ADDR must not be empty")
	}
	if c.RulesScript == "" {
		if _, ok := score.Lookup(c.RuleSet); !ok {
			return fmt.Errorf("CZN_RULESET %q is not a known rule set", c.RuleSet)
		}
	}
	return nil
}

// RunConfig returns the initial run configuration.
func (c Config) RunConfig() score.RunConfig {
	return score.RunConfig{Tier: c.DefaultTier}.Normalize()
}

// ReadRulesScript returns the contents of CZN_RULES_SCRIPT, or "" when unset.
func (c Config) ReadRulesScript() (string, error) {
	if c.RulesScript == "" {
		return "", nil
	}
	raw, err := os.ReadFile(c.RulesScript)
	if err != nil {
		return "", fmt.Errorf("read rules script: %w", err)
	}
	return string(raw), nil
}

// ResolveAPIToken prefers CZN_API_TOKEN and falls back to the OS keyring.
// An empty result disables token checks.
func (c Config) ResolveAPIToken(store *secrets.Store) (string, error) {
	if c.APIToken != "" {
		return c.APIToken, nil
	}
	if store == nil {
		return "", nil
	}
	tok, err := store.APIToken()
	if errors.Is(err, secrets.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return tok, nil
}

// Rules returns the initial rule set: the compiled CZN_RULES_SCRIPT when set,
// otherwise the registered rule set named by CZN_RULESET.
func (c Config) Rules() (score.RuleSet, error) {
	source, err := c.ReadRulesScript()
	if err != nil {
		return nil, err
	}
	if source != "" {
		rs, err := scripting.Compile(source)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", c.RulesScript, err)
		}
		return rs, nil
	}
	rs, ok := score.Lookup(c.RuleSet)
	if !ok {
		return nil, fmt.Errorf("CZN_RULESET %q is not a known rule set", c.RuleSet)
	}
	return rs, nil
}
