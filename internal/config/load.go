package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variables read by Load.
const EnvPrefix = "TRIAGE"

// Load configuration from environment variables and optionally a config.yaml
// in the working directory. Environment variables take precedence over values
// from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given config file when path is non-empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound explicitly for Unmarshal to see them.
	for _, key := range []string{
		"database.url",
		"llm.default.api_key",
		"llm.deep.api_key",
		"llm.default.base_url",
		"llm.deep.base_url",
		"llm.default.prompt_template_path",
		"llm.deep.prompt_template_path",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and cross-field rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if !slices.Contains(cfg.Scheduler.UrgencyOrder, cfg.Scheduler.PriorityTier) {
		return fmt.Errorf("config validation failed: priority tier %q is not in urgency order %v",
			cfg.Scheduler.PriorityTier, cfg.Scheduler.UrgencyOrder)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_minutes", 5)

	v.SetDefault("llm.default.provider", "openai")
	v.SetDefault("llm.default.model", "gpt-4")
	v.SetDefault("llm.default.timeout_seconds", 30)
	v.SetDefault("llm.default.max_retries", 0)
	v.SetDefault("llm.default.retry_delay_seconds", 2)

	v.SetDefault("llm.deep.provider", "openai")
	v.SetDefault("llm.deep.model", "o3-mini")
	v.SetDefault("llm.deep.timeout_seconds", 30)
	v.SetDefault("llm.deep.max_retries", 0)
	v.SetDefault("llm.deep.retry_delay_seconds", 2)

	v.SetDefault("llm.trigger_words", []string{"analyze", "compare", "evaluate", "synthesize"})

	v.SetDefault("scheduler.max_batch_tasks", 10)
	v.SetDefault("scheduler.max_batch_tokens", 4000)
	v.SetDefault("scheduler.urgency_order", []string{"critical", "high", "medium", "low"})
	v.SetDefault("scheduler.priority_tier", "high")
	v.SetDefault("scheduler.estimator", "chars")
	v.SetDefault("scheduler.reminder_delay_hours", 24)
}
