package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL                    string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=1"`
}

// LLMConfig contains the two interchangeable backends and the routing rule.
type LLMConfig struct {
	// Default answers ordinary input and produces summaries, action prompts and help.
	Default BackendConfig `mapstructure:"default" validate:"required"`

	// Deep is selected for input that needs deep thinking.
	Deep BackendConfig `mapstructure:"deep" validate:"required"`

	// TriggerWords select the deep backend when any occurs in the input
	// (case-insensitive substring match).
	TriggerWords []string `mapstructure:"trigger_words" validate:"required,min=1,dive,required"`
}

// BackendConfig configures one text-generation backend. An empty APIKey is
// allowed and leaves the backend unavailable.
type BackendConfig struct {
	Provider           string `mapstructure:"provider" validate:"required,oneof=gemini openai"`
	Model              string `mapstructure:"model" validate:"required"`
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url" validate:"omitempty,url"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds" validate:"gte=1"`
	MaxRetries         int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds  int    `mapstructure:"retry_delay_seconds" validate:"gte=1"`
	PromptTemplatePath string `mapstructure:"prompt_template_path"`
}

// SchedulerConfig controls backlog loading, batching and reminders.
type SchedulerConfig struct {
	// MaxBatchTasks is the maximum number of tasks in one summary batch.
	MaxBatchTasks int `mapstructure:"max_batch_tasks" validate:"required,gte=1"`

	// MaxBatchTokens is the approximate token budget of one summary batch.
	MaxBatchTokens int `mapstructure:"max_batch_tokens" validate:"required,gte=1"`

	// UrgencyOrder lists urgency tiers from highest to lowest priority.
	UrgencyOrder []string `mapstructure:"urgency_order" validate:"required,min=1,dive,required"`

	// PriorityTier is the tier whose half-completed tasks are surfaced twice.
	PriorityTier string `mapstructure:"priority_tier" validate:"required"`

	// Estimator selects the batch size proxy.
	Estimator string `mapstructure:"estimator" validate:"required,oneof=chars tiktoken"`

	// ReminderDelayHours is how far ahead a "remind" decision schedules the alert.
	ReminderDelayHours int `mapstructure:"reminder_delay_hours" validate:"required,gte=1"`
}
