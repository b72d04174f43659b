package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN" validate:"required"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// APIURL overrides the Bot API base url; empty -> api.telegram.org
	APIURL string `yaml:"api_url" envconfig:"TELEGRAM_API_URL" validate:"omitempty,url"`
	// RestartCommand is the reserved token that resets a chat profile.
	RestartCommand string `yaml:"restart_command" envconfig:"TELEGRAM_RESTART_COMMAND"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies the inbound HTTP endpoint.
type WebhookConfig struct {
	URL         string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen      string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	// Port defaults to 8080 in webhook mode; in longpoll mode 0 disables the HTTP server.
	Port        int    `yaml:"port" envconfig:"PORT"`
	Path        string `yaml:"path" envconfig:"WEBHOOK_PATH"`
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// OpenAIConfig configures reply generation.
type OpenAIConfig struct {
	APIKey      string        `yaml:"api_key" envconfig:"OPENAI_API_KEY" validate:"required"`
	Model       string        `yaml:"model" envconfig:"OPENAI_MODEL"`
	BaseURL     string        `yaml:"base_url" envconfig:"OPENAI_BASE_URL" validate:"omitempty,url"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"OPENAI_TIMEOUT" validate:"min=0,max=10m"`
	Instruction string        `yaml:"instruction" envconfig:"OPENAI_INSTRUCTION"`

	// Temperature and HistoryLimit are nil when unset; an explicit 0 is kept.
	// A HistoryLimit of 0 disables conversation memory.
	Temperature  *float32 `yaml:"temperature" envconfig:"OPENAI_TEMPERATURE" validate:"omitempty,min=0,max=2"`
	HistoryLimit *int     `yaml:"history_limit" envconfig:"OPENAI_HISTORY_LIMIT" validate:"omitempty,min=0,max=100"`
}

// SamplingTemperature returns Temperature or DefaultTemperature when unset.
func (c OpenAIConfig) SamplingTemperature() float32 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// MemoryTurns returns HistoryLimit or DefaultHistoryLimit when unset.
func (c OpenAIConfig) MemoryTurns() int {
	if c.HistoryLimit == nil {
		return DefaultHistoryLimit
	}
	return *c.HistoryLimit
}

// MessagesConfig holds user-facing texts.
type MessagesConfig struct {
	Welcome        string `yaml:"welcome"`
	AskAge         string `yaml:"ask_age"`
	AskCountry     string `yaml:"ask_country"`
	AskCitizenship string `yaml:"ask_citizenship"`
	Fallback       string `yaml:"fallback"`
	NotAuthorized  string `yaml:"not_authorized"`
}

// StorageConfig selects the profile store backend.
type StorageConfig struct {
	Driver   string         `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds database connection settings for the SQL stores.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// DedupeConfig bounds the processed-update set.
type DedupeConfig struct {
	Capacity int `yaml:"capacity" envconfig:"DEDUPE_CAPACITY" validate:"min=0"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// MaxLongPollTimeoutSeconds keeps getUpdates below the Telegram HTTP client timeout.
const MaxLongPollTimeoutSeconds = 25

// MetricsPath is where the Prometheus exposition is served.
const MetricsPath = "/metrics"

const (
	// StorageMemory keeps profiles in process memory.
	StorageMemory = "memory"
	// StoragePostgres keeps profiles in PostgreSQL.
	StoragePostgres = "postgres"
	// StorageSQLite keeps profiles in a SQLite file.
	StorageSQLite = "sqlite"
)

// RateLimitConfig holds settings for per-chat rate limiting. Zero interval disables it.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS" validate:"min=0"`
	// ExcludeCommands lists commands that bypass the limit, e.g. "/start".
	ExcludeCommands []string `yaml:"exclude_commands" envconfig:"RATE_LIMIT_EXCLUDE_COMMANDS"`
}

// Config aggregates the bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Messages  MessagesConfig  `yaml:"messages"`
	Storage   StorageConfig   `yaml:"storage"`
	Dedupe    DedupeConfig    `yaml:"dedupe"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from an optional YAML file and environment variables.
// An empty path or a missing file leaves the environment as the only source.
func Load(path string) (*Config, error) {
	var cfg Config

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and canonicalises enumerations.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s", describe(verrs[0]))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeWebhook
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
		if !strings.HasPrefix(cfg.Webhook.Path, "/") {
			return fmt.Errorf("webhook.path must start with '/'")
		}
		if cfg.Webhook.Path == MetricsPath {
			return fmt.Errorf("webhook.path must not be %s", MetricsPath)
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 || cfg.Telegram.LongPollTimeoutSeconds > MaxLongPollTimeoutSeconds {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be within 0..%d", MaxLongPollTimeoutSeconds)
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch driver {
	case "", StorageMemory:
		driver = StorageMemory
	case StoragePostgres:
		if strings.TrimSpace(cfg.Storage.Database.Host) == "" || strings.TrimSpace(cfg.Storage.Database.Name) == "" {
			return fmt.Errorf("storage.database.host and storage.database.name are required for postgres")
		}
	case StorageSQLite:
		if strings.TrimSpace(cfg.Storage.Database.Path) == "" {
			return fmt.Errorf("storage.database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: memory, postgres, sqlite", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = driver

	for i, v := range cfg.RateLimit.ExcludeCommands {
		cmd := strings.ToLower(strings.TrimSpace(v))
		if cmd == "" {
			continue
		}
		if !strings.HasPrefix(cmd, "/") {
			return fmt.Errorf("invalid rate_limit.exclude_commands value %q; commands start with '/'", v)
		}
		cfg.RateLimit.ExcludeCommands[i] = cmd
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "url":
		return field + " must be a valid url"
	default:
		return fmt.Sprintf("%s failed %q check (value %v)", field, fe.Tag(), fe.Value())
	}
}
