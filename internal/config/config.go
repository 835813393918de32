// Package config provides configuration loading, validation, and management
// for the keywatch bot. It reads a YAML file, applies defaults, lets
// KEYWATCH_* environment variables override values, and validates the result.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/go-telegram/bot/models"
)

// Config defines the application configuration parameters for all components.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Groups      []GroupConfig     `mapstructure:"groups"      validate:"required,min=1,dive"`
	Suppression SuppressionConfig `mapstructure:"suppression"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Offer       OfferConfig       `mapstructure:"offer"`
	Commands    CommandsConfig    `mapstructure:"commands"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Status      StatusConfig      `mapstructure:"status"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds Bot API credentials and transport settings.
type TelegramConfig struct {
	Token            string `mapstructure:"token"             validate:"required"`
	LifecycleNotices bool   `mapstructure:"lifecycle_notices"`
	RatePerSec       int    `mapstructure:"rate_per_sec"      validate:"gte=1"`

	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// GroupConfig is one independent rule set. Loaded once, read-only afterwards.
type GroupConfig struct {
	Name             string   `mapstructure:"name"              validate:"required"`
	Chats            []int64  `mapstructure:"chats"             validate:"required,min=1"`
	Keywords         []string `mapstructure:"keywords"          validate:"required_without=IncludeQuestions"`
	ExcludedKeywords []string `mapstructure:"excluded_keywords"`
	ExcludedSenders  []int64  `mapstructure:"excluded_senders"`
	Recipient        int64    `mapstructure:"recipient"         validate:"required"`
	IncludeQuestions bool     `mapstructure:"include_questions"`
}

// SuppressionConfig controls per-sender duplicate suppression.
type SuppressionConfig struct {
	CooldownMinutes     int     `mapstructure:"cooldown_minutes"     validate:"gte=0"`
	SemanticFilter      bool    `mapstructure:"semantic_filter"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" validate:"gt=0,lte=1"`
}

// Cooldown returns the cooldown window as a duration.
func (c SuppressionConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// DispatchConfig controls outbound throttling.
type DispatchConfig struct {
	MinInterval  time.Duration `mapstructure:"min_interval"  validate:"gte=0"`
	FloodBackoff time.Duration `mapstructure:"flood_backoff" validate:"gt=0"`
	SendTimeout  time.Duration `mapstructure:"send_timeout"  validate:"gt=0"`
}

// GeminiConfig configures the embedding provider used by the semantic filter.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	EmbeddingModel    string        `mapstructure:"embedding_model"     validate:"required"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"gt=0"`
	MaxRetries        int           `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// SchedulerConfig holds the time zone for daily boundaries and the task table.
type SchedulerConfig struct {
	Timezone string                `mapstructure:"timezone" validate:"required,timezone"`
	Tasks    map[string]TaskConfig `mapstructure:"tasks"    validate:"dive"`
}

// TaskConfig enables a registered task and gives its cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// OfferConfig configures the reply-triggered offer command.
type OfferConfig struct {
	Phrases  []OfferPhrase `mapstructure:"phrases"  validate:"dive"`
	Messages OfferMessages `mapstructure:"messages"`
}

// OfferPhrase maps a command phrase to the canned caption and file sent to
// the author. "{offer}" in Template is replaced with the command's description.
type OfferPhrase struct {
	Phrase   string `mapstructure:"phrase"   validate:"required"`
	Template string `mapstructure:"template" validate:"required"`
	File     string `mapstructure:"file"     validate:"required"`
}

// OfferMessages are the acknowledgments sent back to the commanding user.
type OfferMessages struct {
	NotReply         string `mapstructure:"not_reply"         validate:"required"`
	NoAuthor         string `mapstructure:"no_author"         validate:"required"`
	EmptyDescription string `mapstructure:"empty_description" validate:"required"`
	SendFailed       string `mapstructure:"send_failed"       validate:"required"`
	Sent             string `mapstructure:"sent"              validate:"required"`
}

// CommandsConfig holds the replies of the bot commands.
type CommandsConfig struct {
	Messages CommandMessages `mapstructure:"messages"`
}

// CommandMessages are the replies sent by recipient-only commands.
type CommandMessages struct {
	ResetDone string `mapstructure:"reset_done" validate:"required"`
}

// DatabaseConfig configures the optional alert journal.
type DatabaseConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"           validate:"required_if=Enabled true"`
	RetentionDays int    `mapstructure:"retention_days" validate:"gte=0"`
}

// StatusConfig configures the optional HTTP status endpoint.
type StatusConfig struct {
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// Location returns the scheduler time zone. It only fails for configs that
// bypassed validation.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}
