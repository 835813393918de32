package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrConfiguration wraps every error returned by LoadConfig.
var ErrConfiguration = errors.New("configuration error")

// EnvPrefix is the prefix of environment variable overrides, e.g.
// KEYWATCH_TELEGRAM_TOKEN for telegram.token.
const EnvPrefix = "KEYWATCH"

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional when path is empty)
// 3. KEYWATCH_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file %q: %v", ErrConfiguration, path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

// setDefaults sets default values for optional configuration parameters
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.lifecycle_notices", true)
	v.SetDefault("telegram.rate_per_sec", DefaultTelegramRatePerSec)

	v.SetDefault("suppression.cooldown_minutes", DefaultCooldownMinutes)
	v.SetDefault("suppression.semantic_filter", false)
	v.SetDefault("suppression.similarity_threshold", DefaultSimilarityThreshold)

	v.SetDefault("dispatch.min_interval", DefaultMinInterval)
	v.SetDefault("dispatch.flood_backoff", DefaultFloodBackoff)
	v.SetDefault("dispatch.send_timeout", DefaultSendTimeout)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.embedding_model", DefaultEmbeddingModel)
	v.SetDefault("gemini.timeout", DefaultGeminiTimeout)
	v.SetDefault("gemini.max_retries", DefaultGeminiMaxRetries)
	v.SetDefault("gemini.retry_delay_seconds", DefaultGeminiRetryDelayS)

	v.SetDefault("scheduler.timezone", DefaultTimezone)
	for name, task := range DefaultTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	v.SetDefault("offer.messages.not_reply", DefaultOfferMessages.NotReply)
	v.SetDefault("offer.messages.no_author", DefaultOfferMessages.NoAuthor)
	v.SetDefault("offer.messages.empty_description", DefaultOfferMessages.EmptyDescription)
	v.SetDefault("offer.messages.send_failed", DefaultOfferMessages.SendFailed)
	v.SetDefault("offer.messages.sent", DefaultOfferMessages.Sent)

	v.SetDefault("commands.messages.reset_done", DefaultCommandMessages.ResetDone)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.path", DefaultDBPath)
	v.SetDefault("database.retention_days", DefaultRetentionDays)

	v.SetDefault("status.listen", "")
}
