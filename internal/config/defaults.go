package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultTelegramRatePerSec = 25 // Bot API allows ~30 messages per second overall

	DefaultCooldownMinutes     = 5
	DefaultSimilarityThreshold = 0.9

	DefaultMinInterval  = 60 * time.Second
	DefaultFloodBackoff = 30 * time.Second
	DefaultSendTimeout  = 15 * time.Second

	DefaultEmbeddingModel    = "gemini-embedding-001"
	DefaultGeminiTimeout     = 10 * time.Second
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelayS = 1

	DefaultTimezone = "UTC"

	DefaultDBPath        = "keywatch.db"
	DefaultRetentionDays = 30
)

// Scheduled task names. They double as keys of scheduler.tasks in config.yaml.
const (
	TaskCacheEviction      = "cache_eviction"
	TaskJournalMaintenance = "journal_maintenance"
)

// DefaultTasks is the task table used when config.yaml does not override it.
var DefaultTasks = map[string]TaskConfig{
	TaskCacheEviction:      {Enabled: true, Schedule: "0 0 * * *"},
	TaskJournalMaintenance: {Enabled: true, Schedule: "30 3 * * *"},
}

// DefaultOfferMessages are the acknowledgments of the offer command.
var DefaultOfferMessages = OfferMessages{
	NotReply:         "⚠️ Ответьте этой командой на уведомление.",
	NoAuthor:         "⚠️ Не удалось найти автора в исходном уведомлении.",
	EmptyDescription: "⚠️ Добавьте описание предложения после команды.",
	SendFailed:       "❌ Не удалось отправить предложение автору.",
	Sent:             "✅ Предложение отправлено.",
}

// DefaultCommandMessages are the replies of the bot commands.
var DefaultCommandMessages = CommandMessages{
	ResetDone: "✅ История сообщений и лимиты отправки сброшены.",
}
