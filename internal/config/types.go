package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Schedule ScheduleConfig `json:"schedule"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Refresh  *RefreshConfig `json:"refresh,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AdminChat receives bug reports and forwarded log lines.
	AdminChat int64 `json:"admin_chat,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// Timezone resolves "today"/"tomorrow" for users (IANA name).
	// Defaults to Asia/Irkutsk, the campus timezone.
	Timezone string `json:"timezone,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ScheduleConfig controls the schedule portal client.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "2m").
//
// Defaults (when fields are omitted/zero):
//   - base_url: "https://www.istu.edu/schedule/"
//   - timeout: "20s"
//   - retries: 3
//   - retry_base: "1s"
//   - retry_max_delay: "10s"
//   - cache_ttl: "2m"
//   - cache_capacity: 256
//   - raw_cache_ttl: "30s" (use "0s" to disable the raw-response cache)
type ScheduleConfig struct {
	BaseURL       string `json:"base_url,omitempty"`
	Timeout       string `json:"timeout,omitempty"`
	Retries       int    `json:"retries,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	CacheTTL      string `json:"cache_ttl,omitempty"`
	CacheCapacity int    `json:"cache_capacity,omitempty"`
	RawCacheTTL   string `json:"raw_cache_ttl,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./istubot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// RefreshConfig controls the background catalog refresh job.
//
// Spec is a cron expression (robfig/cron, descriptors allowed,
// e.g. "@every 30m" or "*/30 * * * *").
type RefreshConfig struct {
	Enabled bool   `json:"enabled"`
	Spec    string `json:"spec,omitempty"`
}
