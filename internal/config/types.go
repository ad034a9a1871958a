package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Habits    HabitsConfig    `json:"habits"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// GroupLog is an optional chat id (as string) that receives warning+ logs.
	GroupLog string `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
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

// SchedulerConfig controls the reminder trigger service.
//
// Timezone is the single process-wide IANA zone used for every fire-time
// computation; reminder_time values stored per habit are interpreted in it.
type SchedulerConfig struct {
	Workers int `json:"workers"`
	// DefaultTimeout is a Go duration string (e.g. "10s", "1m").
	// Use "0s" to disable a global default timeout.
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

// StorageConfig controls the habit store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./habits.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// HabitsConfig controls habit-domain knobs.
type HabitsConfig struct {
	// OverviewTime is the daily overview broadcast time, "HH:MM" in the
	// scheduler timezone. Default: "08:00".
	OverviewTime string `json:"overview_time,omitempty"`
	// SendRatePerSec paces outbound reminder/overview sends. Default: 3.
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}
