package config

// Config is the on-disk configuration (JSON or YAML).
//
// Every section may be omitted; defaults are applied by the app layer and the
// environment overlay (see env.go) can supply the essentials on its own.
type Config struct {
	GitHub   GitHubConfig   `json:"github"`
	Telegram TelegramConfig `json:"telegram"`
	Poll     PollConfig     `json:"poll"`
	Render   RenderConfig   `json:"render"`
	Logging  LoggingConfig  `json:"logging"`
	Debug    DebugConfig    `json:"debug,omitempty"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

// GitHubConfig describes the monitored account and how to reach the API.
//
// If Repos is empty, every repository owned by Account is discovered once per
// poll cycle.
type GitHubConfig struct {
	Account    string   `json:"account"`
	Token      string   `json:"token,omitempty"` // never logged
	Repos      []string `json:"repos,omitempty"`
	APIBaseURL string   `json:"api_base_url,omitempty"` // default: https://api.github.com
	PageSize   int      `json:"page_size,omitempty"`    // default: 100
	// Concurrency bounds per-source feed fetches within one cycle (default 4).
	Concurrency int `json:"concurrency,omitempty"`
	// Timeout is the per-request HTTP timeout (Go duration string).
	Timeout string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token        string              `json:"token"` // never logged
	Destinations []DestinationConfig `json:"destinations"`
	// BlockDelay separates consecutive message blocks to one destination.
	BlockDelay string `json:"block_delay,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	// MaxMessageLen caps one message block (UTF-16 units). Telegram allows 4096.
	MaxMessageLen int `json:"max_message_len,omitempty"`
}

// DestinationConfig is one delivery target.
// An empty ChatID disables the destination without being an error.
type DestinationConfig struct {
	Name     string `json:"name"`
	ChatID   string `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// PollConfig controls cycle triggering.
//
// Schedule accepts an interval or a cron expression:
// "5h", "02:30", "interval:90m", "@every 1h", "cron:0 */6 * * *".
type PollConfig struct {
	Schedule string `json:"schedule,omitempty"` // default: 5h
	Timezone string `json:"timezone,omitempty"` // cron schedules only
	// Heartbeat sends a summary every cycle even when nothing is new.
	Heartbeat bool `json:"heartbeat,omitempty"`
}

type RenderConfig struct {
	Timezone       string `json:"timezone,omitempty"`
	TimeLayout     string `json:"time_layout,omitempty"`
	EscapeUserText bool   `json:"escape_user_text,omitempty"`
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
	ChatID     string `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// DebugConfig controls the optional debug HTTP server (pprof + /metrics).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof/"
	Token         string `json:"token,omitempty"`  // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Metrics       *bool  `json:"metrics,omitempty"` // default: true

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// StorageConfig controls the optional cycle journal.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/ghrelay" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
