package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables understood by the overlay. The first group matches
// the variable names operators already use for this bot.
const (
	EnvGitHubUsername  = "GITHUB_USERNAME"
	EnvGitHubToken     = "GITHUB_TOKEN"
	EnvGitHubRepos     = "GITHUB_REPOS"
	EnvTelegramToken   = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID  = "TELEGRAM_CHAT_ID"
	EnvTelegramGroupID = "TELEGRAM_GROUP_ID"
	EnvPollInterval    = "POLL_INTERVAL"

	EnvSchedule  = "GHRELAY_SCHEDULE"
	EnvLogLevel  = "LOG_LEVEL"
	EnvHeartbeat = "GHRELAY_HEARTBEAT"
)

// Names of the destinations created from TELEGRAM_CHAT_ID / TELEGRAM_GROUP_ID.
const (
	DestinationChat  = "chat"
	DestinationGroup = "group"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg using lookup
// (os.LookupEnv when nil). Non-empty variables override file values.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if cfg == nil {
		return
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvGitHubUsername); ok {
		cfg.GitHub.Account = v
	}
	if v, ok := get(EnvGitHubToken); ok {
		cfg.GitHub.Token = v
	}
	if v, ok := get(EnvGitHubRepos); ok {
		cfg.GitHub.Repos = SplitList(v)
	}
	if v, ok := get(EnvTelegramToken); ok {
		cfg.Telegram.Token = v
	}
	if v, ok := get(EnvTelegramChatID); ok {
		setDestination(cfg, DestinationChat, v)
	}
	if v, ok := get(EnvTelegramGroupID); ok {
		setDestination(cfg, DestinationGroup, v)
	}
	if v, ok := get(EnvPollInterval); ok {
		cfg.Poll.Schedule = v
	}
	if v, ok := get(EnvSchedule); ok {
		cfg.Poll.Schedule = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := get(EnvHeartbeat); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Poll.Heartbeat = b
		}
	}
}

func setDestination(cfg *Config, name, chatID string) {
	for i := range cfg.Telegram.Destinations {
		if strings.EqualFold(cfg.Telegram.Destinations[i].Name, name) {
			cfg.Telegram.Destinations[i].ChatID = chatID
			return
		}
	}
	cfg.Telegram.Destinations = append(cfg.Telegram.Destinations, DestinationConfig{Name: name, ChatID: chatID})
}

// SplitList splits a comma separated list, trimming blanks.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
