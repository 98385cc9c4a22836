package app

import (
	"fmt"
	"strings"
	"time"

	"ghrelay/internal/config"
	"ghrelay/internal/github"
	"ghrelay/internal/observability/debug"
	"ghrelay/internal/relay"
	"ghrelay/internal/render"
	"ghrelay/internal/storage"
	kit "ghrelay/internal/transport"
	telegram "ghrelay/internal/transport/telegram/adapter"
	logx "ghrelay/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled: l.File.Enabled,
			Path:    l.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     strings.TrimSpace(l.Telegram.ChatID),
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func mapGitHubConfig(cfg *config.Config) (github.Config, error) {
	timeout, err := config.ParseDurationOrDefault("github.timeout", cfg.GitHub.Timeout, 30*time.Second)
	if err != nil {
		return github.Config{}, err
	}
	return github.Config{
		BaseURL:  cfg.GitHub.APIBaseURL,
		Token:    cfg.GitHub.Token,
		PageSize: cfg.GitHub.PageSize,
		Timeout:  timeout,
	}, nil
}

// defaultSendRate stays under Telegram's global limit of ~30 messages/s.
const defaultSendRate = 20

func mapTelegramConfig(cfg *config.Config) telegram.Config {
	rps := cfg.Telegram.RatePerSec
	if rps == 0 {
		rps = defaultSendRate
	}
	return telegram.Config{
		Token:      cfg.Telegram.Token,
		RatePerSec: float64(rps),
	}
}

// mapDestinations keeps entries with an empty chat id; the deliverer skips them.
func mapDestinations(cfg *config.Config) []kit.Destination {
	out := make([]kit.Destination, 0, len(cfg.Telegram.Destinations))
	for _, d := range cfg.Telegram.Destinations {
		out = append(out, kit.Destination{
			Name: strings.TrimSpace(d.Name),
			Target: kit.ChatTarget{
				ChatID:   strings.TrimSpace(d.ChatID),
				ThreadID: d.ThreadID,
			},
		})
	}
	return out
}

func mapBlockDelay(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("telegram.block_delay", cfg.Telegram.BlockDelay, relay.DefaultBlockDelay)
}

func loadLocation(path, name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid %q: %w", path, name, err)
	}
	return loc, nil
}

func mapSchedule(cfg *config.Config) (*relay.Schedule, error) {
	loc, err := loadLocation("poll.timezone", cfg.Poll.Timezone)
	if err != nil {
		return nil, err
	}
	s, err := relay.NewSchedule(cfg.Poll.Schedule, loc)
	if err != nil {
		return nil, fmt.Errorf("poll.schedule: %w", err)
	}
	return s, nil
}

func mapFormatter(cfg *config.Config) (*render.Formatter, error) {
	loc, err := loadLocation("render.timezone", cfg.Render.Timezone)
	if err != nil {
		return nil, err
	}
	return render.NewFormatter(
		render.WithLocation(loc),
		render.WithTimeLayout(cfg.Render.TimeLayout),
		render.WithEscapedUserText(cfg.Render.EscapeUserText),
	), nil
}

func mapDebugConfig(cfg *config.Config) (debug.Config, error) {
	d := cfg.Debug
	read, err := config.ParseDurationOrDefault("debug.read_timeout", d.ReadTimeout, 5*time.Second)
	if err != nil {
		return debug.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("debug.write_timeout", d.WriteTimeout, 60*time.Second)
	if err != nil {
		return debug.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("debug.idle_timeout", d.IdleTimeout, 60*time.Second)
	if err != nil {
		return debug.Config{}, err
	}
	metrics := true
	if d.Metrics != nil {
		metrics = *d.Metrics
	}
	return debug.Config{
		Enabled:       d.Enabled,
		Addr:          d.Addr,
		Prefix:        d.Prefix,
		Token:         d.Token,
		AllowInsecure: d.AllowInsecure,
		Metrics:       metrics,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	if storage.Disabled(sc.Driver) {
		return storage.Config{}, false, nil
	}
	if !storage.Known(sc.Driver) {
		return storage.Config{}, false, fmt.Errorf("storage.driver: unknown %q (want none, %s)", sc.Driver, strings.Join(storage.Drivers(), ", "))
	}
	out := storage.Config{
		Driver: strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:   strings.TrimSpace(sc.Path),
	}
	if out.Driver == "file" {
		return out, true, nil
	}
	if out.Path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", out.Driver)
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	out.BusyTimeout = busy
	return out, true, nil
}

// CheckConfig runs every mapping the app performs at startup, so a config
// accepted here will not fail in New.
func CheckConfig(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if _, err := mapGitHubConfig(cfg); err != nil {
		return err
	}
	if _, err := mapBlockDelay(cfg); err != nil {
		return err
	}
	if _, err := mapSchedule(cfg); err != nil {
		return err
	}
	if _, err := mapFormatter(cfg); err != nil {
		return err
	}
	if _, err := mapDebugConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}
