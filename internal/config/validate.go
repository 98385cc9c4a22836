package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks the fields every run needs and the syntax of duration fields.
// Schedule and timezone syntax is checked by the app layer, which owns parsing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if strings.TrimSpace(cfg.GitHub.Account) == "" {
		errs = append(errs, fmt.Errorf("github.account is required (or set %s)", EnvGitHubUsername))
	}
	for i, r := range cfg.GitHub.Repos {
		if !strings.Contains(strings.Trim(r, "/ "), "/") {
			errs = append(errs, fmt.Errorf("github.repos[%d]: %q must be owner/name", i, r))
		}
	}
	if cfg.GitHub.PageSize < 0 || cfg.GitHub.PageSize > 100 {
		errs = append(errs, fmt.Errorf("github.page_size must be within 0..100"))
	}
	if cfg.GitHub.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("github.concurrency must be >= 0"))
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, fmt.Errorf("telegram.token is required (or set %s)", EnvTelegramToken))
	}
	if cfg.Telegram.RatePerSec < 0 {
		errs = append(errs, fmt.Errorf("telegram.rate_per_sec must be >= 0"))
	}
	if cfg.Telegram.MaxMessageLen < 0 || cfg.Telegram.MaxMessageLen > 4096 {
		errs = append(errs, fmt.Errorf("telegram.max_message_len must be within 0..4096"))
	}
	seen := map[string]bool{}
	for i, d := range cfg.Telegram.Destinations {
		name := strings.ToLower(strings.TrimSpace(d.Name))
		if name == "" {
			errs = append(errs, fmt.Errorf("telegram.destinations[%d].name is required", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("telegram.destinations[%d]: duplicate name %q", i, d.Name))
		}
		seen[name] = true
	}

	durations := []struct{ path, raw string }{
		{"github.timeout", cfg.GitHub.Timeout},
		{"telegram.block_delay", cfg.Telegram.BlockDelay},
		{"debug.read_timeout", cfg.Debug.ReadTimeout},
		{"debug.write_timeout", cfg.Debug.WriteTimeout},
		{"debug.idle_timeout", cfg.Debug.IdleTimeout},
	}
	if cfg.Storage != nil {
		durations = append(durations, struct{ path, raw string }{"storage.busy_timeout", cfg.Storage.BusyTimeout})
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			errs = append(errs, err)
		}
	}

	for _, tz := range []struct{ path, raw string }{
		{"poll.timezone", cfg.Poll.Timezone},
		{"render.timezone", cfg.Render.Timezone},
	} {
		if v := strings.TrimSpace(tz.raw); v != "" {
			if _, err := time.LoadLocation(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid %q: %w", tz.path, v, err))
			}
		}
	}

	return errors.Join(errs...)
}
