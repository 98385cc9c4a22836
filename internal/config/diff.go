package config

import (
	"reflect"
	"sort"
	"strings"

	logx "ghrelay/pkg/logx"
)

// LiveSections are applied on hot reload; every other section needs a restart.
var LiveSections = map[string]bool{"logging": true}

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging (never includes tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	// GitHub (never log token)
	og, ng := oldCfg.GitHub, newCfg.GitHub
	if strings.TrimSpace(og.Account) != strings.TrimSpace(ng.Account) ||
		!reflect.DeepEqual(og.Repos, ng.Repos) ||
		strings.TrimSpace(og.APIBaseURL) != strings.TrimSpace(ng.APIBaseURL) ||
		og.PageSize != ng.PageSize || og.Concurrency != ng.Concurrency ||
		strings.TrimSpace(og.Timeout) != strings.TrimSpace(ng.Timeout) ||
		(og.Token != "") != (ng.Token != "") {
		changed = append(changed, "github")
		attrs = append(attrs,
			logx.String("github.account", strings.TrimSpace(ng.Account)),
			logx.Int("github.repo_count", len(ng.Repos)),
			logx.Bool("github.token_set", ng.Token != ""),
		)
	}

	// Telegram (never log token)
	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if !reflect.DeepEqual(ot.Destinations, nt.Destinations) ||
		strings.TrimSpace(ot.BlockDelay) != strings.TrimSpace(nt.BlockDelay) ||
		ot.RatePerSec != nt.RatePerSec || ot.MaxMessageLen != nt.MaxMessageLen ||
		ot.Token != nt.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.destination_count", len(nt.Destinations)),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
		)
	}

	if oldCfg.Poll != newCfg.Poll {
		changed = append(changed, "poll")
		attrs = append(attrs,
			logx.String("poll.schedule", strings.TrimSpace(newCfg.Poll.Schedule)),
			logx.Bool("poll.heartbeat", newCfg.Poll.Heartbeat),
		)
	}

	if oldCfg.Render != newCfg.Render {
		changed = append(changed, "render")
	}

	// Logging
	ol, nl := oldCfg.Logging, newCfg.Logging
	if ol != nl {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", nl.Level),
			logx.Bool("logging.console", nl.Console),
			logx.Bool("logging.file_enabled", nl.File.Enabled),
			logx.Bool("logging.telegram_enabled", nl.Telegram.Enabled),
		)
	}

	// Debug server (never log token)
	od, nd := oldCfg.Debug, newCfg.Debug
	od.Token, nd.Token = boolToken(od.Token), boolToken(nd.Token)
	if !reflect.DeepEqual(od, nd) {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", strings.TrimSpace(newCfg.Debug.Addr)),
		)
	}

	// Storage (path is not secret, but keep the summary compact)
	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired filters sections that cannot be applied live.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		if !LiveSections[s] {
			out = append(out, s)
		}
	}
	return out
}

func boolToken(tok string) string {
	if strings.TrimSpace(tok) != "" {
		return "set"
	}
	return ""
}
