package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestParseYAMLWithEnvOverlay(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "ghrelay.yaml", `
github:
  account: octo-org
  repos: [octo-org/a]
telegram:
  token: file-token
  destinations:
    - name: chat
      chat_id: "111"
poll:
  schedule: 2h
`)
	m := NewManager(path)
	m.SetLookupEnv(envMap(map[string]string{
		EnvGitHubRepos:     " octo-org/a , octo-org/b ,",
		EnvTelegramGroupID: "-100222",
		EnvTelegramToken:   "",
	}))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GitHub.Account != "octo-org" {
		t.Fatalf("account = %q", cfg.GitHub.Account)
	}
	if got := strings.Join(cfg.GitHub.Repos, ","); got != "octo-org/a,octo-org/b" {
		t.Fatalf("repos = %q", got)
	}
	if cfg.Telegram.Token != "file-token" {
		t.Fatalf("empty env must not override token, got %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.Destinations) != 2 || cfg.Telegram.Destinations[1].Name != DestinationGroup {
		t.Fatalf("destinations = %+v", cfg.Telegram.Destinations)
	}
	if cfg.Poll.Schedule != "2h" {
		t.Fatalf("schedule = %q", cfg.Poll.Schedule)
	}
	if m.Get() != cfg {
		t.Fatal("Load must commit the parsed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "ghrelay.json", `{"github":{"account":"x","nope":1}}`)
	m := NewManager(path)
	m.SetLookupEnv(envMap(nil))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "ghrelay.json", `{"github":{"account":"x"}}{"poll":{}}`)
	m := NewManager(path)
	m.SetLookupEnv(envMap(nil))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestParseMissingFileUsesEnvironment(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	m.SetLookupEnv(envMap(map[string]string{
		EnvGitHubUsername: "openlabsdevs",
		EnvTelegramToken:  "123:abc",
		EnvTelegramChatID: "42",
		EnvPollInterval:   "5h",
		EnvHeartbeat:      "true",
	}))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.GitHub.Account != "openlabsdevs" || cfg.Telegram.Token != "123:abc" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Telegram.Destinations) != 1 || cfg.Telegram.Destinations[0].ChatID != "42" {
		t.Fatalf("destinations = %+v", cfg.Telegram.Destinations)
	}
	if !cfg.Poll.Heartbeat {
		t.Fatal("heartbeat should be enabled from env")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "missing account", mutate: func(c *Config) { c.GitHub.Account = "" }, wantErr: "github.account"},
		{name: "bad repo", mutate: func(c *Config) { c.GitHub.Repos = []string{"norepo"} }, wantErr: "owner/name"},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = " " }, wantErr: "telegram.token"},
		{name: "bad delay", mutate: func(c *Config) { c.Telegram.BlockDelay = "soon" }, wantErr: "telegram.block_delay"},
		{name: "negative delay", mutate: func(c *Config) { c.Telegram.BlockDelay = "-1s" }, wantErr: ">= 0"},
		{name: "dup destination", mutate: func(c *Config) {
			c.Telegram.Destinations = []DestinationConfig{{Name: "chat"}, {Name: "Chat"}}
		}, wantErr: "duplicate"},
		{name: "bad timezone", mutate: func(c *Config) { c.Render.Timezone = "Mars/Olympus" }, wantErr: "render.timezone"},
		{name: "page size", mutate: func(c *Config) { c.GitHub.PageSize = 101 }, wantErr: "page_size"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				GitHub:   GitHubConfig{Account: "octo"},
				Telegram: TelegramConfig{Token: "t"},
			}
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{GitHub: GitHubConfig{Account: "a", Token: "x"}, Logging: LoggingConfig{Level: "INFO"}}
	newCfg := &Config{GitHub: GitHubConfig{Account: "a", Token: "y"}, Logging: LoggingConfig{Level: "DEBUG"}}

	sections, _ := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(sections, ",") != "logging" {
		t.Fatalf("sections = %v (a rotated token must not show up)", sections)
	}
	if rr := RestartRequired(sections); len(rr) != 0 {
		t.Fatalf("logging is live, got restart-required %v", rr)
	}

	newCfg.Poll.Schedule = "1h"
	sections, _ = SummarizeConfigChange(oldCfg, newCfg)
	if rr := RestartRequired(sections); strings.Join(rr, ",") != "poll" {
		t.Fatalf("restart required = %v", rr)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 3*time.Second)
	if err != nil || d != 3*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", " 250ms ", time.Second)
	if err != nil || d != 250*time.Millisecond {
		t.Fatalf("got %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "45", time.Second)
	if err != nil || d != 45*time.Second {
		t.Fatalf("bare integer: got %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "0s", time.Minute)
	if err != nil || d != time.Minute {
		t.Fatalf("zero falls back: got %v, %v", d, err)
	}
	for _, bad := range []string{"abc", "-5s", "-3"} {
		if _, err := ParseDurationOrDefault("x", bad, time.Second); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestParseYAMLAnchorsAndMergeKeys(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "ghrelay.yml", `
github:
  account: octo
telegram:
  token: t
  destinations:
    - &chat
      name: chat
      chat_id: "111"
      thread_id: 7
    - <<: *chat
      name: group
      chat_id: "-100"
`)
	m := NewManager(path)
	m.SetLookupEnv(envMap(nil))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ds := cfg.Telegram.Destinations
	if len(ds) != 2 {
		t.Fatalf("destinations = %+v", ds)
	}
	if ds[1].Name != "group" || ds[1].ChatID != "-100" || ds[1].ThreadID != 7 {
		t.Fatalf("merged destination = %+v", ds[1])
	}
}

func TestParseYAMLRejectsDuplicateKeys(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "ghrelay.yaml", "github:\n  account: a\n  account: b\n")
	m := NewManager(path)
	m.SetLookupEnv(envMap(nil))
	_, err := m.Parse()
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("want duplicate key error on line 3, got %v", err)
	}
}

func TestWatchPublishesChangedFile(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "ghrelay.json", `{"github":{"account":"a"}}`)
	m := NewManager(path)
	m.SetLookupEnv(envMap(nil))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	updates := m.Subscribe(1)
	defer m.Unsubscribe(updates)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-updates:
			if cfg.GitHub.Account != "b" {
				t.Fatalf("account = %q", cfg.GitHub.Account)
			}
			if m.Get() != cfg {
				t.Fatal("published config must be committed")
			}
			return
		case <-tick.C:
			// the watcher may not be registered yet; keep rewriting
			if err := os.WriteFile(path, []byte(`{"github":{"account":"b"}}`), 0o600); err != nil {
				t.Fatalf("rewrite: %v", err)
			}
		case <-deadline:
			t.Fatal("no config published after file change")
		}
	}
}
