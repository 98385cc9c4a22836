package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ghrelay/internal/app"
	"ghrelay/internal/config"
	"ghrelay/internal/relay"
)

func newCheckConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the config, then print a summary without secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := app.CheckConfig(cfg); err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), cfg)
		},
	}
}

func printSummary(w io.Writer, cfg *config.Config) error {
	repos := "all (discovered each cycle)"
	if len(cfg.GitHub.Repos) > 0 {
		repos = strings.Join(cfg.GitHub.Repos, ", ")
	}
	schedule := strings.TrimSpace(cfg.Poll.Schedule)
	if schedule == "" {
		schedule = relay.DefaultSchedule
	}
	storage := "off"
	if cfg.Storage != nil && strings.TrimSpace(cfg.Storage.Driver) != "" {
		storage = cfg.Storage.Driver
	}

	var b strings.Builder
	fmt.Fprintf(&b, "account:      %s\n", cfg.GitHub.Account)
	fmt.Fprintf(&b, "github token: %s\n", setOrNot(cfg.GitHub.Token))
	fmt.Fprintf(&b, "repos:        %s\n", repos)
	fmt.Fprintf(&b, "schedule:     %s\n", schedule)
	fmt.Fprintf(&b, "heartbeat:    %t\n", cfg.Poll.Heartbeat)
	fmt.Fprintf(&b, "destinations:\n")
	if len(cfg.Telegram.Destinations) == 0 {
		fmt.Fprintf(&b, "  (none)\n")
	}
	for _, d := range cfg.Telegram.Destinations {
		chat := strings.TrimSpace(d.ChatID)
		if chat == "" {
			chat = "(disabled)"
		} else if d.ThreadID != 0 {
			chat = fmt.Sprintf("%s thread %d", chat, d.ThreadID)
		}
		fmt.Fprintf(&b, "  %-10s %s\n", d.Name, chat)
	}
	fmt.Fprintf(&b, "debug server: %t\n", cfg.Debug.Enabled)
	fmt.Fprintf(&b, "journal:      %s\n", storage)
	_, err := io.WriteString(w, b.String())
	return err
}

func setOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}
