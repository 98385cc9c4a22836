package main

import (
	"github.com/spf13/cobra"

	"ghrelay/internal/config"
)

type rootOptions struct {
	configPath string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "ghrelay",
		Short:         "Relay GitHub account activity to Telegram",
		Long:          "ghrelay polls the public GitHub activity of one account (and its repositories) and posts Markdown summaries of new events to Telegram chats.",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, opts)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "./config.yaml", "path to config file (JSON or YAML); may be absent when env vars carry the settings")
	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config (missing files are ignored)")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newOnceCmd(opts),
		newCheckConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig loads dotenv files, then the config file with the env overlay.
func (o *rootOptions) loadConfig() (*config.Manager, *config.Config, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return nil, nil, err
	}
	m := config.NewManager(o.configPath)
	cfg, err := m.Load()
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}
