package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ghrelay/internal/app"
)

func newOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single cycle (first-run semantics) and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgm, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cfgm)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rep, err := a.RunOnce(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"fetched=%d new=%d blocks=%d sent=%d failed=%d failed_repos=%d took=%s\n",
				rep.Fetched, rep.New, rep.Blocks, rep.Sent, rep.Failed, len(rep.FailedRepos), rep.Duration)
			return err
		},
	}
}
