package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/post-scheduler/internal/config"
	"github.com/example/post-scheduler/internal/internaltypes"
	"github.com/example/post-scheduler/internal/logging"
	"github.com/example/post-scheduler/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	var dryRun bool
	c := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if dryRun {
				files, err := migrate.Files()
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(out, f)
				}
				return nil
			}

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return fmt.Errorf("%w: migrate needs POSTSCHED_STORE=postgres, got %q", internaltypes.ErrInvalidInput, cfg.Store)
			}
			logger := logging.Setup(cfg.Env)

			d, err := openPostgres(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			applied, err := migrate.Up(cmd.Context(), d, logger)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "up to date")
			}
			for _, f := range applied {
				fmt.Fprintf(out, "applied %s\n", f)
			}
			return nil
		},
	}
	c.Flags().BoolVar(&dryRun, "dry-run", false, "list embedded migrations without connecting")
	return c
}
