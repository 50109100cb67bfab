package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/post-scheduler/internal/web"
)

func newServerCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the scheduling API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			if a.cfg.APITokenHash == "" {
				a.logger.Warn().Msg("POSTSCHED_API_TOKEN_HASH is empty: the API is unauthenticated")
			}

			ws := &web.Server{
				Scheduler: a.scheduler,
				Logger:    a.logger.With().Str("component", "web").Logger(),
				Gatherer:  a.registry,
				TokenHash: a.cfg.APITokenHash,
			}
			return web.Start(ctx, addr, ws.Routes(), a.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "listen", "", "listen address (defaults to POSTSCHED_LISTEN_ADDR)")
	return cmd
}
