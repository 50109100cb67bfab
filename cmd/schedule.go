package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/post-scheduler/internal/scheduler"
)

func newScheduleCmd() *cobra.Command {
	var (
		priority string
		date     string
		now      string
		asJSON   bool
	)

	c := &cobra.Command{
		Use:   "schedule",
		Short: "Reserve the next slot of a tier, or check an explicit date, and print the delay in seconds",
		Example: `  postsched schedule --priority P1
  postsched schedule --date 2024-01-06T16:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := scheduler.ParseRequest(priority, date)
			if err != nil {
				return err
			}
			at, err := parseNow(now)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.scheduler.Schedule(cmd.Context(), req, at)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !asJSON {
				fmt.Fprintln(out, d.Seconds)
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"seconds":  d.Seconds,
				"slot":     d.Slot.Format(time.RFC3339),
				"tier":     string(d.Tier),
				"explicit": d.Explicit,
			})
		},
	}

	c.Flags().StringVarP(&priority, "priority", "p", "", "tier to reserve (P1, P2 or P3)")
	c.Flags().StringVarP(&date, "date", "d", "", "explicit publish time (RFC 3339); nothing is reserved")
	c.Flags().StringVar(&now, "now", "", "override the current time (RFC 3339)")
	c.Flags().BoolVar(&asJSON, "json", false, "print the full decision as JSON")
	c.MarkFlagsMutuallyExclusive("priority", "date")
	c.MarkFlagsOneRequired("priority", "date")
	return c
}
