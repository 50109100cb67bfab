package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/post-scheduler/internal/calendar"
	"github.com/example/post-scheduler/internal/internaltypes"
)

func newSlotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Inspect and maintain reserved slots",
	}
	cmd.AddCommand(newSlotsListCmd())
	cmd.AddCommand(newSlotsNextCmd())
	cmd.AddCommand(newSlotsPruneCmd())
	return cmd
}

func newSlotsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reserved slots per tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			taken, err := a.scheduler.Taken(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIER\tSLOT\tWEEKDAY")
			for _, tier := range calendar.Tiers {
				for _, t := range taken[tier] {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", tier, t.Format(time.RFC3339), t.Weekday())
				}
			}
			return tw.Flush()
		},
	}
}

func newSlotsNextCmd() *cobra.Command {
	var now string
	c := &cobra.Command{
		Use:   "next <tier>",
		Short: "Show the slot the next reservation of a tier would get, without reserving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := calendar.ParseTier(args[0])
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

			slot, err := a.scheduler.Preview(cmd.Context(), tier, at)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (in %s)\n", tier, slot.Format(time.RFC3339), slot.Sub(at).Truncate(time.Second))
			return nil
		},
	}
	c.Flags().StringVar(&now, "now", "", "override the current time (RFC 3339)")
	return c
}

func newSlotsPruneCmd() *cobra.Command {
	var before string
	c := &cobra.Command{
		Use:   "prune",
		Short: "Forget reservations at or before a cutoff, keeping each tier's latest slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cutoff := time.Now().UTC()
			if before != "" {
				t, err := time.Parse(time.RFC3339, before)
				if err != nil {
					return fmt.Errorf("%w: --before %q: %v", internaltypes.ErrInvalidInput, before, err)
				}
				cutoff = t.UTC()
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.scheduler.Prune(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d slot(s) at or before %s\n", removed, cutoff.Format(time.RFC3339))
			return nil
		},
	}
	c.Flags().StringVar(&before, "before", "", "cutoff (RFC 3339); defaults to now")
	return c
}
