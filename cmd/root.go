package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/post-scheduler/internal/internaltypes"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "postsched",
		Short:         "Assign posts to priority-tiered weekly hour slots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newSlotsCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newServerCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, internaltypes.ErrInvalidInput):
		return 2
	case errors.Is(err, internaltypes.ErrStoreUnavailable), errors.Is(err, internaltypes.ErrLockBusy):
		return 3
	default:
		return 1
	}
}
