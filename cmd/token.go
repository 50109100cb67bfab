package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/post-scheduler/internal/auth"
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Generate an API bearer token and its POSTSCHED_API_TOKEN_HASH",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := make([]byte, 32)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			token := base64.RawURLEncoding.EncodeToString(raw)
			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# bearer token, keep it secret\n%s\n", token)
			fmt.Fprintf(out, "export POSTSCHED_API_TOKEN_HASH='%s'\n", hash)
			return nil
		},
	}
}
