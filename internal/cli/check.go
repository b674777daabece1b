package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/vercel-deploy/internal/deploy"
)

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the Vercel CLI is installed, installing it if missing",
		Long: `Run "vercel --version" in the project directory and install the Vercel
CLI with "npm install -g vercel" when it is not found. Nothing is deployed.

Useful to prepare a CI image or a docker runtime container ahead of a
deploy.

Examples:
  vercel-deploy check
  vercel-deploy check --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd)
		},
	}
}

func runCheck(ctx context.Context, cmd *cobra.Command) error {
	s, err := loadSettings(currentFlags(cmd.Flags().Changed))
	if err != nil {
		return err
	}
	return runFlow(ctx, s, (*deploy.Invoker).EnsureTool)
}
