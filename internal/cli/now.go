package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/vercel-deploy/internal/deploy"
)

// NewNowCommand creates the "now" cobra command: a single deploy whose
// exit code becomes the process exit code.
func NewNowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Deploy once and exit with the Vercel CLI's exit code",
		Long: `Run "vercel --prod --yes --name <project>" once in the project directory.

No install check and no retry. The process exits with the Vercel CLI's
own exit code and prints nothing besides the CLI's output (127 if the
Vercel CLI is not installed, 2 if the project directory does not exist).

Examples:
  vercel-deploy now
  vercel-deploy now --dir ./site`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runNow(cmd.Context(), cmd)
		},
	}
}

func runNow(ctx context.Context, cmd *cobra.Command) error {
	s, err := loadSettings(currentFlags(cmd.Flags().Changed))
	if err != nil {
		return err
	}
	return runFlow(ctx, s, (*deploy.Invoker).Direct)
}
