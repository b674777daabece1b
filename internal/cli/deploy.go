package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/vercel-deploy/internal/deploy"
)

// deployFlags holds the flag values for the deploy command.
type deployFlags struct {
	// noFallback disables the unnamed retry after a failed deploy.
	noFallback bool
}

// NewDeployCommand creates the "deploy" cobra command.
func NewDeployCommand() *cobra.Command {
	flags := &deployFlags{}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Check the Vercel CLI, then deploy to production",
		Long: `Deploy the project directory to Vercel production.

The Vercel CLI is installed with "npm install -g vercel" when it is not
found. If "vercel --prod --yes --name <project>" fails, one more attempt
is made with plain "vercel --prod", which may prompt for input.

Exit codes:
  0    deployed
  2    project directory not found
  3    installing the Vercel CLI failed
  4    deployment failed (including the retry)
  127  the Vercel CLI is still not found after installing

Examples:
  vercel-deploy deploy
  vercel-deploy deploy --dir ./site --name my-site
  vercel-deploy deploy --runtime docker --no-fallback`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), cmd, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.noFallback, "no-fallback", false,
		"Do not retry with plain 'vercel --prod' after a failed deploy")

	return cmd
}

// runDeploy resolves settings and runs the verified flow.
func runDeploy(ctx context.Context, cmd *cobra.Command, flags *deployFlags) error {
	s, err := loadSettings(currentFlags(cmd.Flags().Changed))
	if err != nil {
		return err
	}
	if flags.noFallback {
		s.opts.Fallback = false
	}
	VerboseLog("Fallback deploy enabled: %t", s.opts.Fallback)

	return runFlow(ctx, s, (*deploy.Invoker).Verified)
}
