// Package cli implements the cobra-based CLI commands for vercel-deploy.
//
// Each subcommand (deploy, now, check, init, clean) is defined in its own
// file within this package. This file defines the root command that serves
// as the parent for all subcommands and handles global flags.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// Global flag variables shared across all subcommands. They are bound to
// persistent flags on the root command. A flag only overrides the config
// file when it was set explicitly (see applyFlags).
var (
	// jsonOutput prints the run report and errors as JSON.
	jsonOutput bool

	// verbose enables debug logging on stderr.
	verbose bool

	configPath  string
	projectDir  string
	projectName string
	runtimeName string
	imageName   string
	timeout     time.Duration
)

// Flag names that can override config file values.
const (
	flagConfig  = "config"
	flagDir     = "dir"
	flagName    = "name"
	flagRuntime = "runtime"
	flagImage   = "image"
	flagTimeout = "timeout"
)

// Version, Commit and Date are set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// The root command itself does not perform any action. It only provides
// help text and global flags.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vercel-deploy",
		Short: "Deploy a project directory to Vercel production",
		Long: `vercel-deploy runs the Vercel CLI against a project directory to
create a production deployment.

"deploy" checks that the Vercel CLI is installed (installing it with npm
when missing), deploys, and retries once without a project name on
failure. "now" runs a single deploy and exits with the Vercel CLI's own
exit code.`,

		// Errors are printed by Execute, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogger()
			if cmd.Flags().Changed(flagRuntime) {
				if _, err := model.ParseRuntime(runtimeName); err != nil {
					return model.WrapCLIError(model.ExitConfigInvalid, "invalid --runtime", err)
				}
			}
			if timeout < 0 {
				return model.NewCLIError(model.ExitConfigInvalid, "--timeout must not be negative")
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.StringVar(&configPath, flagConfig, "", "Config file (default: ./vercel-deploy.yaml if present)")
	pf.StringVarP(&projectDir, flagDir, "C", "", "Project directory to deploy (default: .)")
	pf.StringVar(&projectName, flagName, "", "Vercel project name (default: vercel.json name or directory name)")
	pf.StringVar(&runtimeName, flagRuntime, "", "Where to run the Vercel CLI: host or docker (default: host)")
	pf.StringVar(&imageName, flagImage, "", "Container image for the docker runtime (default: node:20)")
	pf.DurationVar(&timeout, flagTimeout, 0, "Abort the run after this duration (0 = no limit)")

	rootCmd.AddCommand(NewDeployCommand())
	rootCmd.AddCommand(NewNowCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewCleanCommand())

	return rootCmd
}

// Execute runs the root command and exits the process with the code
// carried by the returned error.
//
// SIGINT and SIGTERM cancel the command context, which kills a running
// child process. A silent CLIError (no message) exits without printing
// anything, so `now` reproduces the Vercel CLI's exit code verbatim.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()

	if err == nil {
		return
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		if !cliErr.Silent() {
			printError(cliErr.Message, cliErr.Err)
		}
		os.Exit(int(cliErr.Code))
	}

	printError(err.Error(), nil)
	os.Exit(int(model.ExitGeneralError))
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if message == "" && underlying != nil {
		message, underlying = underlying.Error(), nil
	}

	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout carries the report.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}
