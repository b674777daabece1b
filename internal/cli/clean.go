package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/shinji-kodama/vercel-deploy/internal/docker"
	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// cleanFlags holds the flag values for the clean command.
type cleanFlags struct {
	// all removes containers of every project, not only the current one.
	all bool

	// dryRun lists the containers without removing them.
	dryRun bool
}

// NewCleanCommand creates the "clean" cobra command.
func NewCleanCommand() *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove containers left behind by the docker runtime",
		Long: `Remove session containers created by "--runtime docker".

Containers are normally removed when a run ends; a killed process can
leave one behind. By default only containers of the current project
directory are removed.

Examples:
  vercel-deploy clean
  vercel-deploy clean --all --dry-run`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), cmd, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.all, "all", false, "Remove containers of all projects")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Only list the containers that would be removed")

	return cmd
}

func runClean(ctx context.Context, cmd *cobra.Command, flags *cleanFlags) error {
	dir := ""
	if !flags.all {
		s, err := loadSettings(currentFlags(cmd.Flags().Changed))
		if err != nil {
			return err
		}
		dir = s.opts.ProjectDir
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}
	VerboseLog("Connected to Docker daemon")

	containers, err := docker.ListManagedContainers(ctx, cli)
	if err != nil {
		return err
	}
	targets := docker.FilterByProjectDir(containers, dir)
	VerboseLog("Found %d managed containers, %d selected", len(containers), len(targets))

	var removeErr error
	if !flags.dryRun {
		for _, c := range targets {
			if err := docker.RemoveContainer(ctx, cli, c.ContainerID, true); err != nil {
				removeErr = multierr.Append(removeErr, err)
				continue
			}
			VerboseLog("Removed %s", c.ContainerName)
		}
	}

	printCleanResult(targets, flags.dryRun)

	if removeErr != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "failed to remove some containers", removeErr)
	}
	return nil
}

// printCleanResult outputs the affected containers in text or JSON.
func printCleanResult(containers []model.ContainerInfo, dryRun bool) {
	if IsJSONOutput() {
		type resultJSON struct {
			DryRun     bool                  `json:"dryRun"`
			Containers []model.ContainerInfo `json:"containers"`
		}
		result := resultJSON{
			DryRun:     dryRun,
			Containers: make([]model.ContainerInfo, 0, len(containers)),
		}
		result.Containers = append(result.Containers, containers...)
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(os.Stdout, string(data))
		return
	}

	if len(containers) == 0 {
		fmt.Println("No containers to remove.")
		return
	}
	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	for _, c := range containers {
		fmt.Printf("%s %s (%s, %s)\n", verb, c.ContainerName, c.Labels[docker.LabelProjectName], c.Status)
	}
}
