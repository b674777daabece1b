package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/vercel-deploy/internal/config"
)

// initFlags holds the flag values for the init command.
type initFlags struct {
	// force overwrites an existing config file.
	force bool
}

// NewInitCommand creates the "init" cobra command.
func NewInitCommand() *cobra.Command {
	flags := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default vercel-deploy.yaml",
		Long: `Write a config file with the built-in defaults, ready for editing.

Global flags given alongside (--dir, --name, --runtime, --image) are
written into the file.

Examples:
  vercel-deploy init
  vercel-deploy init --dir ./site --runtime docker
  vercel-deploy init deploy/vercel-deploy.yaml --force`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileName
			if len(args) == 1 {
				path = args[0]
			}
			return runInit(cmd, path, flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func runInit(cmd *cobra.Command, path string, flags *initFlags) error {
	cfg := config.Default()
	if err := applyFlags(cfg, currentFlags(cmd.Flags().Changed)); err != nil {
		return err
	}
	if cmd.Flags().Changed(flagTimeout) && timeout > 0 {
		cfg.RawTimeout = timeout.String()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := cfg.Write(path, flags.force); err != nil {
		return err
	}
	VerboseLog("Wrote %s", path)

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{"path": path}, "", "  ")
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
