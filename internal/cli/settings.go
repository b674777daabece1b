package cli

import (
	"time"

	"github.com/shinji-kodama/vercel-deploy/internal/config"
	"github.com/shinji-kodama/vercel-deploy/internal/deploy"
	"github.com/shinji-kodama/vercel-deploy/internal/model"
	"github.com/shinji-kodama/vercel-deploy/internal/project"
)

// settings is the fully resolved configuration of one run.
type settings struct {
	cfg     *config.Config
	opts    deploy.Options
	timeout time.Duration
}

// flagValues is a snapshot of the global flags. changed reports whether
// a flag was given on the command line.
type flagValues struct {
	dir     string
	name    string
	runtime string
	image   string
	timeout time.Duration
	changed func(name string) bool
}

// currentFlags captures the global flag variables.
func currentFlags(changed func(name string) bool) flagValues {
	return flagValues{
		dir:     projectDir,
		name:    projectName,
		runtime: runtimeName,
		image:   imageName,
		timeout: timeout,
		changed: changed,
	}
}

// loadSettings resolves the run configuration: built-in defaults, then the
// config file, then explicitly set flags. The project name is discovered
// from vercel.json or the directory name when not configured.
//
// A missing project directory fails with ExitDirectoryNotFound before
// any tool runs.
func loadSettings(f flagValues) (*settings, error) {
	cfg, err := config.Load(configPath, ".")
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, f); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// The directory is checked before the name is derived from it, so a
	// missing directory is always reported as such.
	dir, err := project.Resolve(cfg.ProjectDir)
	if err != nil {
		return nil, err
	}
	VerboseLog("Project directory: %s", dir)

	vj, err := project.LoadVercelJSON(dir)
	if err != nil {
		return nil, err
	}
	name, err := project.ResolveName(dir, cfg.ProjectName, vj)
	if err != nil {
		return nil, err
	}
	VerboseLog("Project name: %s", name)

	s := &settings{
		cfg: cfg,
		opts: deploy.Options{
			ProjectDir:  dir,
			ProjectName: name,
			Tool:        cfg.Tool,
			Installer:   cfg.Installer,
			Package:     cfg.Package,
			Fallback:    cfg.Fallback,
			Runtime:     cfg.Runtime,
		},
		timeout: cfg.Timeout(),
	}
	if f.changed(flagTimeout) {
		s.timeout = f.timeout
	}
	return s, nil
}

// applyFlags overrides config values with the flags that were set.
func applyFlags(cfg *config.Config, f flagValues) error {
	if f.changed(flagDir) {
		cfg.ProjectDir = f.dir
	}
	if f.changed(flagName) {
		cfg.ProjectName = f.name
	}
	if f.changed(flagRuntime) {
		rt, err := model.ParseRuntime(f.runtime)
		if err != nil {
			return model.WrapCLIError(model.ExitConfigInvalid, "invalid --runtime", err)
		}
		cfg.Runtime = rt
	}
	if f.changed(flagImage) {
		cfg.Docker.Image = f.image
	}
	return nil
}
