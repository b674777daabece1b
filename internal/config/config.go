// Package config loads and validates the optional vercel-deploy.yaml file.
//
// Every field has a built-in default (`vercel --prod --yes --name <dir>`,
// `npm install -g vercel`), so running without any config file is the
// common case. Command-line
// flags are layered on top of the file by the cli package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// FileName is the config file looked up in the current directory when no
// --config flag is given.
const FileName = "vercel-deploy.yaml"

// Default values.
const (
	DefaultProjectDir = "."
	DefaultTool       = "vercel"
	DefaultInstaller  = "npm"
	DefaultPackage    = "vercel"
	DefaultImage      = "node:20"
)

// DefaultPassthroughEnv lists the host variables forwarded into the
// container in the docker runtime. The Vercel CLI reads them for
// non-interactive authentication and project linking.
var DefaultPassthroughEnv = []string{"VERCEL_TOKEN", "VERCEL_ORG_ID", "VERCEL_PROJECT_ID"}

// Config holds the parsed vercel-deploy configuration.
type Config struct {
	// ProjectDir is the directory the deploy runs in. Relative paths are
	// resolved against the current directory.
	ProjectDir string `yaml:"project_dir"`

	// ProjectName is passed as `--name` on the primary deploy. Empty means
	// "discover": vercel.json name, then the directory basename.
	ProjectName string `yaml:"project_name,omitempty"`

	// Tool is the deploy CLI executable.
	Tool string `yaml:"tool"`

	// Installer is the package manager used when Tool is missing.
	Installer string `yaml:"installer"`

	// Package is the package name handed to the installer.
	Package string `yaml:"package"`

	// Fallback enables the unnamed, interactive retry after a failed
	// primary deploy in the verified variant.
	Fallback bool `yaml:"fallback"`

	// Runtime selects host or docker execution.
	Runtime model.Runtime `yaml:"runtime"`

	// RawTimeout bounds the whole run, e.g. "10m". Empty means no limit.
	RawTimeout string `yaml:"timeout,omitempty"`

	Docker DockerConfig `yaml:"docker"`
}

// DockerConfig controls the docker runtime.
type DockerConfig struct {
	// Image is the container image the tools run in. It must provide
	// node and npm.
	Image string `yaml:"image"`

	// Env lists host environment variables copied into the container.
	Env []string `yaml:"env"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		ProjectDir: DefaultProjectDir,
		Tool:       DefaultTool,
		Installer:  DefaultInstaller,
		Package:    DefaultPackage,
		Fallback:   true,
		Runtime:    model.RuntimeHost,
		Docker: DockerConfig{
			Image: DefaultImage,
			Env:   append([]string(nil), DefaultPassthroughEnv...),
		},
	}
}

// Timeout returns the configured run timeout, or 0 for none.
// Validate must have succeeded for the value to be meaningful.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.RawTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Validate checks field values. Errors are CLIErrors with ExitConfigInvalid.
func (c *Config) Validate() error {
	var problems []string

	if c.ProjectDir == "" {
		problems = append(problems, "project_dir must not be empty")
	}
	if c.Tool == "" {
		problems = append(problems, "tool must not be empty")
	}
	if c.Installer == "" {
		problems = append(problems, "installer must not be empty")
	}
	if c.Package == "" {
		problems = append(problems, "package must not be empty")
	}
	if c.ProjectName != "" {
		if err := model.ValidateProjectName(c.ProjectName); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if !c.Runtime.IsValid() {
		problems = append(problems, fmt.Sprintf("invalid runtime %q (valid: host, docker)", c.Runtime))
	}
	if c.Runtime == model.RuntimeDocker && c.Docker.Image == "" {
		problems = append(problems, "docker.image must not be empty with the docker runtime")
	}
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid timeout %q: %v", c.RawTimeout, err))
		} else if d < 0 {
			problems = append(problems, fmt.Sprintf("invalid timeout %q: must not be negative", c.RawTimeout))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	msg := "invalid configuration: " + problems[0]
	for _, p := range problems[1:] {
		msg += "; " + p
	}
	return model.NewCLIError(model.ExitConfigInvalid, msg)
}

// LoadFile reads and parses the config file at path on top of the
// defaults. A missing file is an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, model.WrapCLIError(model.ExitConfigInvalid,
				fmt.Sprintf("config file not found: %s", path), err)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("parsing %s", path), err)
	}
	return cfg, nil
}

// Load returns the configuration for a run. If explicit is set, that file
// must exist. Otherwise FileName in searchDir is used when present, and
// the defaults when it is not.
func Load(explicit, searchDir string) (*Config, error) {
	if explicit != "" {
		return LoadFile(explicit)
	}

	path := filepath.Join(searchDir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}
	return LoadFile(path)
}

// Marshal serializes the config to YAML with a short header comment.
func (c *Config) Marshal() ([]byte, error) {
	body, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	header := "# vercel-deploy configuration\n# Flags given on the command line override these values.\n"
	return []byte(header + string(body)), nil
}

// Write stores the config at path. An existing file is only replaced
// when force is true.
func (c *Config) Write(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return model.NewCLIError(model.ExitConfigInvalid,
				fmt.Sprintf("%s already exists (use --force to overwrite)", path))
		}
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
