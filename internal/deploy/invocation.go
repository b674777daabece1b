package deploy

import (
	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// Flags understood by the Vercel CLI.
const (
	flagProd    = "--prod"
	flagYes     = "--yes"
	flagName    = "--name"
	flagVersion = "--version"
)

// Options are the run parameters of an Invoker.
type Options struct {
	// ProjectDir is the directory the deploy runs in.
	ProjectDir string

	// ProjectName is passed as --name on the primary deploy.
	ProjectName string

	// Tool is the deploy CLI executable (normally "vercel").
	Tool string

	// Installer is the package manager used to install Tool (normally "npm").
	Installer string

	// Package is the package name passed to the installer.
	Package string

	// Fallback enables the unnamed retry after a failed primary deploy.
	Fallback bool

	// Runtime is recorded in the report only.
	Runtime model.Runtime
}

// VersionInvocation returns `<tool> --version`, captured.
func (o Options) VersionInvocation() model.Invocation {
	return model.Invocation{
		Name:    o.Tool,
		Args:    []string{flagVersion},
		Dir:     o.ProjectDir,
		Capture: true,
	}
}

// InstallInvocation returns `<installer> install -g <package>`.
func (o Options) InstallInvocation() model.Invocation {
	return model.Invocation{
		Name: o.Installer,
		Args: []string{"install", "-g", o.Package},
		Dir:  o.ProjectDir,
	}
}

// PrimaryInvocation returns the named production deploy:
// `<tool> --prod --yes --name <project>`. --yes only skips confirmations;
// the tool may still ask the user to log in, so stdin stays attached.
func (o Options) PrimaryInvocation() model.Invocation {
	return model.Invocation{
		Name:        o.Tool,
		Args:        []string{flagProd, flagYes, flagName, o.ProjectName},
		Dir:         o.ProjectDir,
		Interactive: true,
	}
}

// FallbackInvocation returns `<tool> --prod`: no name and no --yes, so
// the tool may prompt for the project interactively.
func (o Options) FallbackInvocation() model.Invocation {
	return model.Invocation{
		Name:        o.Tool,
		Args:        []string{flagProd},
		Dir:         o.ProjectDir,
		Interactive: true,
	}
}
