// Package deploy implements the Deploy Invoker: it enters the project
// directory and drives the external deploy tool through one of two flows.
//
//	Direct:   chdir → deploy → exit code of the tool, uninterpreted
//	Verified: chdir → version check (install if missing) → deploy
//	          → on failure, one unnamed interactive fallback deploy
//
// The external tool is reached only through runner.Runner, so the flows
// can be tested with a fake that returns controlled exit codes.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shinji-kodama/vercel-deploy/internal/model"
	"github.com/shinji-kodama/vercel-deploy/internal/project"
	"github.com/shinji-kodama/vercel-deploy/internal/runner"
)

// Invoker runs the deploy flows. An Invoker performs a single run; create
// a new one per run.
type Invoker struct {
	runner runner.Runner
	opts   Options

	out   io.Writer
	log   *zap.Logger
	chdir func(dir string) error
	now   func() time.Time
	runID string
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithOutput sets the writer for human-readable status lines.
// Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(iv *Invoker) { iv.out = w }
}

// WithLogger sets the diagnostic logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(iv *Invoker) { iv.log = l }
}

// WithChdir replaces os.Chdir. Tests use it to observe the directory
// change without mutating the test process's working directory.
func WithChdir(fn func(dir string) error) Option {
	return func(iv *Invoker) { iv.chdir = fn }
}

// WithClock replaces time.Now for report timestamps.
func WithClock(fn func() time.Time) Option {
	return func(iv *Invoker) { iv.now = fn }
}

// WithRunID sets the report's run ID. Defaults to a random UUID.
func WithRunID(id string) Option {
	return func(iv *Invoker) { iv.runID = id }
}

// New creates an Invoker that executes invocations through r.
func New(r runner.Runner, opts Options, options ...Option) *Invoker {
	iv := &Invoker{
		runner: r,
		opts:   opts,
		out:    io.Discard,
		log:    zap.NewNop(),
		chdir:  os.Chdir,
		now:    time.Now,
	}
	for _, o := range options {
		o(iv)
	}
	if iv.runID == "" {
		iv.runID = uuid.NewString()
	}
	return iv
}

// Direct enters the project directory and runs the primary deploy exactly
// once. A non-zero tool exit is returned as a silent CLIError carrying the
// same code. No version check, install, or fallback happens.
func (iv *Invoker) Direct(ctx context.Context) (*model.Report, error) {
	report := iv.newReport(model.VariantDirect)

	if err := iv.enterProjectDir(report); err != nil {
		return iv.finish(report, err)
	}

	res, err := iv.run(ctx, report, model.AttemptDeploy, iv.opts.PrimaryInvocation())
	if err != nil {
		return iv.finish(report, iv.toolError(err))
	}
	if !res.Success() {
		return iv.finish(report, model.ExitStatus(res.ExitCode))
	}
	return iv.finish(report, nil)
}

// Verified enters the project directory, makes sure the deploy tool is
// installed, and deploys. If the primary deploy exits non-zero and
// fallback is enabled, one unnamed deploy follows; its failure is fatal.
func (iv *Invoker) Verified(ctx context.Context) (*model.Report, error) {
	report := iv.newReport(model.VariantVerified)

	iv.status("Changing to directory: %s", iv.opts.ProjectDir)
	if err := iv.enterProjectDir(report); err != nil {
		return iv.finish(report, err)
	}

	if err := iv.ensureTool(ctx, report); err != nil {
		return iv.finish(report, err)
	}

	iv.status("\n🚀 Deploying to Vercel (production)...")
	iv.status("Project name: %s", iv.opts.ProjectName)
	iv.note("\nNote: You may need to authenticate with Vercel if not already logged in.")
	iv.note("Run '%s login' if prompted.\n", iv.opts.Tool)

	primary := iv.opts.PrimaryInvocation()
	res, err := iv.run(ctx, report, model.AttemptDeploy, primary)
	if err != nil {
		// The tool vanished after the version check, or the run was
		// cancelled. A fallback would hit the same condition.
		return iv.finish(report, iv.toolError(err))
	}
	if res.Success() {
		iv.success("\n✅ Successfully deployed to Vercel!")
		return iv.finish(report, nil)
	}

	iv.failure("\n❌ Deployment failed: %s exited with status %d", primary, res.ExitCode)
	if !iv.opts.Fallback {
		return iv.finish(report, model.NewCLIError(model.ExitDeployFailed,
			fmt.Sprintf("deployment failed: %s exited with status %d", primary, res.ExitCode)))
	}

	// Exactly one fallback, unnamed and interactive. Vercel picks the
	// project from .vercel/project.json or asks for it.
	iv.status("\nTrying alternative deployment method...")
	fallback := iv.opts.FallbackInvocation()
	res, err = iv.run(ctx, report, model.AttemptFallback, fallback)
	if err != nil {
		return iv.finish(report, model.WrapCLIError(model.ExitDeployFailed,
			"alternative deployment failed", err))
	}
	if !res.Success() {
		return iv.finish(report, model.NewCLIError(model.ExitDeployFailed,
			fmt.Sprintf("alternative deployment also failed: %s exited with status %d", fallback, res.ExitCode)))
	}

	iv.success("\n✅ Alternative deployment succeeded")
	return iv.finish(report, nil)
}

// EnsureTool enters the project directory and runs only the version
// check, installing the tool when it is missing.
func (iv *Invoker) EnsureTool(ctx context.Context) (*model.Report, error) {
	report := iv.newReport("")

	if err := iv.enterProjectDir(report); err != nil {
		return iv.finish(report, err)
	}
	return iv.finish(report, iv.ensureTool(ctx, report))
}

// ensureTool runs `<tool> --version`. Only a missing executable
// triggers the install; a version command that runs but exits non-zero
// is logged and otherwise ignored.
func (iv *Invoker) ensureTool(ctx context.Context, report *model.Report) error {
	iv.status("Checking if Vercel CLI is installed...")

	res, err := iv.run(ctx, report, model.AttemptVersion, iv.opts.VersionInvocation())
	if err != nil {
		// Any other runner error (cancellation, docker exec failure) would
		// also break the install, so it is returned as is.
		if !errors.Is(err, model.ErrToolNotFound) {
			return err
		}
		return iv.install(ctx, report)
	}

	version := strings.TrimSpace(res.Stdout)
	if !res.Success() {
		iv.log.Warn("version check exited non-zero",
			zap.String("tool", iv.opts.Tool),
			zap.Int("exit_code", res.ExitCode))
	}
	report.ToolVersion = version
	iv.status("Vercel CLI version: %s", version)
	return nil
}

// install runs the package-manager install once. Any failure is fatal.
func (iv *Invoker) install(ctx context.Context, report *model.Report) error {
	iv.status("Vercel CLI not found. Installing globally...")

	inv := iv.opts.InstallInvocation()
	res, err := iv.run(ctx, report, model.AttemptInstall, inv)
	if err != nil {
		return model.WrapCLIError(model.ExitInstallFailed,
			fmt.Sprintf("installing %s with %s failed", iv.opts.Package, iv.opts.Installer), err)
	}
	if !res.Success() {
		return model.NewCLIError(model.ExitInstallFailed,
			fmt.Sprintf("installing %s failed: %s exited with status %d", iv.opts.Package, inv, res.ExitCode))
	}

	report.Installed = true
	return nil
}

// enterProjectDir verifies the project directory and makes it the
// process working directory. Invocations additionally pin Dir to the same
// path.
func (iv *Invoker) enterProjectDir(report *model.Report) error {
	dir, err := project.Resolve(iv.opts.ProjectDir)
	if err != nil {
		return err
	}
	if err := iv.chdir(dir); err != nil {
		return model.WrapCLIError(model.ExitDirectoryNotFound,
			fmt.Sprintf("cannot change to project directory %s", dir), err)
	}

	iv.opts.ProjectDir = dir
	report.ProjectDir = dir
	iv.log.Debug("entered project directory", zap.String("dir", dir))
	return nil
}

// run executes one invocation and records it in the report.
func (iv *Invoker) run(ctx context.Context, report *model.Report, kind model.AttemptKind, inv model.Invocation) (*model.Result, error) {
	iv.log.Debug("running",
		zap.String("kind", string(kind)),
		zap.String("command", inv.String()),
		zap.String("dir", inv.Dir))

	attempt := model.Attempt{
		Kind:    kind,
		Command: inv.Name,
		Args:    append([]string(nil), inv.Args...),
	}

	res, err := iv.runner.Run(ctx, inv)
	if err != nil {
		attempt.ExitCode = -1
		attempt.Error = err.Error()
		report.Attempts = append(report.Attempts, attempt)
		iv.log.Debug("invocation failed to run", zap.String("kind", string(kind)), zap.Error(err))
		return nil, err
	}

	attempt.ExitCode = res.ExitCode
	report.Attempts = append(report.Attempts, attempt)
	iv.log.Debug("invocation finished",
		zap.String("kind", string(kind)),
		zap.Int("exit_code", res.ExitCode))
	return res, nil
}

// toolError maps a runner error on a deploy invocation to a CLIError.
func (iv *Invoker) toolError(err error) error {
	if errors.Is(err, model.ErrToolNotFound) {
		return model.WrapCLIError(model.ExitToolNotFound,
			fmt.Sprintf("%s is not installed or not in PATH", iv.opts.Tool), err)
	}
	return err
}

func (iv *Invoker) newReport(variant model.Variant) *model.Report {
	return &model.Report{
		RunID:       iv.runID,
		Variant:     variant,
		Runtime:     iv.opts.Runtime,
		ProjectDir:  iv.opts.ProjectDir,
		ProjectName: iv.opts.ProjectName,
		Attempts:    []model.Attempt{},
		StartedAt:   iv.now(),
	}
}

// finish stamps the exit code and duration on the report.
func (iv *Invoker) finish(report *model.Report, err error) (*model.Report, error) {
	report.ExitCode = int(model.ExitCodeOf(err))
	report.Duration = iv.now().Sub(report.StartedAt)
	if err != nil {
		iv.log.Debug("run finished with error", zap.Int("exit_code", report.ExitCode), zap.Error(err))
	}
	return report, err
}
