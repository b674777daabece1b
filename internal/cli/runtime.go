package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/shinji-kodama/vercel-deploy/internal/deploy"
	"github.com/shinji-kodama/vercel-deploy/internal/docker"
	"github.com/shinji-kodama/vercel-deploy/internal/gitmeta"
	"github.com/shinji-kodama/vercel-deploy/internal/model"
	"github.com/shinji-kodama/vercel-deploy/internal/runner"
)

// flowFunc is one of the Invoker's entry points.
type flowFunc func(iv *deploy.Invoker, ctx context.Context) (*model.Report, error)

// toolOutput returns where the Vercel CLI's stdout goes. In JSON mode it
// is redirected to stderr so stdout only carries the report.
func toolOutput() io.Writer {
	if jsonOutput {
		return os.Stderr
	}
	return os.Stdout
}

// runFlow opens the configured runtime, runs flow through a new Invoker
// and prints the report. The returned error carries the exit code.
func runFlow(ctx context.Context, s *settings, flow flowFunc) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
		VerboseLog("Run timeout: %s", s.timeout)
	}

	runID := uuid.NewString()
	r, closeRunner, err := openRunner(ctx, s, runID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeRunner(); cerr != nil {
			logger.Warn("runtime cleanup failed", zap.Error(cerr))
		}
	}()

	iv := deploy.New(r, s.opts,
		deploy.WithOutput(toolOutput()),
		deploy.WithLogger(logger),
		deploy.WithRunID(runID),
	)

	report, runErr := flow(iv, ctx)

	git, gerr := gitmeta.Inspect(ctx, report.ProjectDir)
	if gerr != nil {
		VerboseLog("Skipping git metadata: %v", gerr)
	}
	report.Git = git

	if jsonOutput {
		if err := writeReportJSON(os.Stdout, report); err != nil {
			logger.Warn("failed to write report", zap.Error(err))
		}
	} else if report.Variant != model.VariantDirect {
		writeReportText(os.Stdout, report)
	}
	return runErr
}

// openRunner returns the Runner for the configured runtime together with
// its cleanup function.
func openRunner(ctx context.Context, s *settings, runID string) (runner.Runner, func() error, error) {
	if s.cfg.Runtime != model.RuntimeDocker {
		ex := runner.NewExec()
		ex.Stdout = toolOutput()
		return ex, func() error { return nil }, nil
	}

	cli, err := docker.NewClient()
	if err != nil {
		return nil, nil, err
	}
	if err := cli.Ping(ctx); err != nil {
		return nil, nil, multierr.Append(err, cli.Close())
	}
	VerboseLog("Connected to Docker daemon")

	sess := docker.NewSession(cli, docker.SessionOptions{
		Image: s.cfg.Docker.Image,
		Info: &model.SessionInfo{
			RunID:       runID,
			ProjectName: s.opts.ProjectName,
			ProjectDir:  s.opts.ProjectDir,
			CreatedAt:   time.Now(),
		},
		Env:    s.cfg.Docker.Env,
		Stdin:  os.Stdin,
		Stdout: toolOutput(),
		Stderr: os.Stderr,
		Log:    logger,
	})

	closeAll := func() error {
		return multierr.Combine(sess.Close(context.Background()), cli.Close())
	}

	if err := sess.Start(ctx); err != nil {
		return nil, nil, multierr.Append(err, closeAll())
	}
	VerboseLog("Session container %s started from %s", sess.ContainerID(), s.cfg.Docker.Image)

	return sess, closeAll, nil
}
