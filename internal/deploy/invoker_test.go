package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// fakeResponse is one scripted runner reply: either an exit code or an
// error (e.g. model.ErrToolNotFound).
type fakeResponse struct {
	exitCode int
	stdout   string
	err      error
}

// fakeRunner replays scripted responses in order and records every
// invocation it receives. Running past the script fails the test.
type fakeRunner struct {
	t         *testing.T
	responses []fakeResponse
	calls     []model.Invocation
}

func (f *fakeRunner) Run(_ context.Context, inv model.Invocation) (*model.Result, error) {
	f.t.Helper()
	f.calls = append(f.calls, inv)
	if len(f.calls) > len(f.responses) {
		f.t.Fatalf("unexpected invocation #%d: %s", len(f.calls), inv)
	}
	r := f.responses[len(f.calls)-1]
	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", inv.Name, r.err)
	}
	return &model.Result{ExitCode: r.exitCode, Stdout: r.stdout}, nil
}

// harness bundles an Invoker with its fakes.
type harness struct {
	runner  *fakeRunner
	out     *bytes.Buffer
	chdirs  []string
	dir     string
	invoker *Invoker
}

// newHarness builds an Invoker targeting a fresh temp directory. mutate
// may adjust the options (e.g. disable fallback or point at a missing dir).
func newHarness(t *testing.T, mutate func(o *Options), responses ...fakeResponse) *harness {
	t.Helper()

	h := &harness{
		runner: &fakeRunner{t: t, responses: responses},
		out:    &bytes.Buffer{},
		dir:    t.TempDir(),
	}
	opts := Options{
		ProjectDir:  h.dir,
		ProjectName: "standalone-web-app",
		Tool:        "vercel",
		Installer:   "npm",
		Package:     "vercel",
		Fallback:    true,
		Runtime:     model.RuntimeHost,
	}
	if mutate != nil {
		mutate(&opts)
	}

	h.invoker = New(h.runner, opts,
		WithOutput(h.out),
		WithChdir(func(dir string) error {
			h.chdirs = append(h.chdirs, dir)
			return nil
		}),
		WithRunID("run-1"),
	)
	return h
}

func (h *harness) argsOf(i int) []string {
	return h.runner.calls[i].Args
}

func missingDir(o *Options) {
	o.ProjectDir = filepath.Join(o.ProjectDir, "does-not-exist")
}

func TestOptions_Invocations(t *testing.T) {
	o := Options{
		ProjectDir:  "/srv/site",
		ProjectName: "standalone-web-app",
		Tool:        "vercel",
		Installer:   "npm",
		Package:     "vercel",
	}

	v := o.VersionInvocation()
	assert.Equal(t, "vercel --version", v.String())
	assert.True(t, v.Capture)

	i := o.InstallInvocation()
	assert.Equal(t, "npm install -g vercel", i.String())

	p := o.PrimaryInvocation()
	assert.Equal(t, "vercel --prod --yes --name standalone-web-app", p.String())
	assert.Equal(t, "/srv/site", p.Dir)
	assert.True(t, p.Interactive, "the tool may prompt for login")

	f := o.FallbackInvocation()
	assert.Equal(t, []string{"--prod"}, f.Args)
	assert.Equal(t, "/srv/site", f.Dir)
	assert.True(t, f.Interactive)
}

func TestDirect_Success(t *testing.T) {
	h := newHarness(t, nil, fakeResponse{exitCode: 0})

	report, err := h.invoker.Direct(context.Background())
	require.NoError(t, err)

	// Working directory changed to the project dir, and the invocation
	// pins the same dir.
	assert.Equal(t, []string{h.dir}, h.chdirs)
	require.Len(t, h.runner.calls, 1)
	assert.Equal(t, h.dir, h.runner.calls[0].Dir)
	assert.Equal(t, []string{"--prod", "--yes", "--name", "standalone-web-app"}, h.argsOf(0))

	assert.Equal(t, 0, report.ExitCode)
	assert.Equal(t, model.VariantDirect, report.Variant)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 1, report.Count(model.AttemptDeploy))

	// The direct flow prints nothing of its own.
	assert.Empty(t, h.out.String())
}

// TestDirect_PropagatesExitCode verifies that any tool exit code becomes
// the process exit code, silently, with exactly one deploy invocation.
func TestDirect_PropagatesExitCode(t *testing.T) {
	for _, code := range []int{1, 2, 42} {
		t.Run(fmt.Sprintf("exit %d", code), func(t *testing.T) {
			h := newHarness(t, nil, fakeResponse{exitCode: code})

			report, err := h.invoker.Direct(context.Background())
			require.Error(t, err)

			var cliErr *model.CLIError
			require.True(t, errors.As(err, &cliErr))
			assert.Equal(t, model.ExitCode(code), cliErr.Code)
			assert.True(t, cliErr.Silent())

			assert.Equal(t, code, report.ExitCode)
			assert.Len(t, h.runner.calls, 1)
			assert.Equal(t, 0, report.Count(model.AttemptInstall))
			assert.Equal(t, 0, report.Count(model.AttemptFallback))
		})
	}
}

func TestDirect_ToolNotFound(t *testing.T) {
	h := newHarness(t, nil, fakeResponse{err: model.ErrToolNotFound})

	report, err := h.invoker.Direct(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.ExitToolNotFound, model.ExitCodeOf(err))
	assert.True(t, errors.Is(err, model.ErrToolNotFound))

	// Never installs, never falls back.
	assert.Len(t, h.runner.calls, 1)
	assert.Equal(t, 127, report.ExitCode)
	assert.NotEmpty(t, report.Attempts[0].Error)
}

func TestDirect_MissingDirectory(t *testing.T) {
	h := newHarness(t, missingDir)

	report, err := h.invoker.Direct(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDirectoryNotFound))
	assert.Equal(t, model.ExitDirectoryNotFound, model.ExitCodeOf(err))

	assert.Empty(t, h.runner.calls, "no tool invocation before the directory check")
	assert.Empty(t, h.chdirs)
	assert.Equal(t, int(model.ExitDirectoryNotFound), report.ExitCode)
}

func TestDirect_ChdirFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.invoker.chdir = func(string) error { return errors.New("permission denied") }

	_, err := h.invoker.Direct(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.ExitDirectoryNotFound, model.ExitCodeOf(err))
	assert.Empty(t, h.runner.calls)
}

func TestVerified_Success(t *testing.T) {
	h := newHarness(t, nil,
		fakeResponse{exitCode: 0, stdout: "39.2.0\n"}, // version
		fakeResponse{exitCode: 0},                     // deploy
	)

	report, err := h.invoker.Verified(context.Background())
	require.NoError(t, err)

	require.Len(t, h.runner.calls, 2)
	assert.Equal(t, []string{"--version"}, h.argsOf(0))
	assert.Equal(t, []string{"--prod", "--yes", "--name", "standalone-web-app"}, h.argsOf(1))
	assert.Equal(t, []string{h.dir}, h.chdirs)

	assert.Equal(t, "39.2.0", report.ToolVersion)
	assert.False(t, report.Installed)
	assert.Equal(t, 0, report.ExitCode)

	out := h.out.String()
	assert.Contains(t, out, "Changing to directory")
	assert.Contains(t, out, "Vercel CLI version: 39.2.0")
	assert.Contains(t, out, "Project name: standalone-web-app")
	assert.Contains(t, out, "Run 'vercel login' if prompted.")
	assert.Contains(t, out, "Successfully deployed to Vercel!")
}

// TestVerified_InstallsMissingTool: tool absent, installer succeeds,
// deploy succeeds → exactly one install before the deploy, exit 0.
func TestVerified_InstallsMissingTool(t *testing.T) {
	h := newHarness(t, nil,
		fakeResponse{err: model.ErrToolNotFound}, // version
		fakeResponse{exitCode: 0},                // install
		fakeResponse{exitCode: 0},                // deploy
	)

	report, err := h.invoker.Verified(context.Background())
	require.NoError(t, err)

	require.Len(t, h.runner.calls, 3)
	assert.Equal(t, "npm", h.runner.calls[1].Name)
	assert.Equal(t, []string{"install", "-g", "vercel"}, h.argsOf(1))
	assert.Equal(t, "vercel", h.runner.calls[2].Name)

	assert.True(t, report.Installed)
	assert.Equal(t, 1, report.Count(model.AttemptInstall))
	assert.Equal(t, 1, report.Count(model.AttemptDeploy))
	assert.Contains(t, h.out.String(), "Installing globally")
}

func TestVerified_InstallFailureIsFatal(t *testing.T) {
	tests := []struct {
		name    string
		install fakeResponse
	}{
		{"installer exits non-zero", fakeResponse{exitCode: 1}},
		{"installer missing", fakeResponse{err: model.ErrToolNotFound}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, fakeResponse{err: model.ErrToolNotFound}, tt.install)

			report, err := h.invoker.Verified(context.Background())
			require.Error(t, err)
			assert.Equal(t, model.ExitInstallFailed, model.ExitCodeOf(err))

			assert.Len(t, h.runner.calls, 2)
			assert.Equal(t, 0, report.Count(model.AttemptDeploy), "no deploy after a failed install")
			assert.Equal(t, 0, report.Count(model.AttemptFallback))
			assert.False(t, report.Installed)
		})
	}
}

// TestVerified_FallbackAfterPrimaryFailure: primary deploy fails, fallback
// succeeds → exit 0 after exactly two deploy-tool invocations, and the
// fallback omits both the name and the non-interactive flag.
func TestVerified_FallbackAfterPrimaryFailure(t *testing.T) {
	h := newHarness(t, nil,
		fakeResponse{exitCode: 0, stdout: "39.2.0"}, // version
		fakeResponse{exitCode: 1},                   // deploy
		fakeResponse{exitCode: 0},                   // fallback
	)

	report, err := h.invoker.Verified(context.Background())
	require.NoError(t, err)

	require.Len(t, h.runner.calls, 3)
	fallback := h.runner.calls[2]
	assert.Equal(t, "vercel", fallback.Name)
	assert.Equal(t, []string{"--prod"}, fallback.Args)
	assert.NotContains(t, fallback.Args, "--name")
	assert.NotContains(t, fallback.Args, "--yes")
	assert.True(t, fallback.Interactive)
	assert.Equal(t, h.dir, fallback.Dir)

	assert.Equal(t, 1, report.Count(model.AttemptDeploy))
	assert.Equal(t, 1, report.Count(model.AttemptFallback))
	assert.Equal(t, 0, report.ExitCode)

	out := h.out.String()
	assert.Contains(t, out, "Deployment failed")
	assert.Contains(t, out, "Trying alternative deployment method...")
}

func TestVerified_FallbackFailureIsFatal(t *testing.T) {
	h := newHarness(t, nil,
		fakeResponse{exitCode: 0},
		fakeResponse{exitCode: 1},
		fakeResponse{exitCode: 2},
	)

	report, err := h.invoker.Verified(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.ExitDeployFailed, model.ExitCodeOf(err))
	assert.Contains(t, err.Error(), "alternative deployment also failed")
	assert.Equal(t, 1, report.Count(model.AttemptFallback))
}

func TestVerified_FallbackCannotRun(t *testing.T) {
	h := newHarness(t, nil,
		fakeResponse{exitCode: 0},
		fakeResponse{exitCode: 1},
		fakeResponse{err: errors.New("fork/exec: resource temporarily unavailable")},
	)

	_, err := h.invoker.Verified(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.ExitDeployFailed, model.ExitCodeOf(err))
}

func TestVerified_FallbackDisabled(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Fallback = false },
		fakeResponse{exitCode: 0},
		fakeResponse{exitCode: 1},
	)

	report, err := h.invoker.Verified(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.ExitDeployFailed, model.ExitCodeOf(err))
	assert.Len(t, h.runner.calls, 2)
	assert.Equal(t, 0, report.Count(model.AttemptFallback))
}

// TestVerified_VersionNonZeroIsIgnored: only a missing binary triggers an
// install; a version command that runs and fails does not.
func TestVerified_VersionNonZeroIsIgnored(t *testing.T) {
	h := newHarness(t, nil,
		fakeResponse{exitCode: 1},
		fakeResponse{exitCode: 0},
	)

	report, err := h.invoker.Verified(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Count(model.AttemptInstall))
	assert.Equal(t, 1, report.Count(model.AttemptDeploy))
}

// TestVerified_ToolStillMissingAfterInstall covers an install that
// succeeds without putting the tool on PATH: the deploy cannot start,
// which is fatal and does not trigger the fallback.
func TestVerified_ToolStillMissingAfterInstall(t *testing.T) {
	h := newHarness(t, nil,
		fakeResponse{err: model.ErrToolNotFound},
		fakeResponse{exitCode: 0},
		fakeResponse{err: model.ErrToolNotFound},
	)

	report, err := h.invoker.Verified(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.ExitToolNotFound, model.ExitCodeOf(err))
	assert.Equal(t, 0, report.Count(model.AttemptFallback))
}

func TestVerified_MissingDirectory(t *testing.T) {
	h := newHarness(t, missingDir)

	_, err := h.invoker.Verified(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.ExitDirectoryNotFound, model.ExitCodeOf(err))
	assert.Empty(t, h.runner.calls)
}

func TestEnsureTool(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		h := newHarness(t, nil, fakeResponse{exitCode: 0, stdout: "39.2.0\n"})

		report, err := h.invoker.EnsureTool(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "39.2.0", report.ToolVersion)
		assert.Empty(t, report.Variant)
		assert.Len(t, h.runner.calls, 1)
	})

	t.Run("missing and installed", func(t *testing.T) {
		h := newHarness(t, nil,
			fakeResponse{err: model.ErrToolNotFound},
			fakeResponse{exitCode: 0},
		)

		report, err := h.invoker.EnsureTool(context.Background())
		require.NoError(t, err)
		assert.True(t, report.Installed)
		assert.Equal(t, 0, report.Count(model.AttemptDeploy))
	})
}

func TestReportTiming(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	ticks := []time.Time{start, start.Add(1500 * time.Millisecond)}

	r := &fakeRunner{t: t, responses: []fakeResponse{{exitCode: 0}}}
	iv := New(r, Options{ProjectDir: t.TempDir(), ProjectName: "site", Tool: "vercel"},
		WithChdir(func(string) error { return nil }),
		WithClock(func() time.Time {
			next := ticks[0]
			ticks = ticks[1:]
			return next
		}),
	)

	report, err := iv.Direct(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start, report.StartedAt)
	assert.Equal(t, 1500*time.Millisecond, report.Duration)
	assert.NotEmpty(t, report.RunID, "run ID defaults to a UUID")
}
