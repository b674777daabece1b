package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// WorkspaceDir is where the project directory is mounted inside the
// session container.
const WorkspaceDir = "/workspace"

// exitCommandNotFound is the status the container runtime reports when
// the exec'd binary does not exist.
const exitCommandNotFound = 127

// removeTimeout bounds container removal in Close, which runs after the
// run's context may already be cancelled.
const removeTimeout = 30 * time.Second

// SessionOptions configure a Session.
type SessionOptions struct {
	// Image is the container image, e.g. "node:20".
	Image string

	// Info is stored on the container as labels. Info.ProjectDir must be
	// an absolute host path; it is bind-mounted at WorkspaceDir.
	Info *model.SessionInfo

	// Env lists host variable names copied into the container. Unset
	// variables are skipped.
	Env []string

	// Stdin is attached to interactive invocations.
	Stdin io.Reader

	// Stdout and Stderr receive the demultiplexed exec output.
	Stdout io.Writer
	Stderr io.Writer

	// Log receives debug output. Defaults to a no-op logger.
	Log *zap.Logger

	// LookupEnv resolves Env. Defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Session runs invocations inside one long-lived container. It
// implements runner.Runner.
//
// The container is created by Start and removed by Close. Every
// invocation is a separate exec in the same container, so a global npm
// install made by one invocation is visible to the next.
type Session struct {
	cli  *Client
	opts SessionOptions
	id   string
}

// NewSession creates a Session. No container exists until Start.
func NewSession(cli *Client, opts SessionOptions) *Session {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	return &Session{cli: cli, opts: opts}
}

// ContainerID returns the session container's ID, or "" before Start.
func (s *Session) ContainerID() string {
	return s.id
}

// Start reaps stopped containers left by earlier runs on the same
// project, pulls the image and starts the session container.
func (s *Session) Start(ctx context.Context) error {
	if s.id != "" {
		return fmt.Errorf("session already started")
	}
	if s.opts.Info == nil || s.opts.Info.ProjectDir == "" {
		return fmt.Errorf("session requires a project directory")
	}

	if err := s.reap(ctx); err != nil {
		s.opts.Log.Warn("failed to remove stale containers", zap.Error(err))
	}

	// A failed pull is not fatal: the image may exist locally and the
	// registry may be unreachable. ContainerCreate reports a truly
	// missing image.
	if err := s.pull(ctx); err != nil {
		s.opts.Log.Warn("image pull failed, using local image",
			zap.String("image", s.opts.Image), zap.Error(err))
	}

	cfg, hostCfg := buildContainerSpec(s.opts.Image, s.opts.Info, s.containerEnv())
	name := containerName(s.opts.Info)

	created, err := s.cli.Inner().ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create container from image %q", s.opts.Image), err)
	}
	s.id = created.ID
	for _, w := range created.Warnings {
		s.opts.Log.Warn("docker warning", zap.String("warning", w))
	}

	if err := s.cli.Inner().ContainerStart(ctx, s.id, container.StartOptions{}); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container %q", name), err)
	}

	s.opts.Log.Debug("session container started",
		zap.String("id", s.id), zap.String("name", name), zap.String("image", s.opts.Image))
	return nil
}

// Run executes inv inside the session container and waits for it to
// exit. Exit status 127 is reported as model.ErrToolNotFound.
func (s *Session) Run(ctx context.Context, inv model.Invocation) (*model.Result, error) {
	if s.id == "" {
		return nil, fmt.Errorf("session not started")
	}
	if inv.Name == "" {
		return nil, fmt.Errorf("empty command name")
	}

	// Step 1: create the exec. Stdout and stderr are always attached;
	// stdin only for invocations that may prompt.
	attachStdin := inv.Interactive && s.opts.Stdin != nil
	execCfg := container.ExecOptions{
		Cmd:          execCommand(inv),
		WorkingDir:   containerDir(s.opts.Info.ProjectDir, inv.Dir),
		AttachStdin:  attachStdin,
		AttachStdout: true,
		AttachStderr: true,
	}

	s.opts.Log.Debug("docker exec",
		zap.String("command", inv.String()), zap.String("workdir", execCfg.WorkingDir))

	created, err := s.cli.Inner().ContainerExecCreate(ctx, s.id, execCfg)
	if err != nil {
		return nil, fmt.Errorf("docker exec %s: %w", inv.Name, err)
	}

	// Step 2: attaching starts the process and hijacks the HTTP
	// connection into a raw stream.
	hijacked, err := s.cli.Inner().ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker exec attach %s: %w", inv.Name, err)
	}
	defer hijacked.Close()

	// Closing the connection unblocks StdCopy when ctx is cancelled. The
	// process itself keeps running until the session container is removed.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			hijacked.Close()
		case <-done:
		}
	}()

	// Half-close after stdin hits EOF so a prompt reading it sees EOF too
	// instead of waiting forever. The copier may still be blocked on a
	// terminal read when the exec ends; it exits with the process.
	if attachStdin {
		go func() {
			_, _ = io.Copy(hijacked.Conn, s.opts.Stdin)
			_ = hijacked.CloseWrite()
		}()
	}

	var captured strings.Builder
	stdout := s.opts.Stdout
	if inv.Capture {
		stdout = &captured
	}

	// Step 3: without a TTY the daemon multiplexes stdout and stderr into
	// one framed stream; StdCopy splits it and returns at EOF.
	if _, err := stdcopy.StdCopy(stdout, s.opts.Stderr, hijacked.Reader); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", inv.Name, ctx.Err())
		}
		return nil, fmt.Errorf("docker exec output %s: %w", inv.Name, err)
	}

	// Step 4: the exit code is only available by inspecting the finished
	// exec.
	inspect, err := s.cli.Inner().ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("docker exec inspect %s: %w", inv.Name, err)
	}

	// sh-style 127: the binary is not on the image's PATH.
	if inspect.ExitCode == exitCommandNotFound {
		return nil, fmt.Errorf("%s: %w", inv.Name, model.ErrToolNotFound)
	}

	return &model.Result{ExitCode: inspect.ExitCode, Stdout: captured.String()}, nil
}

// Close force-removes the session container. It is a no-op before
// Start and safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	if s.id == "" {
		return nil
	}
	// Removal must happen even when the run was cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()

	id := s.id
	s.id = ""
	s.opts.Log.Debug("removing session container", zap.String("id", id))
	return RemoveContainer(ctx, s.cli, id, true)
}

// reap removes stopped containers labelled with this project directory.
// Running ones may belong to a concurrent run and are left alone.
func (s *Session) reap(ctx context.Context) error {
	containers, err := ListManagedContainers(ctx, s.cli)
	if err != nil {
		return err
	}
	for _, c := range FilterByProjectDir(containers, s.opts.Info.ProjectDir) {
		if c.Status == "running" {
			continue
		}
		s.opts.Log.Debug("removing stale container", zap.String("name", c.ContainerName))
		if err := RemoveContainer(ctx, s.cli, c.ContainerID, true); err != nil {
			return err
		}
	}
	return nil
}

// pull fetches the image. The progress stream must be drained for the
// pull to complete.
func (s *Session) pull(ctx context.Context) error {
	rc, err := s.cli.Inner().ImagePull(ctx, s.opts.Image, image.PullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

// containerEnv resolves the pass-through variable names to KEY=VALUE
// pairs, skipping unset ones.
func (s *Session) containerEnv() []string {
	var env []string
	for _, key := range s.opts.Env {
		if v, ok := s.opts.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

// buildContainerSpec returns the config for a session container: the
// image idles on `sleep infinity` with the project mounted at
// WorkspaceDir, and tini (Init) reaps exec'd children.
func buildContainerSpec(img string, info *model.SessionInfo, env []string) (*container.Config, *container.HostConfig) {
	initProcess := true
	cfg := &container.Config{
		Image:      img,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: WorkspaceDir,
		Env:        env,
		Labels:     BuildLabels(info),
	}
	hostCfg := &container.HostConfig{
		Init: &initProcess,
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: info.ProjectDir,
			Target: WorkspaceDir,
		}},
	}
	return cfg, hostCfg
}

// containerName builds "vercel-deploy-<project>-<run id prefix>".
func containerName(info *model.SessionInfo) string {
	id := info.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	name := "vercel-deploy"
	if info.ProjectName != "" {
		name += "-" + info.ProjectName
	}
	if id != "" {
		name += "-" + id
	}
	return name
}

// containerDir maps a host directory to its path inside the container.
// Directories outside the mounted project map to WorkspaceDir.
func containerDir(projectDir, dir string) string {
	if dir == "" {
		return WorkspaceDir
	}
	rel, err := filepath.Rel(projectDir, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return WorkspaceDir
	}
	return WorkspaceDir + "/" + filepath.ToSlash(rel)
}

// execCommand returns the argv for an invocation.
func execCommand(inv model.Invocation) []string {
	return append([]string{inv.Name}, inv.Args...)
}
