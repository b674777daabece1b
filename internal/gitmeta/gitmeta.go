// Package gitmeta reads the branch and commit of the project directory
// so they can be shown in the run report.
//
// Like the Vercel CLI itself, this shells out to the git binary rather
// than using a Go Git library: it only needs two rev-parse queries, and
// shelling out gives the exact answer the user sees in their terminal.
//
// Git metadata is informational. Callers ignore errors from Inspect and
// deploy regardless.
package gitmeta

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// Inspect returns the current branch and commit of the repository
// containing dir. It returns (nil, nil) when git is not installed or dir
// is not inside a work tree.
func Inspect(ctx context.Context, dir string) (*model.GitInfo, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, nil
	}

	inside, err := runGit(ctx, dir, "rev-parse", "--is-inside-work-tree")
	if err != nil || strings.TrimSpace(inside) != "true" {
		// Not a repository; nothing to report.
		return nil, nil
	}

	commit, err := runGit(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		// A fresh repository without commits has no HEAD yet.
		return nil, nil
	}

	// --abbrev-ref returns "HEAD" for a detached HEAD.
	branch, err := runGit(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, err
	}

	return &model.GitInfo{
		Branch: strings.TrimSpace(branch),
		Commit: strings.TrimSpace(commit),
	}, nil
}

// ShortCommit returns the first 7 characters of a commit SHA.
func ShortCommit(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// runGit executes a git command with the given arguments in dir and
// returns stdout. On failure the error includes stderr for diagnostics.
//
// dir is passed via -C so git changes directory itself.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204: args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, "git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s: exit status %d", message, exitErr.ExitCode())
		}
		return "", fmt.Errorf("%s: %w", message, err)
	}

	return stdout.String(), nil
}
