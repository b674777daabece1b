package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Variant selects which deploy flow a run follows.
//
//	direct:   enter dir → deploy once → exit with the tool's exit code
//	verified: enter dir → version check (install if missing) → deploy → fallback on failure
type Variant string

const (
	// VariantDirect runs exactly one deploy invocation and propagates its
	// exit code without interpretation.
	VariantDirect Variant = "direct"

	// VariantVerified checks (and if needed installs) the deploy tool before
	// deploying, and retries once without the project name on failure.
	VariantVerified Variant = "verified"
)

// String returns the string representation of Variant.
func (v Variant) String() string {
	return string(v)
}

// IsValid checks whether the Variant value is one of the predefined variants.
func (v Variant) IsValid() bool {
	switch v {
	case VariantDirect, VariantVerified:
		return true
	default:
		return false
	}
}

// Runtime selects where the external tools are executed.
type Runtime string

const (
	// RuntimeHost runs the tools as child processes of vercel-deploy.
	RuntimeHost Runtime = "host"

	// RuntimeDocker runs the tools inside a throwaway Node container with
	// the project directory bind-mounted.
	RuntimeDocker Runtime = "docker"
)

// String returns the string representation of Runtime.
func (r Runtime) String() string {
	return string(r)
}

// IsValid checks whether the Runtime value is one of the predefined runtimes.
func (r Runtime) IsValid() bool {
	switch r {
	case RuntimeHost, RuntimeDocker:
		return true
	default:
		return false
	}
}

// ParseRuntime converts a string to a Runtime.
// Returns an error if the string does not match any valid runtime.
func ParseRuntime(s string) (Runtime, error) {
	rt := Runtime(strings.ToLower(strings.TrimSpace(s)))
	if !rt.IsValid() {
		return "", fmt.Errorf("invalid runtime: %q (valid: host, docker)", s)
	}
	return rt, nil
}

// AttemptKind labels a single external invocation within a run.
type AttemptKind string

const (
	// AttemptVersion is the `<tool> --version` check.
	AttemptVersion AttemptKind = "version"

	// AttemptInstall is the package-manager global install of the tool.
	AttemptInstall AttemptKind = "install"

	// AttemptDeploy is the primary, named, non-interactive production deploy.
	AttemptDeploy AttemptKind = "deploy"

	// AttemptFallback is the unnamed production deploy run after a failed
	// primary deploy. It may prompt interactively.
	AttemptFallback AttemptKind = "fallback"
)

// Invocation describes a single external process run: a command name plus
// an ordered argument list, pinned to a working directory.
//
// An Invocation is constructed once and executed once per run.
type Invocation struct {
	// Name is the executable to run, resolved via PATH.
	Name string `json:"name"`

	// Args are the arguments passed to the executable, in order.
	Args []string `json:"args"`

	// Dir is the working directory of the child process. It is always set
	// to the project directory, even though the invoker has already changed
	// the process working directory there.
	Dir string `json:"dir"`

	// Capture collects stdout into Result.Stdout instead of streaming it
	// to the terminal.
	Capture bool `json:"capture,omitempty"`

	// Interactive attaches the terminal's stdin so the tool can prompt.
	Interactive bool `json:"interactive,omitempty"`
}

// String returns the command line as it would be typed in a shell.
func (i Invocation) String() string {
	if len(i.Args) == 0 {
		return i.Name
	}
	return i.Name + " " + strings.Join(i.Args, " ")
}

// Result is the outcome of a finished invocation. It is consumed
// immediately by the invoker and never stored.
type Result struct {
	// ExitCode is the child process exit status.
	ExitCode int `json:"exitCode"`

	// Stdout holds the captured standard output when Invocation.Capture
	// was set. Empty otherwise.
	Stdout string `json:"stdout,omitempty"`
}

// Success reports whether the invocation exited with status 0.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Attempt records one external invocation made during a run, for the
// final report.
type Attempt struct {
	Kind     AttemptKind `json:"kind"`
	Command  string      `json:"command"`
	Args     []string    `json:"args"`
	ExitCode int         `json:"exitCode"`

	// Error is set when the invocation could not be run at all
	// (e.g. executable not found).
	Error string `json:"error,omitempty"`
}

// GitInfo is optional repository metadata attached to a report.
type GitInfo struct {
	Branch string `json:"branch"`
	Commit string `json:"commit"`
}

// Report summarizes one run of vercel-deploy. It is printed at the end
// of a run (text or JSON) and then discarded.
type Report struct {
	// RunID uniquely identifies this run. Also used to label containers
	// in the docker runtime.
	RunID string `json:"runId"`

	Variant     Variant   `json:"variant,omitempty"`
	Runtime     Runtime   `json:"runtime"`
	ProjectDir  string    `json:"projectDir"`
	ProjectName string    `json:"projectName"`
	ToolVersion string    `json:"toolVersion,omitempty"`
	Installed   bool      `json:"installed"`
	Attempts    []Attempt `json:"attempts"`

	// ExitCode is the code the process exits with.
	ExitCode int `json:"exitCode"`

	Git       *GitInfo      `json:"git,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Count returns how many attempts of the given kind the run made.
func (r *Report) Count(kind AttemptKind) int {
	n := 0
	for _, a := range r.Attempts {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Succeeded reports whether the run finished with exit code 0.
func (r *Report) Succeeded() bool {
	return r.ExitCode == 0
}

// ContainerInfo holds runtime information about a Docker container
// created by the docker runtime. It is fetched from the Docker API on
// demand, never persisted.
type ContainerInfo struct {
	ContainerID   string            `json:"containerId"`
	ContainerName string            `json:"containerName"`
	Image         string            `json:"image"`
	Status        string            `json:"status"`
	Labels        map[string]string `json:"labels,omitempty"`
}

// SessionInfo is the run metadata stored as labels on a docker runtime
// container, so leftovers can be attributed to a project and cleaned up.
type SessionInfo struct {
	RunID       string    `json:"runId"`
	ProjectName string    `json:"projectName"`
	ProjectDir  string    `json:"projectDir"`
	CreatedAt   time.Time `json:"createdAt"`
}

// projectNameRegex follows Vercel's project name rules: lowercase
// alphanumerics plus '.', '_' and '-', up to 100 characters, not starting
// with a separator.
var projectNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,99}$`)

// ValidateProjectName checks if the given name is acceptable as a Vercel
// project name.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if strings.Contains(name, "---") {
		return fmt.Errorf("invalid project name %q: must not contain \"---\"", name)
	}
	if !projectNameRegex.MatchString(name) {
		return fmt.Errorf("invalid project name %q: must be lowercase, up to 100 characters, and contain only letters, digits, '.', '_' and '-'", name)
	}
	return nil
}

// Sentinel errors for conditions that callers branch on.
var (
	// ErrToolNotFound is returned by runners when the executable of an
	// invocation cannot be located.
	ErrToolNotFound = errors.New("executable not found")

	// ErrDirectoryNotFound is returned when the project directory does
	// not exist.
	ErrDirectoryNotFound = errors.New("directory not found")
)

// ExitCode defines standard CLI exit codes.
// These codes allow scripts and CI systems to programmatically determine
// the outcome of a command.
//
// The direct variant does not use these: it exits with whatever code the
// deploy tool returned.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitDirectoryNotFound indicates the project directory does not exist.
	ExitDirectoryNotFound ExitCode = 2

	// ExitInstallFailed indicates the package-manager install of the
	// deploy tool failed.
	ExitInstallFailed ExitCode = 3

	// ExitDeployFailed indicates both the primary and the fallback deploy
	// failed (or the primary failed with fallback disabled).
	ExitDeployFailed ExitCode = 4

	// ExitConfigInvalid indicates the configuration file or flags are invalid.
	ExitConfigInvalid ExitCode = 5

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// when the docker runtime is selected.
	ExitDockerNotRunning ExitCode = 6

	// ExitToolNotFound follows the shell convention for "command not found".
	ExitToolNotFound ExitCode = 127
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
//
// A CLIError with an empty Message is silent: the CLI exits with Code
// without printing anything.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	switch {
	case e.Message == "" && e.Err != nil:
		return e.Err.Error()
	case e.Message == "":
		return fmt.Sprintf("exit status %d", e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// Silent reports whether the error should exit without printing.
func (e *CLIError) Silent() bool {
	return e.Message == "" && e.Err == nil
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ExitStatus creates a silent CLIError that makes the process exit with
// the given status. Used to propagate a child process's exit code as-is.
func ExitStatus(code int) *CLIError {
	return &CLIError{Code: ExitCode(code)}
}

// ExitCodeOf returns the exit code an error maps to: the CLIError code
// if the chain contains one, ExitSuccess for nil, ExitGeneralError otherwise.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return ExitGeneralError
}
