package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestVariant_IsValid checks that only defined variants pass validation.
func TestVariant_IsValid(t *testing.T) {
	assert.True(t, VariantDirect.IsValid())
	assert.True(t, VariantVerified.IsValid())
	assert.False(t, Variant("retry").IsValid())
	assert.False(t, Variant("").IsValid())
	assert.Equal(t, "verified", VariantVerified.String())
}

// TestParseRuntime verifies string-to-runtime conversion,
// including case normalization and error cases.
func TestParseRuntime(t *testing.T) {
	tests := []struct {
		input    string
		expected Runtime
		hasError bool
	}{
		{"host", RuntimeHost, false},
		{"docker", RuntimeDocker, false},
		{"Docker", RuntimeDocker, false}, // case insensitive
		{" host ", RuntimeHost, false},   // surrounding whitespace
		{"podman", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseRuntime(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestInvocation_String verifies the shell-like rendering used in status
// output and reports.
func TestInvocation_String(t *testing.T) {
	inv := Invocation{Name: "vercel", Args: []string{"--prod", "--yes", "--name", "web"}}
	assert.Equal(t, "vercel --prod --yes --name web", inv.String())

	bare := Invocation{Name: "vercel"}
	assert.Equal(t, "vercel", bare.String())
}

// TestResult_Success covers nil and non-zero results.
func TestResult_Success(t *testing.T) {
	var nilResult *Result
	assert.False(t, nilResult.Success())
	assert.True(t, (&Result{ExitCode: 0}).Success())
	assert.False(t, (&Result{ExitCode: 2}).Success())
}

// TestReport_Count verifies per-kind attempt counting.
func TestReport_Count(t *testing.T) {
	r := &Report{Attempts: []Attempt{
		{Kind: AttemptVersion},
		{Kind: AttemptDeploy, ExitCode: 1},
		{Kind: AttemptFallback},
	}}
	assert.Equal(t, 1, r.Count(AttemptVersion))
	assert.Equal(t, 1, r.Count(AttemptDeploy))
	assert.Equal(t, 1, r.Count(AttemptFallback))
	assert.Equal(t, 0, r.Count(AttemptInstall))
	assert.True(t, r.Succeeded())
}

// TestValidateProjectName checks Vercel project name rules:
// - Must not be empty
// - Lowercase alphanumerics plus '.', '_' and '-'
// - Must not start with a separator, at most 100 characters
func TestValidateProjectName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		hasError bool
	}{
		{"simple", "standalone-web-app", false},
		{"dots and underscores", "my_site.v2", false},
		{"single char", "a", false},
		{"empty", "", true},
		{"uppercase", "Standalone", true},
		{"leading hyphen", "-web", true},
		{"slash", "web/app", true},
		{"triple hyphen", "web---app", true},
		{"too long", strings.Repeat("a", 101), true},
		{"max length", strings.Repeat("a", 100), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProjectName(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestCLIError verifies message formatting and unwrapping.
func TestCLIError(t *testing.T) {
	t.Run("message only", func(t *testing.T) {
		err := NewCLIError(ExitInstallFailed, "install failed")
		assert.Equal(t, "install failed", err.Error())
		assert.Nil(t, err.Unwrap())
		assert.False(t, err.Silent())
	})

	t.Run("wrapped error", func(t *testing.T) {
		err := WrapCLIError(ExitDirectoryNotFound, "project directory missing", ErrDirectoryNotFound)
		assert.Equal(t, "project directory missing: directory not found", err.Error())
		assert.True(t, errors.Is(err, ErrDirectoryNotFound))
	})

	t.Run("exit status is silent", func(t *testing.T) {
		err := ExitStatus(3)
		assert.True(t, err.Silent())
		assert.Equal(t, ExitCode(3), err.Code)
		assert.Equal(t, "exit status 3", err.Error())
	})
}

// TestExitCodeOf verifies translation of arbitrary errors into exit codes.
func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCodeOf(nil))
	assert.Equal(t, ExitGeneralError, ExitCodeOf(errors.New("boom")))
	assert.Equal(t, ExitToolNotFound, ExitCodeOf(NewCLIError(ExitToolNotFound, "missing")))

	// CLIError found through a wrapping chain.
	wrapped := fmt.Errorf("running deploy: %w", ExitStatus(42))
	assert.Equal(t, ExitCode(42), ExitCodeOf(wrapped))
}
