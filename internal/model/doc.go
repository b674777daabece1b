// Package model defines the domain types and value objects for the
// vercel-deploy CLI.
//
// This package contains pure data structures with no external dependencies.
// Every entity (Invocation, Result, Report) lives only for the duration of
// a single run; nothing is persisted between runs.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
