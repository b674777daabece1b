// Package main is the entry point for the vercel-deploy CLI.
//
// It delegates all functionality to the internal/cli package, which
// defines the cobra commands.
package main

import (
	"github.com/shinji-kodama/vercel-deploy/internal/cli"
)

// version, commit, and date are set at build time, e.g.
//
//	go build -ldflags "-X main.version=1.2.0" ./cmd/vercel-deploy
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	cli.Execute(cli.NewRootCommand())
}
