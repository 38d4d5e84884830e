// Package main is the entry point for the walletlink CLI.
package main

import (
	"os"

	"github.com/mrz1836/walletlink/internal/cli"
)

// Set by the linker: -X main.version=... -X main.commit=... -X main.date=...
//
//nolint:gochecknoglobals // linker-stamped build metadata
var (
	version string
	commit  string
	date    string
)

func main() {
	cli.SetBuildInfo(cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
