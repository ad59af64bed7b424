// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Command flowctl is the offline companion to the Meshguard server. It
// validates and dry-runs flow definitions, browses the template catalogue
// and hashes admin passwords.
package main

import (
	"fmt"
	"os"

	"github.com/tomtom215/meshguard/internal/cli"
	"github.com/tomtom215/meshguard/internal/logging"
)

func main() {
	// Engine logs would interleave with command output.
	logging.Init(logging.Config{Level: "error", Format: "console", Output: os.Stderr})

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
