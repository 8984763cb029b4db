// disamia - DISAM IA chat assistant over a local Ollama server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"github.com/disam-ia/disamia/internal/cli"
)

// Version information (set at build time with -ldflags "-X main.Version=...").
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
	cli.Execute()
}
