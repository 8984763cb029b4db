// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for disamia.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (DISAMIA_*), including ones set by .env files
//   - ~/.disamia/config.toml (or the file given with --config)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL: cfg.Ollama.URL,
//	    Timeout: cfg.Ollama.Timeout(),
//	})
package config
