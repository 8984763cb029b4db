// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the leveled charmbracelet/log logger shared by every
// component. Components get a prefixed child through Component.
package logging
