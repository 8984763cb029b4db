// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// =============================================================================
// CONFIRMATION
// =============================================================================

// ErrNotConfirmed is returned when the user answers no.
var ErrNotConfirmed = errors.New("cancelled")

// RequireConfirmation decides whether a destructive action may proceed:
//
//  1. --yes given: proceed.
//  2. --json mode: fail, prompts would corrupt the output.
//  3. stdin is not a terminal: fail, nobody can answer.
//  4. Otherwise ask on stderr and read the answer from stdin.
func RequireConfirmation(yesFlag bool, action string, jsonMode bool) error {
	if yesFlag {
		return nil
	}
	if jsonMode {
		return fmt.Errorf("%s requires --yes in JSON mode", action)
	}
	if !IsTTY() {
		return fmt.Errorf("%s requires --yes when stdin is not a terminal", action)
	}
	ok, err := promptYesNo(os.Stdin, os.Stderr, fmt.Sprintf("%s?", capitalize(action)))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

// promptYesNo asks question and accepts y/yes/s/si/sí, case-insensitive.
// Anything else, including EOF, is a no.
func promptYesNo(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s %s ", WarningStyle.Render(question), DimStyle.Render("[y/N]"))
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "s", "si", "sí":
		return true, nil
	}
	return false, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
