// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	data := []byte(`[{"id":"kb_1"}]`)

	if err := AtomicWriteFile(path, data, 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", content, data)
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "store.json")

	if err := AtomicWriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

func TestAtomicWriteFile_OverwritesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	if err := AtomicWriteFile(path, []byte("initial"), 0600); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0600); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "updated" {
		t.Errorf("Content = %q, want %q", content, "updated")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hola", 10, "hola"},
		{"exact", "hola", 4, "hola"},
		{"cut", "hola mundo", 4, "hola"},
		{"accents", "atención médica", 8, "atención"},
		{"zero", "hola", 0, ""},
		{"empty", "", 5, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateRunes(tc.in, tc.max); got != tc.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	if got := TruncateWidth("short", 10); got != "short" {
		t.Errorf("TruncateWidth unchanged = %q", got)
	}
	if got := TruncateWidth("a long category name", 10); got != "a long ..." {
		t.Errorf("TruncateWidth = %q, want %q", got, "a long ...")
	}
	if got := TruncateWidth("漢字漢字", 6); runewidth.StringWidth(got) > 6 {
		t.Errorf("TruncateWidth wide = %q exceeds 6 columns", got)
	}
	if got := TruncateWidth("abc", 0); got != "" {
		t.Errorf("TruncateWidth zero = %q", got)
	}
}

func TestPadWidth(t *testing.T) {
	if got := PadWidth("ab", 5); got != "ab   " {
		t.Errorf("PadWidth = %q, want %q", got, "ab   ")
	}
	if got := PadWidth("abcdefgh", 6); len(got) != 6 {
		t.Errorf("PadWidth truncated length = %d, want 6", len(got))
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("a\nb\r\nc\r"); got != "a b c" {
		t.Errorf("SingleLine = %q, want %q", got, "a b c")
	}
}
