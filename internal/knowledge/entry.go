// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// ENTRY TYPES
// =============================================================================

// Entry is one knowledge snippet. Timestamps are Unix milliseconds so the
// persisted layout matches the JSON documents earlier versions produced.
type Entry struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	Content   string `json:"content" yaml:"content"`
	Category  string `json:"category" yaml:"category"`
	CreatedAt int64  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt int64  `json:"updatedAt" yaml:"updatedAt"`
}

// Created returns CreatedAt as a time.Time.
func (e Entry) Created() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// Updated returns UpdatedAt as a time.Time.
func (e Entry) Updated() time.Time {
	return time.UnixMilli(e.UpdatedAt)
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	Category *string `json:"category,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Category == nil
}

// String returns a pointer to s, for building patches.
func String(s string) *string {
	return &s
}

// clean NFC-normalizes a field so that visually identical categories written
// with combining accents group together.
func clean(s string) string {
	return norm.NFC.String(s)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError reports a rejected field. The operation is not attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func validateFields(title, content, category string) error {
	switch {
	case blank(title):
		return &ValidationError{Field: "title", Message: "must not be empty"}
	case blank(content):
		return &ValidationError{Field: "content", Message: "must not be empty"}
	case blank(category):
		return &ValidationError{Field: "category", Message: "must not be empty"}
	}
	return nil
}

func validatePatch(p Patch) error {
	if p.Title != nil && blank(*p.Title) {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if p.Content != nil && blank(*p.Content) {
		return &ValidationError{Field: "content", Message: "must not be empty"}
	}
	if p.Category != nil && blank(*p.Category) {
		return &ValidationError{Field: "category", Message: "must not be empty"}
	}
	return nil
}
