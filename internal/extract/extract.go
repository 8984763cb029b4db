// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package extract

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrUnsupported is returned for file types with no extractor.
var ErrUnsupported = errors.New("unsupported file type")

// ErrNoText is returned when a document parses but yields no text.
var ErrNoText = errors.New("no extractable text")

// UnsupportedError names the rejected extension.
type UnsupportedError struct {
	Ext string
}

func (e *UnsupportedError) Error() string {
	return "tipo de archivo no soportado: " + e.Ext
}

// Is reports ErrUnsupported equivalence.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// =============================================================================
// EXTRACTION
// =============================================================================

// SupportedExtensions lists the file extensions File accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".docx"}
}

// Supported reports whether path has an extension File can handle.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions() {
		if s == ext {
			return true
		}
	}
	return false
}

// File extracts plain text from a .txt, .pdf or .docx file.
func File(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt":
		return extractTXT(path)
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDOCX(path)
	default:
		return "", &UnsupportedError{Ext: ext}
	}
}

func extractTXT(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	// Spanish documents saved from older Windows tools are often CP-1252.
	if !utf8.Valid(b) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		b = decoded
	}

	text := Normalize(string(b))
	if text == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNoText)
	}
	return text, nil
}

// extractPDF emits each page under a "--- Page N ---" marker so the model can
// cite page numbers.
func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	found := false
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		content = Normalize(content)
		if content != "" {
			found = true
		}
		b.WriteString("--- Page " + strconv.Itoa(pageIndex) + " ---\n")
		b.WriteString(content)
		b.WriteString("\n\n")
	}

	if !found {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNoText)
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func extractDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	var documentXML []byte
	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		documentXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		break
	}

	if len(documentXML) == 0 {
		return "", fmt.Errorf("docx document.xml not found")
	}

	text := Normalize(stripDOCXML(documentXML))
	if text == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNoText)
	}
	return text, nil
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

var xmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

func stripDOCXML(src []byte) string {
	s := string(src)

	s = strings.ReplaceAll(s, "</w:p>", "\n")
	s = strings.ReplaceAll(s, "<w:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:br />", "\n")
	s = strings.ReplaceAll(s, "<w:tab/>", "\t")

	s = xmlTagPattern.ReplaceAllString(s, "")
	return xmlEntities.Replace(s)
}

// Normalize trims every line, unifies line endings and collapses runs of
// blank lines to one.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	emptyCount := 0
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			b.WriteString("\n")
			continue
		}
		emptyCount = 0
		b.WriteString(trimmed)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}
