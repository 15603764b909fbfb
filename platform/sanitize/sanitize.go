// Package sanitize provides text sanitization utilities for user input.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	// unsafeFilenameRegex matches characters not allowed in a Content-Disposition filename.
	unsafeFilenameRegex = regexp.MustCompile(`[/\\:*?"<>|\x00\s]`)
)

// UnnamedFile is the fallback filename when sanitising leaves nothing usable.
const UnnamedFile = "unnamed-file"

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes user-provided free text such as names, subjects and notes.
func Text(s string) string {
	return StripHTML(s)
}

// TextPtr is a helper for optional string pointers
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}

// Filename replaces path separators, reserved characters, NUL and whitespace
// with '-'. An empty result or a lone '-' becomes UnnamedFile.
func Filename(name string) string {
	result := unsafeFilenameRegex.ReplaceAllString(name, "-")
	if result == "" || result == "-" {
		return UnnamedFile
	}
	return result
}
