package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	controlChars      = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	notesControlChars = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
	unsafeFileChars   = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)
)

// SanitizeString removes control characters and surrounding whitespace from
// single-line input
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// SanitizeNotes removes control characters from free text but keeps line
// breaks and tabs
func SanitizeNotes(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return notesControlChars.ReplaceAllString(s, "")
}

// SanitizeFileName reduces a client-supplied file name to a safe base name
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return unsafeFileChars.ReplaceAllString(base, "_")
}

// ValidateURIScheme checks that uri uses the given scheme
func ValidateURIScheme(uri, scheme string) error {
	prefix := scheme + "://"
	if !strings.HasPrefix(uri, prefix) || len(uri) == len(prefix) {
		return fmt.Errorf("invalid %s uri: %q", scheme, uri)
	}
	return nil
}
