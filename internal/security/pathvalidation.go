// Package security guards the file names that frame bundles read and write.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned for a reference that resolves outside its
// base directory.
var ErrPathEscape = errors.New("path escapes base directory")

// ValidateRelativeName checks a file name read from a manifest. It must be
// relative and must stay within the manifest's directory once cleaned.
func ValidateRelativeName(name string) error {
	if name == "" {
		return errors.New("empty file name")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("%q: %w", name, ErrPathEscape)
	}
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%q: %w", name, ErrPathEscape)
	}
	return nil
}

// ResolveWithin joins name onto dir after validating it.
func ResolveWithin(dir, name string) (string, error) {
	if err := ValidateRelativeName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SanitizeFilename makes a safe bundle base name from an arbitrary string.
// Characters other than ASCII letters, digits, dot, underscore and dash
// become a single underscore, and the result is capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	// Leading dots would hide the file; trailing ones confuse extensions.
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
