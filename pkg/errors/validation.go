package errors

import (
	"strings"
	"unicode"
)

// ValidateSegment validates one coordinate component (groupId, artifactId,
// version, classifier or type) before it is used to build a path inside the
// local repository.
//
// The rules are conservative:
//   - No empty values
//   - No control characters
//   - No path separators or traversal sequences
//   - Maximum length of 256 characters
func ValidateSegment(kind, value string) error {
	if value == "" {
		return New(ErrCodeInvalidInput, "%s cannot be empty", kind)
	}

	if len(value) > 256 {
		return New(ErrCodeInvalidInput, "%s too long (max 256 characters)", kind)
	}

	for _, r := range value {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "%s contains invalid control characters", kind)
		}
	}

	for _, pattern := range []string{"..", "/", "\\", "\x00"} {
		if strings.Contains(value, pattern) {
			return New(ErrCodeInvalidPath, "%s %q contains invalid characters: %q", kind, value, pattern)
		}
	}

	return nil
}

// ValidateRepositoryURL checks that a repository URL uses a scheme the
// transport understands (http, https or file).
func ValidateRepositoryURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "repository URL cannot be empty")
	}

	for _, prefix := range []string{"http://", "https://", "file:"} {
		if strings.HasPrefix(rawURL, prefix) {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "repository URL %q must use http, https or file scheme", rawURL)
}
