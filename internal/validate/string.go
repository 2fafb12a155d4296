// Package validate provides centralized input validation for the ARIA API:
// account fields, session names, LLM prompts, spreadsheet uploads and
// provider URLs.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length in runes (0 = no minimum)
	MaxLength      int            // Maximum length in runes (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)
	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// Field limits for ARIA inputs.
const (
	MaxSessionNameLength = 100
	MinUsernameLength    = 3
	MaxUsernameLength    = 50
	MaxPromptLength      = 2000
)

var (
	usernamePattern    = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)
	sessionNamePattern = regexp.MustCompile(`^[^\x00-\x1f\x7f]+$`)
)

// Username validates an account name: 3-50 characters of letters, digits,
// underscore, dot or dash.
func Username(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength:      MinUsernameLength,
		MaxLength:      MaxUsernameLength,
		AllowedPattern: usernamePattern,
		TrimSpace:      true,
	})
}

// SessionName validates an optional session name. Empty input is allowed
// and means the caller should apply a default name. Control characters are
// rejected; HTML escaping is left to the renderer.
func SessionName(name string) (string, error) {
	return String(name, StringConstraints{
		MaxLength:      MaxSessionNameLength,
		AllowedPattern: sessionNamePattern,
		AllowEmpty:     true,
		TrimSpace:      true,
	})
}

// Prompt validates the optional free-text context sent with an LLM analysis.
func Prompt(prompt string) (string, error) {
	return String(prompt, StringConstraints{
		MaxLength:  MaxPromptLength,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}
