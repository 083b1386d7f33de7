package booking

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation errors for free-text form fields.
var (
	ErrEmptyInput     = errors.New("input is empty")
	ErrInputTooLong   = errors.New("input is too long")
	ErrForbiddenChars = errors.New("input contains forbidden characters")
)

// forbiddenInput matches injection-prone characters and inputs that look
// like bot commands.
var forbiddenInput = regexp.MustCompile(`[;'"\\/*]|^\s*/`)

// ValidateInput checks a free-text field against the shared rules: non-empty
// after trimming, at most maxLen runes and none of the forbidden characters.
func ValidateInput(text string, maxLen int) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyInput
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return ErrInputTooLong
	}
	if forbiddenInput.MatchString(text) {
		return ErrForbiddenChars
	}
	return nil
}
