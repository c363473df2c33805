// Package validation checks request payloads and renders field errors in the
// API's wording.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Account field bounds.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MinUsernameLength = 1
	MaxUsernameLength = 50
)

// Rule failures returned by ValidateUsername and ValidatePassword.
var (
	ErrTooShort    = errors.New("too short")
	ErrTooLong     = errors.New("too long")
	ErrBadUsername = errors.New("username may not contain spaces or control characters")
)

func lengthBetween(field string, n, lo, hi int) error {
	switch {
	case n < lo:
		return fmt.Errorf("%s must be at least %d characters: %w", field, lo, ErrTooShort)
	case n > hi:
		return fmt.Errorf("%s must not exceed %d characters: %w", field, hi, ErrTooLong)
	}
	return nil
}

// ValidatePassword bounds a password's length in characters, not bytes.
func ValidatePassword(password string) error {
	return lengthBetween("password", utf8.RuneCountInString(password), MinPasswordLength, MaxPasswordLength)
}

// ValidateUsername checks a user_name handle. Handles are shown as
// @user_name, so anything printable without whitespace is accepted.
func ValidateUsername(username string) error {
	if err := lengthBetween("username", utf8.RuneCountInString(username), MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}
	if strings.IndexFunc(username, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return ErrBadUsername
	}
	return nil
}
