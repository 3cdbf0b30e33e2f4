package model

import (
	"unicode"
	"unicode/utf8"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 16
)

// Account is a registered credential record. PasswordHash is hex encoded.
type Account struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// ValidateUsername checks that a username is 3-16 characters with no
// whitespace, control characters, or '@'. Returns nil on success.
func ValidateUsername(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return ErrInvalidLength
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '@' || r == utf8.RuneError {
			return ErrInvalidCharacters
		}
	}
	return nil
}
