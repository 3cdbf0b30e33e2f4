package model

import (
	"errors"
	"fmt"
)

// Authentication failures.
var (
	ErrInvalidLength     = fmt.Errorf("username must be %d-%d characters", MinUsernameLength, MaxUsernameLength)
	ErrInvalidCharacters = errors.New("username must not contain spaces, control characters, or '@'")
	ErrAlreadyExists     = errors.New("username already taken")
	ErrNotFound          = errors.New("user not found")
	ErrBadPassword       = errors.New("incorrect password")
	ErrEmptyPassword     = errors.New("password must not be empty")
	ErrInvalidSession    = errors.New("invalid or expired session token")
)

// Authorization failures.
var (
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrInsufficientPrivilege = errors.New("you do not have permission to use this command")
)

// Validation failures.
var (
	ErrMissingArgument  = errors.New("missing argument")
	ErrInvalidEnumValue = errors.New("invalid value")
	ErrTargetNotFound   = errors.New("target user not found")
)

// MutedError reports that the sender is muted.
type MutedError struct {
	RemainingMinutes int
}

func (e *MutedError) Error() string {
	unit := "minutes"
	if e.RemainingMinutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("You are muted. Remaining time: %d %s", e.RemainingMinutes, unit)
}

// IsAuthError reports whether err belongs to the authentication family.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidLength) ||
		errors.Is(err, ErrInvalidCharacters) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrBadPassword) ||
		errors.Is(err, ErrEmptyPassword) ||
		errors.Is(err, ErrInvalidSession)
}
