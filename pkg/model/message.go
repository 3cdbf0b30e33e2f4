package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const MessageMaxBodyLength = 500

var ErrMessageBodyTooLong = fmt.Errorf("message body exceeds %d characters", MessageMaxBodyLength)
var ErrMessageBodyEmpty = errors.New("message body cannot be empty")

// ChatMessage is a relayed public message as stored in history.
type ChatMessage struct {
	Username    string  `json:"username"`
	Message     string  `json:"message"`
	Profile     Profile `json:"profile"`
	SpecialRank string  `json:"specialRank,omitempty"`
	PrefixColor Color   `json:"prefixColor,omitempty"`
	Mention     string  `json:"mention,omitempty"`
	Timestamp   int64   `json:"timestamp"`
}

// SanitizeBody strips control characters (other than tab) and surrounding
// whitespace, then checks the length bounds.
func SanitizeBody(body string) (string, error) {
	clean := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' {
			return -1
		}
		return r
	}, body))
	if clean == "" {
		return "", ErrMessageBodyEmpty
	}
	if utf8.RuneCountInString(clean) > MessageMaxBodyLength {
		return "", ErrMessageBodyTooLong
	}
	return clean, nil
}
