package model

import "time"

// Session represents an authenticated connection (in-memory only).
type Session struct {
	ConnID      string
	Username    string
	Token       string
	Joined      bool
	ConnectedAt time.Time
}
