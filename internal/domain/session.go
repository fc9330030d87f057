package domain

import "time"

// SessionID is the opaque identifier the service issues for one remote
// emulator instance. Once issued it refers to exactly one resource until
// deleted.
type SessionID string

type Session struct {
	ID        SessionID
	CreatedAt time.Time
}
