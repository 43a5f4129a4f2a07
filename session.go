package solosh

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one run of the shell for the lifetime of its process,
// giving every log line and history-log row a stable correlation id across
// however many jobs that run launches.
type Session struct {
	ID        string
	StartTime time.Time
	PID       int
}

// NewSession starts a new Session, generating a fresh correlation id.
func NewSession(pid int) *Session {
	return &Session{
		ID:        uuid.New().String(),
		StartTime: time.Now(),
		PID:       pid,
	}
}
