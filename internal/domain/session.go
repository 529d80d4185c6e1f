package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionIDLen is the length of generated session tokens.
const SessionIDLen = 6

var ErrMissingSession = errors.New("no session specified")

type SessionID string

// NewSessionID returns a short random token. Callers check it against live
// sessions; collisions are possible at this length.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString()[:SessionIDLen])
}

// ParseSessionID rejects blank identifiers.
func ParseSessionID(raw string) (SessionID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingSession
	}
	return SessionID(raw), nil
}

// SessionInfo is a read-only view for APIs (no member transport fields).
type SessionInfo struct {
	ID          SessionID `json:"session_id"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}
