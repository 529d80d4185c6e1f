package core

import (
	"slices"
	"sync"
	"time"

	"github.com/dkeye/signalroom/internal/domain"
)

// session is one in-memory member set. All fields below mu are guarded by
// it; once dead is set the session is unreachable from the store and must
// not gain members.
type session struct {
	id        domain.SessionID
	createdAt time.Time

	mu    sync.Mutex
	order []domain.ConnID
	names map[domain.ConnID]string
	dead  bool
}

func newSession(id domain.SessionID, now time.Time) *session {
	return &session{
		id:        id,
		createdAt: now,
		names:     make(map[domain.ConnID]string),
	}
}

// addLocked registers conn and returns the other members in join order.
// A repeated add only updates the name.
func (s *session) addLocked(conn domain.ConnID, name string) []domain.ConnID {
	existing := make([]domain.ConnID, 0, len(s.order))
	for _, id := range s.order {
		if id != conn {
			existing = append(existing, id)
		}
	}
	if _, ok := s.names[conn]; !ok {
		s.order = append(s.order, conn)
	}
	s.names[conn] = name
	return existing
}

func (s *session) removeLocked(conn domain.ConnID) bool {
	if _, ok := s.names[conn]; !ok {
		return false
	}
	delete(s.names, conn)
	if i := slices.Index(s.order, conn); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

func (s *session) membersLocked() []domain.Member {
	out := make([]domain.Member, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, domain.Member{ConnID: id, Name: s.names[id]})
	}
	return out
}

func (s *session) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
