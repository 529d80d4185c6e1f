package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/domain"
)

// SessionStore owns the session -> members mapping. All mutations of
// membership go through it.
type SessionStore interface {
	CreateSession() domain.SessionID
	EnsureSession(id domain.SessionID)
	Join(id domain.SessionID, conn domain.ConnID, name string) []domain.ConnID
	Leave(id domain.SessionID, conn domain.ConnID) (removed, nowEmpty bool)
	FindAndLeaveAny(conn domain.ConnID) (id domain.SessionID, removed, nowEmpty bool)

	SessionOf(conn domain.ConnID) (domain.SessionID, bool)
	Members(id domain.SessionID) []domain.Member
	Exists(id domain.SessionID) bool
	List() []domain.SessionInfo
	Len() int
}

// MemoryStore is a threadsafe in-memory SessionStore.
//
// Lock order is session.mu before MemoryStore.mu. The store lock guards the
// session map and the conn -> session index; each session guards its own
// member set, so joins and leaves on different sessions do not contend.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*session
	memberOf map[domain.ConnID]domain.SessionID

	now func() time.Time
}

var _ SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[domain.SessionID]*session),
		memberOf: make(map[domain.ConnID]domain.SessionID),
		now:      time.Now,
	}
}

func (m *MemoryStore) CreateSession() domain.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := domain.NewSessionID()
	for {
		if _, taken := m.sessions[id]; !taken {
			break
		}
		id = domain.NewSessionID()
	}
	m.sessions[id] = newSession(id, m.now())
	log.Info().Str("module", "core.store").Str("session", string(id)).Msg("session created")
	return id
}

func (m *MemoryStore) EnsureSession(id domain.SessionID) {
	m.getOrCreate(id)
}

func (m *MemoryStore) getOrCreate(id domain.SessionID) *session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.sessions[id]; ok {
		return s
	}
	s = newSession(id, m.now())
	m.sessions[id] = s
	log.Info().Str("module", "core.store").Str("session", string(id)).Msg("session created")
	return s
}

func (m *MemoryStore) lookup(id domain.SessionID) (*session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *MemoryStore) Join(id domain.SessionID, conn domain.ConnID, name string) []domain.ConnID {
	for {
		s := m.getOrCreate(id)
		s.mu.Lock()
		if s.dead {
			// Emptied and removed between lookup and lock; take the fresh one.
			s.mu.Unlock()
			continue
		}
		existing := s.addLocked(conn, name)
		m.mu.Lock()
		m.memberOf[conn] = id
		m.mu.Unlock()
		s.mu.Unlock()

		log.Info().Str("module", "core.store").Str("session", string(id)).Str("conn", string(conn)).
			Int("existing", len(existing)).Msg("member joined")
		return existing
	}
}

func (m *MemoryStore) Leave(id domain.SessionID, conn domain.ConnID) (removed, nowEmpty bool) {
	s, ok := m.lookup(id)
	if !ok {
		return false, false
	}
	return m.leave(s, conn)
}

func (m *MemoryStore) leave(s *session, conn domain.ConnID) (removed, nowEmpty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead || !s.removeLocked(conn) {
		return false, false
	}

	m.mu.Lock()
	if m.memberOf[conn] == s.id {
		delete(m.memberOf, conn)
	}
	nowEmpty = len(s.order) == 0
	if nowEmpty {
		s.dead = true
		if m.sessions[s.id] == s {
			delete(m.sessions, s.id)
		}
	}
	m.mu.Unlock()

	log.Info().Str("module", "core.store").Str("session", string(s.id)).Str("conn", string(conn)).
		Bool("now_empty", nowEmpty).Msg("member removed")
	return true, nowEmpty
}

func (m *MemoryStore) FindAndLeaveAny(conn domain.ConnID) (domain.SessionID, bool, bool) {
	if id, ok := m.SessionOf(conn); ok {
		if removed, empty := m.Leave(id, conn); removed {
			return id, true, empty
		}
	}

	// Slow path: the index missed, e.g. the store was joined for two
	// sessions directly. Leave the first one found.
	for _, s := range m.snapshot() {
		if removed, empty := m.leave(s, conn); removed {
			return s.id, true, empty
		}
	}
	return "", false, false
}

func (m *MemoryStore) SessionOf(conn domain.ConnID) (domain.SessionID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.memberOf[conn]
	return id, ok
}

func (m *MemoryStore) Members(id domain.SessionID) []domain.Member {
	s, ok := m.lookup(id)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membersLocked()
}

func (m *MemoryStore) Exists(id domain.SessionID) bool {
	_, ok := m.lookup(id)
	return ok
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) snapshot() []*session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *MemoryStore) List() []domain.SessionInfo {
	all := m.snapshot()
	out := make([]domain.SessionInfo, 0, len(all))
	for _, s := range all {
		out = append(out, domain.SessionInfo{ID: s.id, MemberCount: s.size(), CreatedAt: s.createdAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Sweep removes sessions that have no members and were created before
// olderThan. Sessions with members are never touched.
func (m *MemoryStore) Sweep(olderThan time.Time) int {
	n := 0
	for _, s := range m.snapshot() {
		if !s.createdAt.Before(olderThan) {
			continue
		}
		s.mu.Lock()
		if !s.dead && len(s.order) == 0 {
			s.dead = true
			m.mu.Lock()
			if m.sessions[s.id] == s {
				delete(m.sessions, s.id)
			}
			m.mu.Unlock()
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// RunJanitor sweeps empty sessions older than ttl every interval until ctx
// is done.
func (m *MemoryStore) RunJanitor(ctx context.Context, ttl, interval time.Duration) error {
	if ttl <= 0 || interval <= 0 {
		log.Info().Str("module", "core.store").Msg("janitor disabled")
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "core.store").Msg("janitor ctx done")
			return nil
		case <-ticker.C:
			if n := m.Sweep(m.now().Add(-ttl)); n > 0 {
				log.Info().Str("module", "core.store").Int("swept", n).Msg("removed stale empty sessions")
			}
		}
	}
}
