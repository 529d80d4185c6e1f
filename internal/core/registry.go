package core

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/domain"
)

// Deliverer is the core-facing view of the connection registry.
type Deliverer interface {
	// Deliver sends ev to exactly one connection. It returns ErrUnknownConn
	// (wrapped) when id is not registered.
	Deliver(id domain.ConnID, ev Event) error
	// CloseConn closes the connection; the transport then fires disconnect.
	CloseConn(id domain.ConnID) bool
}

// Registry maps live connection IDs to their send capability. Entries are
// added and removed by the transport on connect and disconnect only.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnID]Conn)}
}

func (r *Registry) Register(id domain.ConnID, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; ok {
		log.Warn().Str("module", "core.registry").Str("conn", string(id)).Msg("replacing registered connection")
	}
	r.conns[id] = c
	log.Debug().Str("module", "core.registry").Str("conn", string(id)).Msg("registered")
}

// Unregister reports whether id was present.
func (r *Registry) Unregister(id domain.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[id]
	delete(r.conns, id)
	if ok {
		log.Debug().Str("module", "core.registry").Str("conn", string(id)).Msg("unregistered")
	}
	return ok
}

func (r *Registry) Get(id domain.ConnID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) Deliver(id domain.ConnID, ev Event) error {
	c, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConn, id)
	}
	if err := c.Send(ev); err != nil {
		return fmt.Errorf("deliver %s to %s: %w", ev.Type, id, err)
	}
	return nil
}

func (r *Registry) CloseConn(id domain.ConnID) bool {
	c, ok := r.Get(id)
	if !ok {
		return false
	}
	c.Close()
	return true
}
