// Package session implements SessionRegistry, a multi-tenant map of
// session_id to the ConnectionParams it was opened with: a mutex-guarded
// map plus a background sweep goroutine rather than a ticking external
// cache.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sqlnexus/core/model"
)

const (
	defaultIdleTimeout = 60 * time.Minute
	sweepInterval      = 5 * time.Minute
)

// Registry holds active sessions keyed by session_id.
type Registry struct {
	mu           sync.Mutex
	sessions     map[string]*model.Session
	idleTimeout  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	logger   func(string)
}

// NewRegistry creates a Registry and starts its background sweeper.
// idleTimeout <= 0 selects the 60-minute default. logger may be nil.
func NewRegistry(idleTimeout time.Duration, logger func(string)) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	if logger == nil {
		logger = func(string) {}
	}
	r := &Registry{
		sessions:    make(map[string]*model.Session),
		idleTimeout: idleTimeout,
		stopCh:      make(chan struct{}),
		logger:      logger,
	}
	go r.sweepLoop()
	return r
}

// Create registers a brand new session for params and returns its id.
func (r *Registry) Create(params model.ConnectionParams) string {
	id := uuid.New().String()
	now := time.Now()
	s := &model.Session{
		SessionID:    id,
		Params:       params,
		CreatedAt:    now,
		LastAccessed: now,
	}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return id
}

// Get returns the session for id, touching its access bookkeeping, or
// (nil, false) if the id is unknown or has since expired.
func (r *Registry) Get(id string) (*model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	if s.IsExpired(r.idleTimeout) {
		delete(r.sessions, id)
		return nil, false
	}
	s.Touch()
	return s, true
}

// Delete removes a session explicitly (user-initiated disconnect).
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// GetOrCreate reuses sessionID's session when it is still live and its
// connection identity exactly matches params; otherwise it creates and
// returns a fresh session id. A mismatch (same id, different target
// database) never silently rebinds the old session — a new one is minted.
func (r *Registry) GetOrCreate(sessionID string, params model.ConnectionParams) string {
	if sessionID != "" {
		if s, ok := r.Get(sessionID); ok && s.Params.Equal(params) {
			return sessionID
		}
	}
	return r.Create(params)
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := r.sweepExpired(); n > 0 {
				r.logger(fmt.Sprintf("session sweeper evicted %d expired session(s)", n))
			}
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) sweepExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []string
	for id, s := range r.sessions {
		if s.IsExpired(r.idleTimeout) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.sessions, id)
	}
	return len(expired)
}

// Stop halts the background sweeper. Safe to call more than once.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Count returns the number of currently tracked sessions (including ones
// past expiry that haven't been swept yet), for observability.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ClearAll removes every session, used for tests and shutdown.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	r.sessions = make(map[string]*model.Session)
	r.mu.Unlock()
}
