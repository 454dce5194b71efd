// Package pool implements ConnectionPool and PoolManager: a registry
// of per-connection-identity pooled database handles with idle eviction,
// translated from a psycopg2 ThreadedConnectionPool idiom to database/sql's
// own pool settings per dbadapter.Adapter.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sqlnexus/core/model"
	"sqlnexus/dbadapter"
)

const (
	defaultIdleTimeout = 30 * time.Minute
	sweepInterval       = 5 * time.Minute
)

// ConnectionPool owns one dbadapter.Adapter for one connection identity. It
// tracks how many callers currently hold a borrowed handle so a concurrent
// sweep never closes a pool that is in use.
type ConnectionPool struct {
	params  model.ConnectionParams
	adapter dbadapter.Adapter

	mu          sync.Mutex
	lastUsed    time.Time
	checkedOut  int
	closed      bool
}

func newConnectionPool(params model.ConnectionParams, adapter dbadapter.Adapter) *ConnectionPool {
	return &ConnectionPool{params: params, adapter: adapter, lastUsed: time.Now()}
}

// isIdle reports whether the pool has had no checked-out handle and no
// activity for longer than timeout. A pool with any checked-out handle is
// never idle, regardless of lastUsed.
func (p *ConnectionPool) isIdle(timeout time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checkedOut > 0 {
		return false
	}
	return time.Since(p.lastUsed) > timeout
}

func (p *ConnectionPool) borrow() dbadapter.Adapter {
	p.mu.Lock()
	p.checkedOut++
	p.lastUsed = time.Now()
	p.mu.Unlock()
	return p.adapter
}

func (p *ConnectionPool) giveBack() {
	p.mu.Lock()
	if p.checkedOut > 0 {
		p.checkedOut--
	}
	p.lastUsed = time.Now()
	p.mu.Unlock()
}

func (p *ConnectionPool) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.adapter.Close()
}

// Stats reports observability-only counters for one pool.
type Stats struct {
	Key          string
	CheckedOut   int
	LastUsed     time.Time
}

// PoolManager owns the registry of ConnectionPool values keyed by the
// deterministic connection identity, guarded by a mutex, with a
// background sweeper reclaiming pools idle past IdleTimeout.
type PoolManager struct {
	mu    sync.Mutex
	pools map[string]*ConnectionPool

	idleTimeout time.Duration
	newAdapter  func(model.ConnectionParams) (dbadapter.Adapter, error)

	stopOnce sync.Once
	stopCh   chan struct{}
	logger   func(string)
}

// NewPoolManager creates a PoolManager and starts its background sweeper.
// idleTimeout <= 0 selects the 30-minute default. logger may be nil.
func NewPoolManager(idleTimeout time.Duration, logger func(string)) *PoolManager {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	if logger == nil {
		logger = func(string) {}
	}
	m := &PoolManager{
		pools:       make(map[string]*ConnectionPool),
		idleTimeout: idleTimeout,
		newAdapter:  dbadapter.New,
		stopCh:      make(chan struct{}),
		logger:      logger,
	}
	go m.sweepLoop()
	return m
}

func (m *PoolManager) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n := m.sweepIdle()
			if n > 0 {
				m.logger(fmt.Sprintf("pool sweeper reclaimed %d idle pool(s)", n))
			}
		case <-m.stopCh:
			return
		}
	}
}

// sweepIdle closes and removes every pool idle longer than idleTimeout with
// zero checked-out handles, returning the count reclaimed.
func (m *PoolManager) sweepIdle() int {
	m.mu.Lock()
	var toClose []*ConnectionPool
	for key, p := range m.pools {
		if p.isIdle(m.idleTimeout) {
			toClose = append(toClose, p)
			delete(m.pools, key)
		}
	}
	m.mu.Unlock()

	for _, p := range toClose {
		p.close()
	}
	return len(toClose)
}

// getOrCreate returns the pool for params, creating and registering a new
// one under the mutex if none exists yet.
func (m *PoolManager) getOrCreate(params model.ConnectionParams) (*ConnectionPool, error) {
	key := params.Key()

	m.mu.Lock()
	if p, ok := m.pools[key]; ok {
		m.mu.Unlock()
		return p, nil
	}
	m.mu.Unlock()

	adapter, err := m.newAdapter(params)
	if err != nil {
		return nil, err
	}
	p := newConnectionPool(params, adapter)

	m.mu.Lock()
	if existing, ok := m.pools[key]; ok {
		// A concurrent acquire created the pool first; use it and discard
		// the redundant adapter we just opened.
		m.mu.Unlock()
		adapter.Close()
		return existing, nil
	}
	m.pools[key] = p
	m.mu.Unlock()
	return p, nil
}

// Acquire returns a checked-out handle for params, creating the pool lazily
// if needed and updating LastUsed.
func (m *PoolManager) Acquire(ctx context.Context, params model.ConnectionParams) (dbadapter.Adapter, error) {
	p, err := m.getOrCreate(params)
	if err != nil {
		return nil, err
	}
	return p.borrow(), nil
}

// Release returns a handle previously obtained from Acquire. If the pool
// backing params has since vanished (evicted by a sweep), the handle is
// closed directly rather than leaked.
func (m *PoolManager) Release(params model.ConnectionParams, handle dbadapter.Adapter) {
	key := params.Key()
	m.mu.Lock()
	p, ok := m.pools[key]
	m.mu.Unlock()
	if !ok {
		handle.Close()
		return
	}
	p.giveBack()
}

// Close closes and removes the pool for params, regardless of checkout
// state — used for explicit user-initiated disconnects.
func (m *PoolManager) Close(params model.ConnectionParams) error {
	key := params.Key()
	m.mu.Lock()
	p, ok := m.pools[key]
	if ok {
		delete(m.pools, key)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return p.close()
}

// CloseAll closes and removes every pool, stopping the sweeper.
func (m *PoolManager) CloseAll() {
	m.mu.Lock()
	all := make([]*ConnectionPool, 0, len(m.pools))
	for key, p := range m.pools {
		all = append(all, p)
		delete(m.pools, key)
	}
	m.mu.Unlock()

	for _, p := range all {
		p.close()
	}
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Stats reports a snapshot of every registered pool, for observability.
func (m *PoolManager) Stats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Stats, 0, len(m.pools))
	for key, p := range m.pools {
		p.mu.Lock()
		out = append(out, Stats{Key: key, CheckedOut: p.checkedOut, LastUsed: p.lastUsed})
		p.mu.Unlock()
	}
	return out
}
