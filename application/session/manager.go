package session

import (
	"context"
	"sync"
	"time"

	"relmap/application/ports"
	pkgerrors "relmap/pkg/errors"

	"go.uber.org/zap"
)

// DefaultIdleTimeout evicts sessions unused for this long
const DefaultIdleTimeout = 30 * time.Minute

type entry struct {
	ready    chan struct{}
	session  *Session
	err      error
	lastUsed time.Time
}

// Manager keeps one session per principal, loading it on first use
// and evicting it once idle.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry

	deps        Dependencies
	idleTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time

	workerCtx    context.Context
	cancelWorker context.CancelFunc

	stopOnce    sync.Once
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewManager creates a session manager
func NewManager(deps Dependencies, idleTimeout time.Duration, logger *zap.Logger) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NoopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	workerCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions:     make(map[string]*entry),
		deps:         deps,
		idleTimeout:  idleTimeout,
		logger:       logger,
		now:          time.Now,
		workerCtx:    workerCtx,
		cancelWorker: cancel,
		stopChan:     make(chan struct{}),
		stoppedChan:  make(chan struct{}),
	}
}

// Start begins the background eviction of idle sessions
func (m *Manager) Start(ctx context.Context) {
	m.logger.Info("Starting session manager", zap.Duration("idleTimeout", m.idleTimeout))
	go m.evictLoop(ctx)
}

// Get returns the session of ownerID, loading it if needed.
// A failed load is not cached so the next call retries it.
func (m *Manager) Get(ctx context.Context, ownerID string) (*Session, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewAuthRequiredError("")
	}

	m.mu.Lock()
	if e, ok := m.sessions[ownerID]; ok {
		e.lastUsed = m.now()
		m.mu.Unlock()

		select {
		case <-e.ready:
			if e.err != nil {
				return nil, e.err
			}
			// Closed meanwhile: forget the entry and open a fresh session
			if e.session.Closed() {
				m.forget(ownerID, e)
				return m.Get(ctx, ownerID)
			}
			return e.session, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e := &entry{ready: make(chan struct{}), lastUsed: m.now()}
	m.sessions[ownerID] = e
	m.mu.Unlock()

	s, err := Open(ctx, m.workerCtx, ownerID, m.deps)

	m.mu.Lock()
	e.session, e.err = s, err
	if err != nil {
		delete(m.sessions, ownerID)
	}
	count := m.loadedLocked()
	m.mu.Unlock()
	close(e.ready)

	m.deps.Metrics.SetActiveSessions(count)
	if err != nil {
		m.logger.Warn("Failed to open session", zap.String("userID", ownerID), zap.Error(err))
		return nil, err
	}
	m.logger.Info("Session opened", zap.String("userID", ownerID))
	return s, nil
}

// Evict closes and forgets the session of ownerID
func (m *Manager) Evict(ctx context.Context, ownerID string) error {
	_, err := m.evict(ctx, ownerID, func(*entry) bool { return true })
	return err
}

// evict removes ownerID's entry when evictable approves it. The check runs under
// the manager lock so a concurrent Get either keeps the session or finds it gone.
func (m *Manager) evict(ctx context.Context, ownerID string, evictable func(*entry) bool) (bool, error) {
	m.mu.Lock()
	e, ok := m.sessions[ownerID]
	if ok && !evictable(e) {
		m.mu.Unlock()
		return false, nil
	}
	if ok {
		delete(m.sessions, ownerID)
	}
	count := m.loadedLocked()
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	m.deps.Metrics.SetActiveSessions(count)

	<-e.ready
	if e.session == nil {
		return true, nil
	}
	return true, e.session.Close(ctx)
}

// forget drops ownerID's entry if it is still e
func (m *Manager) forget(ownerID string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[ownerID] == e {
		delete(m.sessions, ownerID)
	}
}

// WaitAll blocks until every loaded session has attempted its queued writes
func (m *Manager) WaitAll(ctx context.Context) error {
	m.mu.Lock()
	loaded := make([]*Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		select {
		case <-e.ready:
			if e.session != nil {
				loaded = append(loaded, e.session)
			}
		default:
		}
	}
	m.mu.Unlock()

	for _, s := range loaded {
		if err := s.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of loaded sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadedLocked()
}

// Stop drains and closes every session
func (m *Manager) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})

	m.mu.Lock()
	owners := make([]string, 0, len(m.sessions))
	for owner := range m.sessions {
		owners = append(owners, owner)
	}
	m.mu.Unlock()

	var firstErr error
	for _, owner := range owners {
		if err := m.Evict(ctx, owner); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.cancelWorker()
	m.logger.Info("Session manager stopped", zap.Int("closed", len(owners)))
	return firstErr
}

// EvictIdle closes sessions unused for longer than the idle timeout
func (m *Manager) EvictIdle(ctx context.Context) int {
	cutoff := m.now().Add(-m.idleTimeout)

	// Collect candidates
	m.mu.Lock()
	var idle []string
	for owner, e := range m.sessions {
		if isIdle(e, cutoff) {
			idle = append(idle, owner)
		}
	}
	m.mu.Unlock()

	// A Get between collection and eviction refreshes lastUsed, so re-check
	evicted := 0
	for _, owner := range idle {
		ok, err := m.evictIdle(ctx, owner, cutoff)
		if err != nil {
			m.logger.Warn("Failed to close idle session", zap.String("userID", owner), zap.Error(err))
		}
		if ok {
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Debug("Evicted idle sessions", zap.Int("count", evicted))
	}
	return evicted
}

func (m *Manager) evictIdle(ctx context.Context, ownerID string, cutoff time.Time) (bool, error) {
	return m.evict(ctx, ownerID, func(e *entry) bool { return isIdle(e, cutoff) })
}

// isIdle must be called with m.mu held
func isIdle(e *entry, cutoff time.Time) bool {
	return e.session != nil && e.lastUsed.Before(cutoff)
}

func (m *Manager) evictLoop(ctx context.Context) {
	defer close(m.stoppedChan)

	interval := m.idleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.EvictIdle(ctx)
		}
	}
}

func (m *Manager) loadedLocked() int {
	n := 0
	for _, e := range m.sessions {
		if e.session != nil {
			n++
		}
	}
	return n
}
