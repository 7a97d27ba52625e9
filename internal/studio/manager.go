package studio

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultIdleTimeout is how long a workspace may stay unused.
	DefaultIdleTimeout = 24 * time.Hour

	cleanupInterval = time.Hour
)

// Factory builds the workspace of a user on first use.
type Factory func(userID string) *Workspace

type entry struct {
	workspace *Workspace
	lastUsed  time.Time
}

// Manager keeps one Workspace per user and closes workspaces that have
// been idle for longer than the idle timeout.
type Manager struct {
	factory     Factory
	idleTimeout time.Duration
	now         func() time.Time

	mu         sync.Mutex
	workspaces map[string]*entry

	stop context.CancelFunc
	done chan struct{}
}

type ManagerOption func(*Manager)

func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.idleTimeout = d }
}

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(factory Factory, opts ...ManagerOption) *Manager {
	m := &Manager{
		factory:     factory,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		workspaces:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns userID's workspace, creating it when needed, and marks it
// used.
func (m *Manager) Get(userID string) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.workspaces[userID]; ok {
		e.lastUsed = now
		return e.workspace
	}

	w := m.factory(userID)
	m.workspaces[userID] = &entry{workspace: w, lastUsed: now}
	logrus.WithField("user_id", userID).Debug("Workspace created")
	return w
}

// Remove closes and forgets userID's workspace.
func (m *Manager) Remove(userID string) {
	m.mu.Lock()
	e, ok := m.workspaces[userID]
	delete(m.workspaces, userID)
	m.mu.Unlock()

	if ok {
		e.workspace.Close()
	}
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// EvictIdle closes every workspace unused for longer than the idle
// timeout and returns how many were removed.
func (m *Manager) EvictIdle() int {
	now := m.now()

	m.mu.Lock()
	var stale []*Workspace
	for userID, e := range m.workspaces {
		if now.Sub(e.lastUsed) > m.idleTimeout {
			stale = append(stale, e.workspace)
			delete(m.workspaces, userID)
		}
	}
	remaining := len(m.workspaces)
	m.mu.Unlock()

	for _, w := range stale {
		w.Close()
	}
	if len(stale) > 0 {
		logrus.WithFields(logrus.Fields{
			"removed":   len(stale),
			"remaining": remaining,
		}).Info("Evicted idle workspaces")
	}
	return len(stale)
}

// Start runs EvictIdle periodically until Shutdown.
func (m *Manager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.stop = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.EvictIdle()
			}
		}
	}()
}

// Shutdown stops the cleanup loop and closes every workspace.
func (m *Manager) Shutdown() {
	if m.stop != nil {
		m.stop()
		<-m.done
	}

	m.mu.Lock()
	all := m.workspaces
	m.workspaces = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range all {
		e.workspace.Close()
	}
}
