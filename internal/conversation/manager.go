package conversation

import (
	"log/slog"
	"sync"

	"github.com/jobtrail/jobtrail/internal/observability"
)

// Manager is the live table of sessions keyed by session ID. It only tracks
// lifecycle; session contents stay owned by their connection goroutines.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	defaultAgent string
	logger       *slog.Logger
	metrics      *observability.Metrics
}

func NewManager(defaultAgent string, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		defaultAgent: defaultAgent,
		logger:       logger.With("component", "conversation"),
		metrics:      metrics,
	}
}

// Open creates and registers the session for a new connection.
func (m *Manager) Open() *Session {
	s := NewSession(m.defaultAgent, m.logger)

	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveConnections.Inc()
	}
	m.logger.Info("session opened", "session_id", s.ID, "live", count)
	return s
}

// Close removes a session from the live table. Sessions are discarded, not
// archived; the application store is the only system of record.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return
	}
	if m.metrics != nil {
		m.metrics.ActiveConnections.Dec()
	}
	m.logger.Info("session closed", "session_id", id, "live", count)
}

// Get looks up a live session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count reports how many sessions are live.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// DefaultAgent is the agent name new and reset sessions start with.
func (m *Manager) DefaultAgent() string { return m.defaultAgent }
