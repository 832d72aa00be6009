package server

import (
	"sync"

	"github.com/charmbracelet/log"
)

// TableSummary holds lightweight table metadata for clients.
type TableSummary struct {
	ID       string `json:"id"`
	Seated   int    `json:"seated"`
	MaxSeats int    `json:"maxSeats"`
	Status   string `json:"status"`
}

// Manager is the table registry: one independently hosted table per
// configured id, populated at startup. Tables share no state; the registry
// only resolves ids to hosts.
type Manager struct {
	logger    *log.Logger
	mu        sync.RWMutex
	hosts     map[string]*TableHost
	defaultID string
}

// NewManager constructs an empty registry.
func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		logger: logger.WithPrefix("tables"),
		hosts:  make(map[string]*TableHost),
	}
}

// Register adds a host to the registry. The first registered table becomes
// the default for connections that name none.
func (m *Manager) Register(host *TableHost) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hosts[host.ID()] = host
	if m.defaultID == "" {
		m.defaultID = host.ID()
	}
	m.logger.Info("table registered", "table", host.ID())
}

// Get retrieves a host by table id.
func (m *Manager) Get(id string) (*TableHost, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	host, ok := m.hosts[id]
	return host, ok
}

// Default returns the default table host, if any.
func (m *Manager) Default() (*TableHost, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	host, ok := m.hosts[m.defaultID]
	return host, ok
}

// List returns a snapshot of table summaries.
func (m *Manager) List() []TableSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]TableSummary, 0, len(m.hosts))
	for _, host := range m.hosts {
		summaries = append(summaries, host.Summary())
	}
	return summaries
}
