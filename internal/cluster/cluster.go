// Package cluster maintains a best-effort registry of peer cache nodes.
//
// The manager tracks liveness and round-trip lag only; it intentionally does
// not replicate or reconcile cache contents. Real replication must be
// designed separately and supplied through the Transport interface.
package cluster

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gencache/gencache/pkg/errors"
)

// Status represents the liveness state of a peer node.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusSyncing  Status = "syncing"
)

// Node is a peer cache instance tracked for liveness and latency. Nodes are
// created on registration, mutated by each sync attempt, and removed only on
// explicit unregistration.
type Node struct {
	ID            string        `json:"id"`
	URL           string        `json:"url"`
	Status        Status        `json:"status"`
	LastHeartbeat time.Time     `json:"last_heartbeat"`
	Lag           time.Duration `json:"lag"`
}

// Transport performs the liveness exchange with a peer. A production
// deployment backs this with an actual RPC; the default is a simulated
// loopback.
type Transport interface {
	Ping(ctx context.Context, url string) (time.Duration, error)
}

// LoopbackTransport is the default simulated transport. It reports every
// peer reachable with a fixed lag and exchanges no data.
type LoopbackTransport struct {
	Lag time.Duration
}

// Ping implements Transport.
func (t LoopbackTransport) Ping(ctx context.Context, url string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return t.Lag, nil
}

// Config represents cluster sync configuration.
type Config struct {
	SyncInterval time.Duration `yaml:"sync_interval"`
	SyncTimeout  time.Duration `yaml:"sync_timeout"`
}

// applyDefaults fills zero-valued configuration fields.
func (c *Config) applyDefaults() {
	if c.SyncInterval <= 0 {
		c.SyncInterval = 30 * time.Second
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = 5 * time.Second
	}
}

// Manager owns the peer registry and the periodic sync loop.
type Manager struct {
	mu     sync.RWMutex
	config Config
	nodes  map[string]*Node

	transport Transport
	logger    *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewManager creates a cluster manager. A nil transport selects the
// simulated loopback; a nil logger selects slog.Default.
func NewManager(config Config, transport Transport, logger *slog.Logger) *Manager {
	config.applyDefaults()
	if transport == nil {
		transport = LoopbackTransport{Lag: time.Millisecond}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		config:    config,
		nodes:     make(map[string]*Node),
		transport: transport,
		logger:    logger,
	}
}

// NodeID derives the stable identifier for a peer URL.
func NodeID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}

// AddNode registers a peer and returns its node ID. Registering the same URL
// twice returns the existing ID without resetting its state.
func (m *Manager) AddNode(url string) string {
	id := NodeID(url)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[id]; !exists {
		m.nodes[id] = &Node{
			ID:     id,
			URL:    url,
			Status: StatusInactive,
		}
		m.logger.Info("cluster node registered", "id", id, "url", url)
	}
	return id
}

// RemoveNode unregisters a peer by ID.
func (m *Manager) RemoveNode(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[id]; !exists {
		return false
	}
	delete(m.nodes, id)
	m.logger.Info("cluster node removed", "id", id)
	return true
}

// Nodes returns a stable-ordered copy of the registry.
func (m *Manager) Nodes() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, *n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].URL < nodes[j].URL })
	return nodes
}

// SyncAll attempts a liveness exchange with every registered peer. Failures
// mark the node inactive and are logged; they never interrupt cache
// operations.
func (m *Manager) SyncAll(ctx context.Context) {
	m.mu.Lock()
	targets := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		n.Status = StatusSyncing
		targets = append(targets, n)
	}
	m.mu.Unlock()

	for _, n := range targets {
		m.syncNode(ctx, n.ID, n.URL)
	}
}

func (m *Manager) syncNode(ctx context.Context, id, url string) {
	pingCtx, cancel := context.WithTimeout(ctx, m.config.SyncTimeout)
	lag, err := m.transport.Ping(pingCtx, url)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	n, exists := m.nodes[id]
	if !exists {
		// Unregistered while the ping was in flight.
		return
	}

	if err != nil {
		n.Status = StatusInactive
		m.logger.Warn("cluster node sync failed",
			"id", id, "url", url,
			"error", errors.Wrap(err, errors.ErrCodeNodeUnreachable, "liveness exchange failed").WithComponent("cluster"))
		return
	}

	n.Status = StatusActive
	n.LastHeartbeat = time.Now()
	n.Lag = lag
}

// Start launches the periodic sync loop.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.New(errors.ErrCodeAlreadyStarted, "cluster manager already started").
			WithComponent("cluster")
	}
	m.started = true
	m.stopCh = make(chan struct{})

	m.wg.Add(1)
	go m.syncLoop()
	return nil
}

// Stop halts the sync loop and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) syncLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.SyncAll(context.Background())
		}
	}
}
