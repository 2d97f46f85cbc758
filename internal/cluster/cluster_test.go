package cluster

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	lag  time.Duration
	err  error
	urls []string
}

func (t *fakeTransport) Ping(ctx context.Context, url string) (time.Duration, error) {
	t.urls = append(t.urls, url)
	if t.err != nil {
		return 0, t.err
	}
	return t.lag, nil
}

// TestNodeID tests that node IDs are stable and URL-derived.
func TestNodeID(t *testing.T) {
	id := NodeID("http://cache-1:8080")
	assert.Len(t, id, 16)
	assert.Equal(t, id, NodeID("http://cache-1:8080"))
	assert.NotEqual(t, id, NodeID("http://cache-2:8080"))
}

// TestManager_AddRemoveNode tests registration semantics.
func TestManager_AddRemoveNode(t *testing.T) {
	m := NewManager(Config{}, nil, nil)

	id := m.AddNode("http://cache-1:8080")
	require.NotEmpty(t, id)

	// Re-registering the same URL returns the existing ID.
	assert.Equal(t, id, m.AddNode("http://cache-1:8080"))
	assert.Len(t, m.Nodes(), 1)

	assert.True(t, m.RemoveNode(id))
	assert.False(t, m.RemoveNode(id), "second removal must report absence")
	assert.Empty(t, m.Nodes())
}

// TestManager_NodesSorted tests the stable ordering of the registry view.
func TestManager_NodesSorted(t *testing.T) {
	m := NewManager(Config{}, nil, nil)
	m.AddNode("http://cache-2:8080")
	m.AddNode("http://cache-1:8080")

	nodes := m.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "http://cache-1:8080", nodes[0].URL)
	assert.Equal(t, "http://cache-2:8080", nodes[1].URL)
}

// TestManager_SyncAll tests liveness marking on successful exchange.
func TestManager_SyncAll(t *testing.T) {
	transport := &fakeTransport{lag: 5 * time.Millisecond}
	m := NewManager(Config{}, transport, nil)
	m.AddNode("http://cache-1:8080")
	m.AddNode("http://cache-2:8080")

	m.SyncAll(context.Background())

	nodes := m.Nodes()
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		assert.Equal(t, StatusActive, n.Status)
		assert.Equal(t, 5*time.Millisecond, n.Lag)
		assert.False(t, n.LastHeartbeat.IsZero())
	}
	assert.Len(t, transport.urls, 2)
}

// TestManager_SyncFailure tests that unreachable peers go inactive without
// affecting the registry.
func TestManager_SyncFailure(t *testing.T) {
	transport := &fakeTransport{err: fmt.Errorf("connection refused")}
	m := NewManager(Config{}, transport, nil)
	m.AddNode("http://cache-1:8080")

	m.SyncAll(context.Background())

	nodes := m.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, StatusInactive, nodes[0].Status)
	assert.True(t, nodes[0].LastHeartbeat.IsZero())
}

// TestManager_StartStop tests the sync loop lifecycle.
func TestManager_StartStop(t *testing.T) {
	m := NewManager(Config{SyncInterval: time.Hour}, nil, nil)

	require.NoError(t, m.Start())
	require.Error(t, m.Start(), "double Start must fail")

	m.Stop()
	m.Stop() // idempotent

	// The manager restarts cleanly after Stop.
	require.NoError(t, m.Start())
	m.Stop()
}

// TestLoopbackTransport tests the default simulated transport.
func TestLoopbackTransport(t *testing.T) {
	lt := LoopbackTransport{Lag: time.Millisecond}

	lag, err := lt.Ping(context.Background(), "http://anywhere")
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, lag)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = lt.Ping(ctx, "http://anywhere")
	assert.Error(t, err, "cancelled context must fail the exchange")
}
