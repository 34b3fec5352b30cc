package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haldane/pkgd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNodeToText(t *testing.T) {
	tests := []struct {
		name string
		node domain.Node
		want string
	}{
		{
			name: "person with relationship only",
			node: domain.Node{
				Type: domain.NodeTypePerson, Label: "Alice",
				Data: domain.NodeData{Relationship: "colleague"},
			},
			want: "Alice — colleague",
		},
		{
			name: "person with all fields",
			node: domain.Node{
				Type: domain.NodeTypePerson, Label: "Bob",
				Data: domain.NodeData{
					Relationship: "friend", Organization: "Initech", Signal: "calls weekly",
				},
			},
			want: "Bob — friend, Initech, calls weekly",
		},
		{
			name: "place",
			node: domain.Node{
				Type: domain.NodeTypePlace, Label: "Flat White",
				Data: domain.NodeData{Category: "cafe", Address: "12 Berwick St"},
			},
			want: "Flat White — cafe, 12 Berwick St",
		},
		{
			name: "trait with context",
			node: domain.Node{
				Type: domain.NodeTypeTrait, Label: "Night Owl",
				Data: domain.NodeData{Context: "active past midnight"},
			},
			want: "Night Owl — active past midnight",
		},
		{
			name: "event with attendees",
			node: domain.Node{
				Type: domain.NodeTypeEvent, Label: "Standup",
				Data: domain.NodeData{
					Date: "2024-01-02", Location: "Zoom",
					Attendees: []string{"Alice", "Bob"},
				},
			},
			want: "Standup — 2024-01-02, Zoom, with Alice, Bob",
		},
		{
			name: "bare label, no fields",
			node: domain.Node{Type: domain.NodeTypeInterest, Label: "Running"},
			want: "Running",
		},
		{
			name: "fact with value",
			node: domain.Node{
				Type: domain.NodeTypeFact, Label: "Coffee order",
				Data: domain.NodeData{Value: "oat flat white"},
			},
			want: "Coffee order — oat flat white",
		},
		{
			name: "fact projects value only",
			node: domain.Node{
				Type: domain.NodeTypeFact, Label: "Called mum",
				Data: domain.NodeData{Context: "weekly call"},
			},
			want: "Called mum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NodeToText(&tt.node))
		})
	}
}

func TestDelta(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	nodes := map[string]*domain.Node{
		// Updated after last sync: included.
		"event_standup": {ID: "event_standup", UpdatedAt: t2, SyncedAt: &t1},
		// Never synced: included.
		"event_retro": {ID: "event_retro", UpdatedAt: t1},
		// Synced exactly at update time: excluded.
		"event_demo": {ID: "event_demo", UpdatedAt: t2, SyncedAt: &t2},
	}

	delta := Delta(nodes)
	ids := make(map[string]bool)
	for _, n := range delta {
		ids[n.ID] = true
	}

	assert.Len(t, delta, 2)
	assert.True(t, ids["event_standup"])
	assert.True(t, ids["event_retro"])
	assert.False(t, ids["event_demo"])
}

func newSyncFixture() (*SyncService, *mockGraphStore, *mockBlobStore, *mockPusher) {
	graph := newMockGraphStore()
	blobs := newMockBlobStore()
	pusher := &mockPusher{}
	return NewSyncService(graph, blobs, pusher, zap.NewNop()), graph, blobs, pusher
}

func TestSyncToBackendPushesAndStamps(t *testing.T) {
	svc, graph, _, pusher := newSyncFixture()
	ctx := context.Background()

	_, err := graph.StoreFact(ctx, "u1", domain.FactInput{
		Label: "Night Owl", Type: domain.NodeTypeTrait,
		Confidence: 0.85, Provenance: domain.ProvenanceInferred,
	})
	require.NoError(t, err)

	result, err := svc.SyncToBackend(ctx, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 0, result.Skipped)
	assert.Empty(t, result.Error)
	assert.Equal(t, 1, pusher.pushCount())

	// Everything stamped: the next delta is empty.
	pkg, err := graph.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, Delta(pkg.Nodes))
}

func TestSyncToBackendEmptyDeltaSkipsNetwork(t *testing.T) {
	svc, graph, _, pusher := newSyncFixture()
	ctx := context.Background()

	node, err := graph.StoreFact(ctx, "u1", domain.FactInput{
		Label: "London", Type: domain.NodeTypePlace,
		Confidence: 0.9, Provenance: domain.ProvenanceInferred,
	})
	require.NoError(t, err)
	require.NoError(t, graph.StampSynced(ctx, "u1", []string{node.ID}, time.Now().UTC()))

	result, err := svc.SyncToBackend(ctx, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Synced)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, pusher.pushCount())
}

func TestSyncToBackendForceResyncsEverything(t *testing.T) {
	svc, graph, _, pusher := newSyncFixture()
	ctx := context.Background()

	node, err := graph.StoreFact(ctx, "u1", domain.FactInput{
		Label: "London", Type: domain.NodeTypePlace,
		Confidence: 0.9, Provenance: domain.ProvenanceInferred,
	})
	require.NoError(t, err)
	require.NoError(t, graph.StampSynced(ctx, "u1", []string{node.ID}, time.Now().UTC()))

	result, err := svc.SyncToBackend(ctx, "u1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, pusher.pushCount())
}

func TestSyncToBackendFailureStampsNothing(t *testing.T) {
	svc, graph, blobs, pusher := newSyncFixture()
	pusher.pushErr = errors.New("backend returned 503")
	ctx := context.Background()

	_, err := graph.StoreFact(ctx, "u1", domain.FactInput{
		Label: "Night Owl", Type: domain.NodeTypeTrait,
		Confidence: 0.85, Provenance: domain.ProvenanceInferred,
	})
	require.NoError(t, err)

	result, err := svc.SyncToBackend(ctx, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Synced)
	assert.Contains(t, result.Error, "503")

	// All-or-nothing: nothing stamped, nothing recorded as a success.
	pkg, err := graph.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, Delta(pkg.Nodes), 1)

	last, err := blobs.LastSyncAt(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestSyncTombstonesBestEffort(t *testing.T) {
	svc, _, _, pusher := newSyncFixture()
	ctx := context.Background()

	svc.SyncTombstones(ctx, "u1", []string{"node_a", "node_b"})
	require.Len(t, pusher.purges, 1)
	assert.Equal(t, []string{"node_a", "node_b"}, pusher.purges[0])

	// Failures are swallowed, and empty lists never hit the network.
	pusher.purgeErr = errors.New("unreachable")
	svc.SyncTombstones(ctx, "u1", []string{"node_c"})
	svc.SyncTombstones(ctx, "u1", nil)
	assert.Len(t, pusher.purges, 1)
}

func TestDue(t *testing.T) {
	svc, _, blobs, _ := newSyncFixture()
	ctx := context.Background()

	// Never synced: due.
	due, err := svc.Due(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, due)

	// Fresh sync: not due.
	require.NoError(t, blobs.SetLastSyncAt(ctx, "u1", time.Now()))
	due, err = svc.Due(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, due)

	// Stale sync: due again.
	require.NoError(t, blobs.SetLastSyncAt(ctx, "u1", time.Now().Add(-7*time.Hour)))
	due, err = svc.Due(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, due)
}

func TestKillSwitchErase(t *testing.T) {
	graph := newMockGraphStore()
	blobs := newMockBlobStore()
	pusher := &mockPusher{}
	keys := &mockKeyManager{}
	syncSvc := NewSyncService(graph, blobs, pusher, zap.NewNop())
	ks := NewKillSwitch(graph, keys, syncSvc, zap.NewNop())
	ctx := context.Background()

	node, err := graph.StoreFact(ctx, "u1", domain.FactInput{
		Label: "London", Type: domain.NodeTypePlace,
		Confidence: 0.9, Provenance: domain.ProvenanceInferred,
	})
	require.NoError(t, err)

	require.NoError(t, ks.Erase(ctx, "u1"))

	// Remote purge was attempted with the erased ids.
	require.Len(t, pusher.purges, 1)
	assert.Equal(t, []string{node.ID}, pusher.purges[0])

	// Graph and key are gone.
	pkg, err := graph.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, pkg.Nodes)
	assert.Equal(t, []string{"u1"}, keys.deleted)
}

func TestKillSwitchEraseSwallowsPurgeFailure(t *testing.T) {
	graph := newMockGraphStore()
	pusher := &mockPusher{purgeErr: errors.New("unreachable")}
	keys := &mockKeyManager{}
	syncSvc := NewSyncService(graph, newMockBlobStore(), pusher, zap.NewNop())
	ks := NewKillSwitch(graph, keys, syncSvc, zap.NewNop())
	ctx := context.Background()

	_, err := graph.StoreFact(ctx, "u1", domain.FactInput{
		Label: "London", Type: domain.NodeTypePlace,
		Confidence: 0.9, Provenance: domain.ProvenanceInferred,
	})
	require.NoError(t, err)

	// Local erasure proceeds even when the remote purge fails.
	require.NoError(t, ks.Erase(ctx, "u1"))
	assert.Equal(t, []string{"u1"}, keys.deleted)
}

// mockKeyManager records deletions.
type mockKeyManager struct {
	deleted []string
}

func (m *mockKeyManager) GetOrCreateKey(userID string) ([]byte, error) {
	return make([]byte, 32), nil
}

func (m *mockKeyManager) DeleteKey(userID string) error {
	m.deleted = append(m.deleted, userID)
	return nil
}
