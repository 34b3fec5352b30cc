package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/haldane/pkgd/internal/domain"
)

// mockGraphStore implements domain.GraphStore over in-memory documents.
type mockGraphStore struct {
	mu      sync.Mutex
	pkgs    map[string]*domain.PKG
	loadErr error
}

func newMockGraphStore() *mockGraphStore {
	return &mockGraphStore{pkgs: make(map[string]*domain.PKG)}
}

func (m *mockGraphStore) Load(ctx context.Context, userID string) (*domain.PKG, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	pkg, ok := m.pkgs[userID]
	if !ok {
		return domain.NewPKG(userID), nil
	}
	return pkg, nil
}

func (m *mockGraphStore) Save(ctx context.Context, pkg *domain.PKG) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg.LastUpdated = time.Now().UTC()
	m.pkgs[pkg.UserID] = pkg
	return nil
}

func (m *mockGraphStore) UpsertNode(ctx context.Context, userID string, node *domain.Node) (*domain.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg := m.pkg(userID)
	now := time.Now().UTC()
	if existing, ok := pkg.Nodes[node.ID]; ok {
		node.CreatedAt = existing.CreatedAt
	} else {
		node.CreatedAt = now
	}
	node.UpdatedAt = now
	pkg.Nodes[node.ID] = node
	return node, nil
}

func (m *mockGraphStore) UpsertEdge(ctx context.Context, userID string, edge *domain.Edge) (*domain.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg := m.pkg(userID)
	edge.UpdatedAt = time.Now().UTC()
	pkg.Edges[edge.ID] = edge
	return edge, nil
}

func (m *mockGraphStore) StoreFact(ctx context.Context, userID string, fact domain.FactInput) (*domain.Node, error) {
	return m.UpsertNode(ctx, userID, &domain.Node{
		ID:         domain.CanonicalNodeID(fact.Type, fact.Label),
		Type:       fact.Type,
		Label:      fact.Label,
		Data:       fact.Data,
		Confidence: fact.Confidence,
		Provenance: fact.Provenance,
	})
}

func (m *mockGraphStore) RegisterPerson(ctx context.Context, userID, name string, details domain.PersonDetails, prov domain.Provenance) (*domain.Node, error) {
	return m.UpsertNode(ctx, userID, &domain.Node{
		ID:    domain.PersonNodeID(name),
		Type:  domain.NodeTypePerson,
		Label: name,
		Data: domain.NodeData{
			Email:        details.Email,
			Phone:        details.Phone,
			Role:         details.Role,
			Relationship: details.Relationship,
			Organization: details.Company,
		},
		Confidence: 0.9,
		Provenance: prov,
	})
}

func (m *mockGraphStore) RemoveNode(ctx context.Context, userID, nodeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg := m.pkg(userID)
	if _, ok := pkg.Nodes[nodeID]; !ok {
		return false, nil
	}
	delete(pkg.Nodes, nodeID)
	return true, nil
}

func (m *mockGraphStore) StampSynced(ctx context.Context, userID string, nodeIDs []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg := m.pkg(userID)
	for _, id := range nodeIDs {
		if n, ok := pkg.Nodes[id]; ok {
			t := at
			n.SyncedAt = &t
		}
	}
	return nil
}

func (m *mockGraphStore) Wipe(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pkgs, userID)
	return nil
}

func (m *mockGraphStore) pkg(userID string) *domain.PKG {
	pkg, ok := m.pkgs[userID]
	if !ok {
		pkg = domain.NewPKG(userID)
		m.pkgs[userID] = pkg
	}
	return pkg
}

// mockBlobStore tracks sync watermarks only; resolver and sync tests never
// touch blobs directly.
type mockBlobStore struct {
	mu    sync.Mutex
	syncs map[string]time.Time
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{syncs: make(map[string]time.Time)}
}

func (m *mockBlobStore) GetBlob(ctx context.Context, userID string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBlobStore) PutBlob(ctx context.Context, userID string, blob []byte) error {
	return errors.New("not implemented")
}

func (m *mockBlobStore) DeleteBlob(ctx context.Context, userID string) error { return nil }

func (m *mockBlobStore) LastSyncAt(ctx context.Context, userID string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.syncs[userID]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

func (m *mockBlobStore) SetLastSyncAt(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs[userID] = at
	return nil
}

func (m *mockBlobStore) ClearSyncState(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.syncs, userID)
	return nil
}

// mockPusher records pushes and purges, optionally failing.
type mockPusher struct {
	mu       sync.Mutex
	pushes   [][]domain.NodeText
	purges   [][]string
	pushErr  error
	purgeErr error
}

func (m *mockPusher) PushNodes(ctx context.Context, userID string, nodes []domain.NodeText) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pushErr != nil {
		return m.pushErr
	}
	m.pushes = append(m.pushes, nodes)
	return nil
}

func (m *mockPusher) PurgeNodes(ctx context.Context, userID string, nodeIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.purgeErr != nil {
		return m.purgeErr
	}
	m.purges = append(m.purges, nodeIDs)
	return nil
}

func (m *mockPusher) pushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pushes)
}
