package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/haldane/pkgd/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrLabelEmpty        = errors.New("label is required")
	ErrInvalidNodeType   = errors.New("invalid node type")
	ErrInvalidEdgeType   = errors.New("invalid edge type")
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
)

// DefaultPersonConfidence is personal-contact-grade: the user's own address
// book is trusted more than inferred facts.
const DefaultPersonConfidence = 0.9

// GraphStore is the only writer of PKG documents. Every mutator runs a full
// load-modify-save cycle on the whole encrypted blob; a per-user mutex
// restores the at-most-one-concurrent-writer invariant that the blob-level
// last-save-wins model otherwise breaks.
type GraphStore struct {
	blobs  domain.BlobStore
	keys   domain.KeyManager
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGraphStore(blobs domain.BlobStore, keys domain.KeyManager, logger *zap.Logger) *GraphStore {
	return &GraphStore{
		blobs:  blobs,
		keys:   keys,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *GraphStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// Load fetches and decrypts the user's graph. A missing blob, a wrong key,
// or a corrupted blob all degrade to a fresh empty graph: failing open keeps
// the assistant usable, and the warn log keeps the failure observable.
// Key-manager failure is the one fatal path.
func (s *GraphStore) Load(ctx context.Context, userID string) (*domain.PKG, error) {
	key, err := s.keys.GetOrCreateKey(userID)
	if err != nil {
		return nil, err
	}

	blob, err := s.blobs.GetBlob(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug("no pkg blob yet, starting empty", zap.String("user_id", userID))
			return domain.NewPKG(userID), nil
		}
		s.logger.Warn("pkg blob unreadable, starting empty",
			zap.String("user_id", userID), zap.Error(err))
		return domain.NewPKG(userID), nil
	}

	plaintext, err := Open(key, blob)
	if err != nil {
		s.logger.Warn("pkg blob undecryptable, starting empty",
			zap.String("user_id", userID), zap.Error(err))
		return domain.NewPKG(userID), nil
	}

	pkg := domain.NewPKG(userID)
	if err := json.Unmarshal(plaintext, pkg); err != nil {
		s.logger.Warn("pkg document unparseable, starting empty",
			zap.String("user_id", userID), zap.Error(err))
		return domain.NewPKG(userID), nil
	}
	return pkg, nil
}

// Save stamps, serializes, encrypts under a fresh nonce, and persists the
// whole document.
func (s *GraphStore) Save(ctx context.Context, pkg *domain.PKG) error {
	key, err := s.keys.GetOrCreateKey(pkg.UserID)
	if err != nil {
		return err
	}

	pkg.LastUpdated = time.Now().UTC()
	pkg.Revision++

	plaintext, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("serialize pkg: %w", err)
	}

	blob, err := Seal(key, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt pkg: %w", err)
	}

	if err := s.blobs.PutBlob(ctx, pkg.UserID, blob); err != nil {
		return fmt.Errorf("persist pkg: %w", err)
	}
	return nil
}

func (s *GraphStore) UpsertNode(ctx context.Context, userID string, node *domain.Node) (*domain.Node, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	pkg, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if existing, ok := pkg.Nodes[node.ID]; ok {
		node.CreatedAt = existing.CreatedAt
	} else {
		node.CreatedAt = now
	}
	node.UpdatedAt = now
	pkg.Nodes[node.ID] = node

	if err := s.Save(ctx, pkg); err != nil {
		return nil, err
	}
	return node, nil
}

func (s *GraphStore) UpsertEdge(ctx context.Context, userID string, edge *domain.Edge) (*domain.Edge, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	pkg, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Producers race: an edge may arrive before the node it references.
	// Keep the write, surface the dangling endpoint.
	for _, endpoint := range []string{edge.FromID, edge.ToID} {
		if _, ok := pkg.Nodes[endpoint]; !ok {
			s.logger.Warn("edge references missing node",
				zap.String("user_id", userID),
				zap.String("edge_id", edge.ID),
				zap.String("node_id", endpoint))
		}
	}

	now := time.Now().UTC()
	if existing, ok := pkg.Edges[edge.ID]; ok {
		edge.CreatedAt = existing.CreatedAt
	} else {
		edge.CreatedAt = now
	}
	edge.UpdatedAt = now
	pkg.Edges[edge.ID] = edge

	if err := s.Save(ctx, pkg); err != nil {
		return nil, err
	}
	return edge, nil
}

// StoreFact derives a slug id from the label and upserts. Canonical types
// merge repeat observations; everything else becomes a distinct node.
func (s *GraphStore) StoreFact(ctx context.Context, userID string, fact domain.FactInput) (*domain.Node, error) {
	if fact.Label == "" {
		return nil, ErrLabelEmpty
	}
	if !domain.ValidNodeType(string(fact.Type)) {
		return nil, ErrInvalidNodeType
	}
	if fact.Confidence < 0 || fact.Confidence > 1 {
		return nil, ErrInvalidConfidence
	}

	node := &domain.Node{
		ID:         domain.CanonicalNodeID(fact.Type, fact.Label),
		Type:       fact.Type,
		Label:      fact.Label,
		Data:       fact.Data,
		Confidence: fact.Confidence,
		Provenance: fact.Provenance,
	}
	return s.UpsertNode(ctx, userID, node)
}

func (s *GraphStore) RegisterPerson(ctx context.Context, userID, name string, details domain.PersonDetails, prov domain.Provenance) (*domain.Node, error) {
	if name == "" {
		return nil, ErrLabelEmpty
	}

	node := &domain.Node{
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
		Confidence: DefaultPersonConfidence,
		Provenance: prov,
	}
	return s.UpsertNode(ctx, userID, node)
}

// RemoveNode tombstones a node locally. The caller is responsible for the
// remote purge notification. Returns false if the node was not present.
func (s *GraphStore) RemoveNode(ctx context.Context, userID, nodeID string) (bool, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	pkg, err := s.Load(ctx, userID)
	if err != nil {
		return false, err
	}
	if _, ok := pkg.Nodes[nodeID]; !ok {
		return false, nil
	}
	delete(pkg.Nodes, nodeID)

	if err := s.Save(ctx, pkg); err != nil {
		return false, err
	}
	return true, nil
}

// StampSynced records a successful push on every listed node. Called only
// after the backend acknowledged the whole batch.
func (s *GraphStore) StampSynced(ctx context.Context, userID string, nodeIDs []string, at time.Time) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	pkg, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}
	for _, id := range nodeIDs {
		if n, ok := pkg.Nodes[id]; ok {
			t := at
			n.SyncedAt = &t
		}
	}
	return s.Save(ctx, pkg)
}

// Wipe removes the user's blob and sync watermark. Key removal is the kill
// switch's job; Wipe alone leaves an empty but usable account.
func (s *GraphStore) Wipe(ctx context.Context, userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.blobs.DeleteBlob(ctx, userID); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := s.blobs.ClearSyncState(ctx, userID); err != nil {
		return fmt.Errorf("clear sync state: %w", err)
	}
	return nil
}
