package domain

import (
	"context"
	"time"
)

// GraphStore is the authoritative encrypted persistence of one PKG per user.
// Every mutator runs a full load-modify-save cycle under a per-user lock.
type GraphStore interface {
	Load(ctx context.Context, userID string) (*PKG, error)
	Save(ctx context.Context, pkg *PKG) error
	UpsertNode(ctx context.Context, userID string, node *Node) (*Node, error)
	UpsertEdge(ctx context.Context, userID string, edge *Edge) (*Edge, error)
	StoreFact(ctx context.Context, userID string, fact FactInput) (*Node, error)
	RegisterPerson(ctx context.Context, userID, name string, details PersonDetails, prov Provenance) (*Node, error)
	RemoveNode(ctx context.Context, userID, nodeID string) (bool, error)
	StampSynced(ctx context.Context, userID string, nodeIDs []string, at time.Time) error
	Wipe(ctx context.Context, userID string) error
}

// FactInput is what ingestion collaborators hand to StoreFact.
type FactInput struct {
	Label      string     `json:"label"`
	Type       NodeType   `json:"type"`
	Data       NodeData   `json:"data,omitempty"`
	Confidence float32    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
}

// PersonDetails are the optional contact fields for RegisterPerson.
type PersonDetails struct {
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Role         string `json:"role,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	Company      string `json:"company,omitempty"`
}

// KeyManager produces and caches exactly one symmetric key per user.
type KeyManager interface {
	GetOrCreateKey(userID string) ([]byte, error)
	DeleteKey(userID string) error
}

// BlobStore persists the opaque encrypted document blobs and the per-user
// sync watermarks.
type BlobStore interface {
	GetBlob(ctx context.Context, userID string) ([]byte, error)
	PutBlob(ctx context.Context, userID string, blob []byte) error
	DeleteBlob(ctx context.Context, userID string) error
	LastSyncAt(ctx context.Context, userID string) (*time.Time, error)
	SetLastSyncAt(ctx context.Context, userID string, at time.Time) error
	ClearSyncState(ctx context.Context, userID string) error
}

// NodeText is one {node_id, text} pair pushed to the backend for embedding.
// The backend embeds the text and discards it, retaining only the vector.
type NodeText struct {
	NodeID string `json:"node_id"`
	Text   string `json:"text"`
}

// Pusher is the outbound leg of the sync protocol.
type Pusher interface {
	PushNodes(ctx context.Context, userID string, nodes []NodeText) error
	PurgeNodes(ctx context.Context, userID string, nodeIDs []string) error
}
