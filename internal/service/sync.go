package service

import (
	"context"
	"strings"
	"time"

	"github.com/haldane/pkgd/internal/domain"
	"go.uber.org/zap"
)

// DefaultSyncInterval is how long a successful sync stays fresh.
const DefaultSyncInterval = 6 * time.Hour

// SyncService pushes node text to the backend for embedding and tracks
// per-node watermarks. The backend embeds each text and discards it; only
// vectors are retained remotely.
type SyncService struct {
	graph    domain.GraphStore
	blobs    domain.BlobStore
	pusher   domain.Pusher
	logger   *zap.Logger
	interval time.Duration
}

func NewSyncService(graph domain.GraphStore, blobs domain.BlobStore, pusher domain.Pusher, logger *zap.Logger) *SyncService {
	return &SyncService{
		graph:    graph,
		blobs:    blobs,
		pusher:   pusher,
		logger:   logger,
		interval: DefaultSyncInterval,
	}
}

func (s *SyncService) SetInterval(d time.Duration) {
	s.interval = d
}

// NodeToText projects a node to its embedding-ready string: the label,
// then the type-specific fields that are present, joined after an em-dash.
// Absent fields are skipped without placeholders.
func NodeToText(n *domain.Node) string {
	var parts []string
	appendIf := func(vs ...string) {
		for _, v := range vs {
			if v != "" {
				parts = append(parts, v)
			}
		}
	}

	switch n.Type {
	case domain.NodeTypePerson:
		appendIf(n.Data.Relationship, n.Data.Organization, n.Data.Signal)
	case domain.NodeTypePlace:
		appendIf(n.Data.Category, n.Data.Address)
	case domain.NodeTypeTrait, domain.NodeTypeInterest:
		appendIf(n.Data.Context)
	case domain.NodeTypeEvent:
		appendIf(n.Data.Date, n.Data.Location)
		if len(n.Data.Attendees) > 0 {
			parts = append(parts, "with "+strings.Join(n.Data.Attendees, ", "))
		}
	case domain.NodeTypeFact:
		appendIf(n.Data.Value)
	}

	if len(parts) == 0 {
		return n.Label
	}
	return n.Label + " — " + strings.Join(parts, ", ")
}

// Delta returns the nodes whose text has never been pushed or has changed
// since the last successful push.
func Delta(nodes map[string]*domain.Node) []*domain.Node {
	var out []*domain.Node
	for _, n := range nodes {
		if n.SyncedAt == nil || n.UpdatedAt.After(*n.SyncedAt) {
			out = append(out, n)
		}
	}
	return out
}

// Result reports one sync run. Error carries a network failure as data,
// never as a thrown error: sync is retried on the next run and must not
// block user-visible flow.
type Result struct {
	Synced  int    `json:"synced"`
	Deleted int    `json:"deleted"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// SyncToBackend pushes the delta (or everything, when forced) in a single
// batch. Stamping is all-or-nothing at response granularity: a non-success
// response marks nothing as synced.
func (s *SyncService) SyncToBackend(ctx context.Context, userID string, force bool) (*Result, error) {
	pkg, err := s.graph.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	var delta []*domain.Node
	if force {
		for _, n := range pkg.Nodes {
			delta = append(delta, n)
		}
	} else {
		delta = Delta(pkg.Nodes)
	}

	if len(delta) == 0 {
		s.logger.Debug("nothing to sync", zap.String("user_id", userID))
		return &Result{Skipped: len(pkg.Nodes)}, nil
	}

	payload := make([]domain.NodeText, 0, len(delta))
	ids := make([]string, 0, len(delta))
	for _, n := range delta {
		payload = append(payload, domain.NodeText{NodeID: n.ID, Text: NodeToText(n)})
		ids = append(ids, n.ID)
	}

	if err := s.pusher.PushNodes(ctx, userID, payload); err != nil {
		s.logger.Warn("sync push failed",
			zap.String("user_id", userID),
			zap.Int("nodes", len(payload)),
			zap.Error(err))
		return &Result{Skipped: len(pkg.Nodes) - len(delta), Error: err.Error()}, nil
	}

	now := time.Now().UTC()
	if err := s.graph.StampSynced(ctx, userID, ids, now); err != nil {
		return nil, err
	}
	if err := s.blobs.SetLastSyncAt(ctx, userID, now); err != nil {
		s.logger.Warn("failed to record sync watermark", zap.Error(err))
	}

	s.logger.Info("synced nodes to backend",
		zap.String("user_id", userID),
		zap.Int("synced", len(ids)))

	return &Result{Synced: len(ids), Skipped: len(pkg.Nodes) - len(delta)}, nil
}

// SyncTombstones tells the backend to purge vectors for deleted nodes.
// Best effort: a stale remote vector is low harm, so failures are logged
// and swallowed.
func (s *SyncService) SyncTombstones(ctx context.Context, userID string, deletedIDs []string) {
	if len(deletedIDs) == 0 {
		return
	}
	if err := s.pusher.PurgeNodes(ctx, userID, deletedIDs); err != nil {
		s.logger.Warn("tombstone push failed",
			zap.String("user_id", userID),
			zap.Int("ids", len(deletedIDs)),
			zap.Error(err))
	}
}

// Due reports whether a scheduled sync should run: no prior success, or the
// interval has elapsed since the last one.
func (s *SyncService) Due(ctx context.Context, userID string) (bool, error) {
	last, err := s.blobs.LastSyncAt(ctx, userID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	return time.Since(*last) > s.interval, nil
}
