package service

import (
	"context"
	"fmt"

	"github.com/haldane/pkgd/internal/domain"
	"go.uber.org/zap"
)

// KillSwitch erases a user's digital self: the encrypted graph, the sync
// watermark, the remote vectors (best effort), and the encryption key.
// There is no undo; rebuilding means re-running ingestion from scratch.
type KillSwitch struct {
	graph  domain.GraphStore
	keys   domain.KeyManager
	sync   *SyncService
	logger *zap.Logger
}

func NewKillSwitch(graph domain.GraphStore, keys domain.KeyManager, syncSvc *SyncService, logger *zap.Logger) *KillSwitch {
	return &KillSwitch{graph: graph, keys: keys, sync: syncSvc, logger: logger}
}

// Erase wipes everything for the user. The remote purge goes out first,
// while the node ids are still readable; local erasure proceeds even if the
// graph could not be read.
func (k *KillSwitch) Erase(ctx context.Context, userID string) error {
	var nodeIDs []string
	if pkg, err := k.graph.Load(ctx, userID); err == nil {
		for id := range pkg.Nodes {
			nodeIDs = append(nodeIDs, id)
		}
	} else {
		k.logger.Warn("erasing without remote purge, graph unreadable",
			zap.String("user_id", userID), zap.Error(err))
	}
	if k.sync != nil {
		k.sync.SyncTombstones(ctx, userID, nodeIDs)
	}

	if err := k.graph.Wipe(ctx, userID); err != nil {
		return fmt.Errorf("wipe graph: %w", err)
	}

	if err := k.keys.DeleteKey(userID); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}

	k.logger.Info("digital self erased",
		zap.String("user_id", userID),
		zap.Int("purged_nodes", len(nodeIDs)))
	return nil
}
