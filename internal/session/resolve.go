package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/haldane/pkgd/internal/domain"
	"github.com/haldane/pkgd/internal/service"
	"go.uber.org/zap"
)

// resolveDeadline bounds the local lookup. The remote side times out on its
// own; an empty reply before that beats a perfect reply after it.
const resolveDeadline = 3 * time.Second

// Sender is where replies go; satisfied by *Client.
type Sender interface {
	Send(env *domain.Envelope)
}

// ResolveHandler answers ds_resolve requests during a live session. The
// backend matched vectors against the transcript but stored no text, so it
// asks the device for the text behind the matched node ids.
type ResolveHandler struct {
	userID string
	graph  domain.GraphStore
	sender Sender
	logger *zap.Logger
}

func NewResolveHandler(userID string, graph domain.GraphStore, sender Sender, logger *zap.Logger) *ResolveHandler {
	return &ResolveHandler{userID: userID, graph: graph, sender: sender, logger: logger}
}

// Register attaches the handler to the session client.
func (h *ResolveHandler) Register(c *Client) {
	c.Handle(domain.MsgTypeResolve, h.HandleResolve)
}

// HandleResolve always replies, even with an empty node list: the remote
// side must never be left waiting on a failed local lookup.
func (h *ResolveHandler) HandleResolve(ctx context.Context, env *domain.Envelope) {
	var req domain.ResolveRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		h.logger.Warn("unparseable resolve request", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, resolveDeadline)
	defer cancel()

	nodes := h.lookup(ctx, req.NodeIDs)

	reply := domain.ContextReply{SessionID: req.SessionID, Nodes: nodes}
	payload, err := json.Marshal(reply)
	if err != nil {
		h.logger.Error("marshal context reply", zap.Error(err))
		return
	}

	h.sender.Send(&domain.Envelope{
		Type:      domain.MsgTypeContext,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})

	h.logger.Debug("answered resolve request",
		zap.String("session_id", req.SessionID),
		zap.Int("requested", len(req.NodeIDs)),
		zap.Int("returned", len(nodes)))
}

// lookup maps the requested ids to their node text. Missing ids are dropped
// silently; an unreadable graph yields an empty list.
func (h *ResolveHandler) lookup(ctx context.Context, nodeIDs []string) []domain.ContextNode {
	nodes := []domain.ContextNode{}

	pkg, err := h.graph.Load(ctx, h.userID)
	if err != nil {
		h.logger.Warn("resolve lookup failed, replying empty", zap.Error(err))
		return nodes
	}

	for _, id := range nodeIDs {
		if n, ok := pkg.Nodes[id]; ok {
			nodes = append(nodes, domain.ContextNode{ID: n.ID, Text: service.NodeToText(n)})
		}
	}
	return nodes
}
