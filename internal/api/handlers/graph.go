package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/haldane/pkgd/internal/domain"
	"github.com/haldane/pkgd/internal/keystore"
	"github.com/haldane/pkgd/internal/service"
	"github.com/haldane/pkgd/internal/store"
	"go.uber.org/zap"
)

// GraphHandler exposes the write entry points to on-device ingestion
// collaborators, plus the tombstone path.
type GraphHandler struct {
	graph   domain.GraphStore
	syncSvc *service.SyncService
	logger  *zap.Logger
}

func NewGraphHandler(graph domain.GraphStore, syncSvc *service.SyncService, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{graph: graph, syncSvc: syncSvc, logger: logger}
}

type upsertNodeRequest struct {
	UserID string      `json:"user_id"`
	Node   domain.Node `json:"node"`
}

func (h *GraphHandler) UpsertNode(w http.ResponseWriter, r *http.Request) {
	var req upsertNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Node.ID == "" {
		writeError(w, http.StatusBadRequest, "user_id and node.id are required")
		return
	}
	if !domain.ValidNodeType(string(req.Node.Type)) {
		writeError(w, http.StatusBadRequest, "invalid node type")
		return
	}
	if req.Node.Confidence < 0 || req.Node.Confidence > 1 {
		writeError(w, http.StatusBadRequest, "confidence must be between 0 and 1")
		return
	}

	node, err := h.graph.UpsertNode(r.Context(), req.UserID, &req.Node)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

type upsertEdgeRequest struct {
	UserID string      `json:"user_id"`
	Edge   domain.Edge `json:"edge"`
}

func (h *GraphHandler) UpsertEdge(w http.ResponseWriter, r *http.Request) {
	var req upsertEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Edge.ID == "" || req.Edge.FromID == "" || req.Edge.ToID == "" {
		writeError(w, http.StatusBadRequest, "user_id, edge.id, edge.from_id and edge.to_id are required")
		return
	}
	if !domain.ValidEdgeType(string(req.Edge.Type)) {
		writeError(w, http.StatusBadRequest, "invalid edge type")
		return
	}

	edge, err := h.graph.UpsertEdge(r.Context(), req.UserID, &req.Edge)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

type storeFactRequest struct {
	UserID string `json:"user_id"`
	domain.FactInput
}

func (h *GraphHandler) StoreFact(w http.ResponseWriter, r *http.Request) {
	var req storeFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	node, err := h.graph.StoreFact(r.Context(), req.UserID, req.FactInput)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrLabelEmpty),
			errors.Is(err, store.ErrInvalidNodeType),
			errors.Is(err, store.ErrInvalidConfidence):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeGraphError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, node)
}

type registerPersonRequest struct {
	UserID     string               `json:"user_id"`
	Name       string               `json:"name"`
	Details    domain.PersonDetails `json:"details"`
	Provenance string               `json:"provenance"`
}

func (h *GraphHandler) RegisterPerson(w http.ResponseWriter, r *http.Request) {
	var req registerPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "user_id and name are required")
		return
	}
	if req.Provenance != "" && !domain.ValidProvenance(req.Provenance) {
		writeError(w, http.StatusBadRequest, "invalid provenance")
		return
	}
	prov := domain.Provenance(req.Provenance)
	if prov == "" {
		prov = domain.ProvenanceContacts
	}

	node, err := h.graph.RegisterPerson(r.Context(), req.UserID, req.Name, req.Details, prov)
	if err != nil {
		if errors.Is(err, store.ErrLabelEmpty) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// RemoveNode tombstones a node locally and fires the remote purge in the
// background; a slow backend must not hold up the caller.
func (h *GraphHandler) RemoveNode(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	nodeID := chi.URLParam(r, "id")
	if userID == "" || nodeID == "" {
		writeError(w, http.StatusBadRequest, "user_id and node id are required")
		return
	}

	removed, err := h.graph.RemoveNode(r.Context(), userID, nodeID)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		h.syncSvc.SyncTombstones(ctx, userID, []string{nodeID})
	}()

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "id": nodeID})
}

// writeGraphError maps store-level failures. A missing key is the one
// condition the API cannot paper over.
func writeGraphError(w http.ResponseWriter, err error) {
	if errors.Is(err, keystore.ErrKeyUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "encryption key unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "graph operation failed")
}
