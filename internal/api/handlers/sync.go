package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/haldane/pkgd/internal/service"
	"go.uber.org/zap"
)

// SyncHandler triggers an immediate delta sync, ahead of the scheduler.
type SyncHandler struct {
	syncSvc *service.SyncService
	logger  *zap.Logger
}

func NewSyncHandler(syncSvc *service.SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{syncSvc: syncSvc, logger: logger}
}

type syncRequest struct {
	UserID string `json:"user_id"`
	Force  bool   `json:"force"`
}

func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.syncSvc.SyncToBackend(r.Context(), req.UserID, req.Force)
	if err != nil {
		h.logger.Error("manual sync failed", zap.String("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	if result.Error != "" {
		// Push reached the backend but was rejected; nothing was stamped.
		writeJSON(w, http.StatusBadGateway, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
