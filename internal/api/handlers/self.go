package handlers

import (
	"net/http"

	"github.com/haldane/pkgd/internal/service"
	"go.uber.org/zap"
)

// SelfHandler owns the kill switch endpoint.
type SelfHandler struct {
	kill   *service.KillSwitch
	logger *zap.Logger
}

func NewSelfHandler(kill *service.KillSwitch, logger *zap.Logger) *SelfHandler {
	return &SelfHandler{kill: kill, logger: logger}
}

// Erase destroys the caller's graph, key and sync state. There is no undo.
func (h *SelfHandler) Erase(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.kill.Erase(r.Context(), userID); err != nil {
		h.logger.Error("erase failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "erase failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "erased"})
}
