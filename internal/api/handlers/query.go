package handlers

import (
	"errors"
	"net/http"

	"github.com/haldane/pkgd/internal/keystore"
	"github.com/haldane/pkgd/internal/service"
	"go.uber.org/zap"
)

// QueryHandler serves the read side: entity resolution, attribute lookup,
// context capsules and graph stats.
type QueryHandler struct {
	resolver *service.ResolverService
	logger   *zap.Logger
}

func NewQueryHandler(resolver *service.ResolverService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{resolver: resolver, logger: logger}
}

func (h *QueryHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	q := r.URL.Query().Get("q")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	res, err := h.resolver.Resolve(r.Context(), userID, q)
	if err != nil {
		if errors.Is(err, service.ErrQueryEmpty) {
			writeError(w, http.StatusBadRequest, "q is required")
			return
		}
		writeQueryError(w, err)
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "no matching entity")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *QueryHandler) GetAttribute(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	name := r.URL.Query().Get("name")
	if userID == "" || name == "" {
		writeError(w, http.StatusBadRequest, "user_id and name are required")
		return
	}

	value, found, err := h.resolver.GetAttribute(r.Context(), userID, name)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "attribute not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "value": value})
}

func (h *QueryHandler) Capsule(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	capsule, err := h.resolver.BuildContextCapsule(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, capsule)
}

func (h *QueryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	stats, err := h.resolver.Stats(r.Context(), userID)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, keystore.ErrKeyUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "encryption key unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "query failed")
}
