package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fundermatch/platform/pkg/common/logger"
	"github.com/fundermatch/platform/pkg/common/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
	repo    *Repository
}

func NewHandler(service *Service, repo *Repository) *Handler {
	return &Handler{service: service, repo: repo}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/sync", h.handleRunSync).Methods(http.MethodPost)
	r.HandleFunc("/sync/status", h.handleSyncStatus).Methods(http.MethodGet)
}

func (h *Handler) handleRunSync(w http.ResponseWriter, r *http.Request) {
	var opts models.SyncOptions
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
	}

	// Syncs can outlive the inbound request's cancellation semantics; the
	// write timeout on the server still bounds the handler.
	result, err := h.service.RunSync(context.WithoutCancel(r.Context()), opts)
	if err != nil {
		logger.Log.WithError(err).Error("sync run failed")
		http.Error(w, "sync failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	logs, err := h.repo.RecentSyncLogs(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list sync logs")
		http.Error(w, "failed to list sync logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": logs})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
