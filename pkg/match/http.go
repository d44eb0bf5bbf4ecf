package match

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fundermatch/platform/pkg/common/logger"
	"github.com/fundermatch/platform/pkg/common/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/match", h.handleMatch).Methods(http.MethodPost)
}

func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req.Charity); err != nil {
		http.Error(w, "invalid charity profile: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.MatchFunders(r.Context(), req.Charity, req.ForceRefresh)
	if err != nil {
		var parseErr *ParseError
		switch {
		case errors.Is(err, ErrNoFundersAvailable):
			http.Error(w, "no funders available, run a sync first", http.StatusNotFound)
		case errors.As(err, &parseErr):
			logger.Log.WithError(err).Error("scoring response unusable")
			http.Error(w, "scoring service returned an unusable response", http.StatusBadGateway)
		default:
			logger.Log.WithError(err).Error("match request failed")
			http.Error(w, "match failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
