package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/prize"
)

type PrizeHandler struct {
	logger  *zap.Logger
	manager *prize.Manager
}

func NewPrizeHandler(logger *zap.Logger, manager *prize.Manager) *PrizeHandler {
	return &PrizeHandler{logger: logger, manager: manager}
}

// GetPending implements GET /prizes/pending?user_id=.
func (h *PrizeHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "user_id is required"})
		return
	}
	prizes, err := h.manager.ListPending(r.Context(), userID)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, prizes)
}

// GetHistory implements GET /prizes/history?user_id=.
func (h *PrizeHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "user_id is required"})
		return
	}
	prizes, err := h.manager.ListHistory(r.Context(), userID)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, prizes)
}

type claimRequest struct {
	PrizeID string `json:"prize_id"`
	UserID  string `json:"user_id"`
}

// PostClaim implements POST /prizes/claim.
func (h *PrizeHandler) PostClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.PrizeID == "" || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "prize_id and user_id are required"})
		return
	}

	result, err := h.manager.Claim(r.Context(), req.PrizeID, req.UserID)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
