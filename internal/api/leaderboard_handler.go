package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/leaderboard"
)

type LeaderboardHandler struct {
	logger  *zap.Logger
	manager *leaderboard.Manager
}

func NewLeaderboardHandler(logger *zap.Logger, manager *leaderboard.Manager) *LeaderboardHandler {
	return &LeaderboardHandler{logger: logger, manager: manager}
}

type globalLeaderboardResponse struct {
	*leaderboard.GlobalLeaderboard
	UserRank *int `json:"user_rank,omitempty"`
}

// GetGlobal implements GET /leaderboard/global?limit&offset&user_id.
func (h *LeaderboardHandler) GetGlobal(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)

	board, err := h.manager.Top(r.Context(), limit, offset)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}

	resp := globalLeaderboardResponse{GlobalLeaderboard: board}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		if rank, ranked, err := h.manager.UserRank(r.Context(), userID); err == nil && ranked {
			resp.UserRank = &rank
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
