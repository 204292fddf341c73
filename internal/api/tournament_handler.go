package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/tournament"
)

type TournamentHandler struct {
	logger  *zap.Logger
	manager *tournament.Manager
}

func NewTournamentHandler(logger *zap.Logger, manager *tournament.Manager) *TournamentHandler {
	return &TournamentHandler{logger: logger, manager: manager}
}

// GetCurrent implements GET /tournaments/current.
func (h *TournamentHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	view, err := h.manager.Current(r.Context())
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type leaderboardResponse struct {
	TournamentID string                      `json:"tournament_id"`
	Total        int                         `json:"total"`
	Rows         []tournament.LeaderboardRow `json:"rows"`
	CachedAt     string                      `json:"cached_at"`
	UserRank     *int                        `json:"user_rank,omitempty"`
}

// GetLeaderboard implements GET /tournaments/{id}/leaderboard?limit&offset&user_id.
func (h *TournamentHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTournamentID(w, r)
	if !ok {
		return
	}
	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)

	page, err := h.manager.CachedLeaderboard(r.Context(), id, limit, offset)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}

	resp := leaderboardResponse{
		TournamentID: id,
		Total:        page.Total,
		Rows:         page.Rows,
		CachedAt:     page.CachedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		if rank, ranked, err := h.manager.UserRank(r.Context(), id, userID); err == nil && ranked {
			resp.UserRank = &rank
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type userRankResponse struct {
	Ranked bool                  `json:"ranked"`
	Rank   int                   `json:"rank,omitempty"`
	Tier   *tournament.PrizeTier `json:"prize_tier,omitempty"`
}

// GetUserRank implements GET /tournaments/{id}/rank?user_id=.
func (h *TournamentHandler) GetUserRank(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTournamentID(w, r)
	if !ok {
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "user_id is required"})
		return
	}

	rank, ranked, err := h.manager.UserRank(r.Context(), id, userID)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	if !ranked {
		writeJSON(w, http.StatusOK, userRankResponse{Ranked: false})
		return
	}

	resp := userRankResponse{Ranked: true, Rank: rank}
	if t, err := h.manager.Get(r.Context(), id); err == nil {
		if tier, ok := resolveTierForResponse(t.PrizeDistribution, rank); ok {
			resp.Tier = &tier
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPrizeTable implements GET /tournaments/{id}/prizes, returning the
// configured rank -> reward distribution table rather than awarded prizes.
func (h *TournamentHandler) GetPrizeTable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTournamentID(w, r)
	if !ok {
		return
	}
	t, err := h.manager.Get(r.Context(), id)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, t.PrizeDistribution)
}

// pathTournamentID extracts and validates the {id} path variable, writing a
// 400 response and returning ok=false if it isn't a well-formed UUID rather
// than letting a malformed id reach the database as a 5xx, per §6.2 "400 on
// invalid UUID".
func pathTournamentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := mux.Vars(r)["id"]
	if _, err := uuid.FromString(id); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid tournament id"})
		return "", false
	}
	return id, true
}

func resolveTierForResponse(dist map[string]tournament.PrizeTier, rank int) (tournament.PrizeTier, bool) {
	if tier, ok := dist[strconv.Itoa(rank)]; ok {
		return tier, true
	}
	for key, tier := range dist {
		parts := strings.SplitN(key, "-", 2)
		if len(parts) != 2 {
			continue
		}
		lo, err1 := strconv.Atoi(parts[0])
		hi, err2 := strconv.Atoi(parts[1])
		if err1 == nil && err2 == nil && rank >= lo && rank <= hi {
			return tier, true
		}
	}
	return tournament.PrizeTier{}, false
}

func parseIntParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
