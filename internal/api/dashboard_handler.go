package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/dashboard"
)

type DashboardHandler struct {
	logger  *zap.Logger
	manager *dashboard.Manager
}

func NewDashboardHandler(logger *zap.Logger, manager *dashboard.Manager) *DashboardHandler {
	return &DashboardHandler{logger: logger, manager: manager}
}

func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	v, err := h.manager.Overview(r.Context())
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *DashboardHandler) DAUTrend(w http.ResponseWriter, r *http.Request) {
	days := parseIntParam(r, "days", 14)
	v, err := h.manager.DAUTrend(r.Context(), days)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *DashboardHandler) LevelPerformance(w http.ResponseWriter, r *http.Request) {
	zone := parseIntParam(r, "zone", 1)
	v, err := h.manager.LevelPerformance(r.Context(), zone)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *DashboardHandler) Retention(w http.ResponseWriter, r *http.Request) {
	v, err := h.manager.Retention(r.Context())
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *DashboardHandler) TopEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 20)
	v, err := h.manager.TopEvents(r.Context(), limit)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *DashboardHandler) LevelEnds(w http.ResponseWriter, r *http.Request) {
	level := parseIntParam(r, "level", 0)
	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "date must be YYYY-MM-DD"})
		return
	}
	v, err := h.manager.LevelEnds(r.Context(), level, date)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *DashboardHandler) IAPFunnel(w http.ResponseWriter, r *http.Request) {
	days := parseIntParam(r, "days", 14)
	v, err := h.manager.IAPFunnel(r.Context(), days)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *DashboardHandler) CurrencySinks(w http.ResponseWriter, r *http.Request) {
	days := parseIntParam(r, "days", 14)
	v, err := h.manager.CurrencySinks(r.Context(), days)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *DashboardHandler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	h.manager.RefreshCache(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"refreshed": true})
}

func (h *DashboardHandler) Health(w http.ResponseWriter, r *http.Request) {
	v := h.manager.Health(r.Context())
	status := http.StatusOK
	if v.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, v)
}
