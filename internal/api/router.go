package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Handlers bundles the concrete handlers the router wires up, keeping
// NewRouter's signature stable as endpoints are added.
type Handlers struct {
	Ingest      *IngestHandler
	Tournament  *TournamentHandler
	Prize       *PrizeHandler
	Dashboard   *DashboardHandler
	Leaderboard *LeaderboardHandler
}

// NewRouter builds the full HTTP surface: access logging and panic
// recovery wrap every route, CORS is open (this is a device-to-server
// API, not a browser app), and per-IP rate limiting guards the ingestion
// endpoint only, per spec §4.2.
func NewRouter(logger *zap.Logger, h Handlers, limiter *IPRateLimiter) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/events", limiter.Middleware(http.HandlerFunc(h.Ingest.PostEvents)).ServeHTTP).Methods(http.MethodPost)

	router.HandleFunc("/leaderboard/global", h.Leaderboard.GetGlobal).Methods(http.MethodGet)

	router.HandleFunc("/tournaments/current", h.Tournament.GetCurrent).Methods(http.MethodGet)
	router.HandleFunc("/tournaments/{id}/leaderboard", h.Tournament.GetLeaderboard).Methods(http.MethodGet)
	router.HandleFunc("/tournaments/{id}/rank", h.Tournament.GetUserRank).Methods(http.MethodGet)
	router.HandleFunc("/tournaments/{id}/prizes", h.Tournament.GetPrizeTable).Methods(http.MethodGet)

	router.HandleFunc("/prizes/pending", h.Prize.GetPending).Methods(http.MethodGet)
	router.HandleFunc("/prizes/claim", h.Prize.PostClaim).Methods(http.MethodPost)
	router.HandleFunc("/prizes/history", h.Prize.GetHistory).Methods(http.MethodGet)

	router.HandleFunc("/dashboard/overview", h.Dashboard.Overview).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/dau-trend", h.Dashboard.DAUTrend).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/level-performance", h.Dashboard.LevelPerformance).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/retention", h.Dashboard.Retention).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/top-events", h.Dashboard.TopEvents).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/level-ends", h.Dashboard.LevelEnds).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/iap-funnel", h.Dashboard.IAPFunnel).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/currency-sinks", h.Dashboard.CurrencySinks).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/refresh-cache", h.Dashboard.RefreshCache).Methods(http.MethodPost)
	router.HandleFunc("/dashboard/health", h.Dashboard.Health).Methods(http.MethodGet)

	corsHandler := handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST"}),
	)(router)

	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(corsHandler)
	return handlers.CustomLoggingHandler(zapLogWriter{logger}, recovered, accessLogFormatter)
}

// zapLogWriter adapts gorilla/handlers' io.Writer-based access log sink to
// the structured logger the rest of the service uses.
type zapLogWriter struct {
	logger *zap.Logger
}

func (w zapLogWriter) Write(p []byte) (int, error) {
	w.logger.Info("http access", zap.ByteString("line", p))
	return len(p), nil
}

func accessLogFormatter(writer io.Writer, params handlers.LogFormatterParams) {
	line := params.Request.Method + " " + params.URL.RequestURI() + " -> " +
		http.StatusText(params.StatusCode) + " " + time.Since(params.TimeStamp).String() + "\n"
	_, _ = writer.Write([]byte(line))
}
