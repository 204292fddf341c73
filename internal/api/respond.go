// Package api wires the HTTP surface: routing via gorilla/mux, per-IP rate
// limiting, access logging and recovery via gorilla/handlers, and the
// translation of internal/apperr taxonomy errors into HTTP responses. This
// is the only package in the repo allowed to import net/http for domain
// errors — every other package returns typed errors and lets this layer
// decide the wire representation.
package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps the apperr taxonomy to HTTP status codes per spec §7:
// ValidationError->400, NotFound->404, Conflict->409, Unavailable->503,
// Timeout->504, Fatal->500.
func writeError(logger *zap.Logger, w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindUnavailable:
		status = http.StatusServiceUnavailable
	case apperr.KindTimeout:
		status = http.StatusGatewayTimeout
	case apperr.KindFatal:
		status = http.StatusInternalServerError
		logger.Error("fatal error reached API boundary", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
