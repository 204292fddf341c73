package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/events"
	"github.com/flappyjet/telemetry-server/internal/ingest"
)

type IngestHandler struct {
	logger  *zap.Logger
	service *ingest.Service
}

func NewIngestHandler(logger *zap.Logger, service *ingest.Service) *IngestHandler {
	return &IngestHandler{logger: logger, service: service}
}

// PostEvents implements POST /events. Accepts either a single event object
// or an array, per §6.1.
func (h *IngestHandler) PostEvents(w http.ResponseWriter, r *http.Request) {
	raws, err := decodeEventsBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.service.Ingest(r.Context(), raws)
	if err != nil {
		// Only systemic persistence failures reach here; spec requires
		// 5xx in that case, never for per-item validation failures.
		writeError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func decodeEventsBody(r *http.Request) ([]events.RawEvent, error) {
	dec := json.NewDecoder(r.Body)
	raw := json.RawMessage{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	var asArray []events.RawEvent
	if err := json.Unmarshal(raw, &asArray); err == nil {
		return asArray, nil
	}

	var single events.RawEvent
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []events.RawEvent{single}, nil
}
