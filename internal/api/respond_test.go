package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/apperr"
)

func TestWriteError_MapsTaxonomyToStatusCodes(t *testing.T) {
	logger := zap.NewNop()

	cases := []struct {
		err    error
		status int
	}{
		{apperr.Validation("field", "bad"), http.StatusBadRequest},
		{apperr.NotFound("missing"), http.StatusNotFound},
		{apperr.Conflict("dup"), http.StatusConflict},
		{apperr.Unavailable("down", nil), http.StatusServiceUnavailable},
		{apperr.Timeout("slow", nil), http.StatusGatewayTimeout},
		{apperr.Fatal("boom", nil), http.StatusInternalServerError},
	}

	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(logger, rec, c.err)
		assert.Equal(t, c.status, rec.Code)
	}
}

func TestWriteJSON_SetsContentTypeAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]string{"ok": "yes"})
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}
