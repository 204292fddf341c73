package api

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventsBody_AcceptsSingleObject(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(`{"event_type":"app_launched","user_id":"u1","timestamp":"2026-01-01T00:00:00Z","app_version":"1.0","platform":"ios"}`))
	require.NoError(t, err)

	raws, err := decodeEventsBody(req)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "app_launched", raws[0].EventType)
}

func TestDecodeEventsBody_AcceptsArray(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(`[{"event_type":"app_launched","user_id":"u1"},{"event_type":"app_launched","user_id":"u2"}]`))
	require.NoError(t, err)

	raws, err := decodeEventsBody(req)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "u2", raws[1].UserID)
}

func TestDecodeEventsBody_RejectsMalformedJSON(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(`not json`))
	require.NoError(t, err)

	_, err = decodeEventsBody(req)
	assert.Error(t, err)
}
