package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flappyjet/telemetry-server/internal/events"
)

func validGameEndedRaw() events.RawEvent {
	return events.RawEvent{
		EventType:  "game_ended",
		UserID:     "device-abc123",
		Timestamp:  "2026-01-15T12:00:00Z",
		AppVersion: "1.4.0",
		Platform:   "ios",
		Payload: map[string]interface{}{
			"score":            float64(1200),
			"duration_seconds": float64(95),
			"cause_of_death":   "obstacle",
		},
	}
}

func TestValidator_AcceptsWellFormedEvent(t *testing.T) {
	v := events.NewValidator()
	n, err := v.Validate(validGameEndedRaw())
	require.NoError(t, err)
	assert.Equal(t, events.TypeGameEnded, n.EventType)
	assert.Equal(t, "device-abc123", n.UserID)
	assert.Equal(t, events.PlatformIOS, n.Platform)
}

func TestValidator_RejectsUnknownEventType(t *testing.T) {
	v := events.NewValidator()
	raw := validGameEndedRaw()
	raw.EventType = "not_a_real_event"
	_, err := v.Validate(raw)
	require.Error(t, err)
}

func TestValidator_RejectsMissingRequiredField(t *testing.T) {
	v := events.NewValidator()
	raw := validGameEndedRaw()
	delete(raw.Payload, "cause_of_death")
	_, err := v.Validate(raw)
	require.Error(t, err)
}

func TestValidator_RejectsOutOfRangeScore(t *testing.T) {
	v := events.NewValidator()
	raw := validGameEndedRaw()
	raw.Payload["score"] = float64(-5)
	_, err := v.Validate(raw)
	require.Error(t, err)
}

func TestValidator_RejectsUnknownPlatform(t *testing.T) {
	v := events.NewValidator()
	raw := validGameEndedRaw()
	raw.Platform = "windows_phone"
	_, err := v.Validate(raw)
	require.Error(t, err)
}

func TestValidator_RejectsUserIDOverLengthLimit(t *testing.T) {
	v := events.NewValidator()
	raw := validGameEndedRaw()
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	raw.UserID = string(long)
	_, err := v.Validate(raw)
	require.Error(t, err)
}

func TestValidator_AcceptsReportsClosedSet(t *testing.T) {
	v := events.NewValidator()
	assert.True(t, v.Accepts(events.TypeGameEnded))
	assert.False(t, v.Accepts(events.Type("unknown_type")))
}
