package events

import (
	"fmt"
	"time"

	"github.com/flappyjet/telemetry-server/internal/apperr"
)

// RawEvent is the wire shape accepted on POST /events, before validation.
type RawEvent struct {
	EventType  string                 `json:"event_type"`
	UserID     string                 `json:"user_id"`
	Timestamp  string                 `json:"timestamp"`
	AppVersion string                 `json:"app_version"`
	Platform   string                 `json:"platform"`
	SessionID  string                 `json:"session_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// Validator validates and normalizes RawEvents against the Registry.
type Validator struct {
	registry map[Type]Schema
}

func NewValidator() *Validator {
	return &Validator{registry: NewRegistry()}
}

// Validate checks base fields and the type-specific schema, returning a
// Normalized event on success or an *apperr.Error (KindValidation) with the
// offending field name on failure, matching spec §6.1's
// {index, field, reason} rejection shape.
func (v *Validator) Validate(raw RawEvent) (*Normalized, error) {
	if raw.EventType == "" {
		return nil, apperr.Validation("event_type", "required")
	}
	t := Type(raw.EventType)
	schema, ok := v.registry[t]
	if !ok {
		return nil, apperr.Validation("event_type", "unknown")
	}

	if raw.UserID == "" {
		return nil, apperr.Validation("user_id", "required")
	}
	if len(raw.UserID) > 255 {
		return nil, apperr.Validation("user_id", "exceeds 255 characters")
	}

	if raw.Timestamp == "" {
		return nil, apperr.Validation("timestamp", "required")
	}
	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return nil, apperr.Validation("timestamp", "must be ISO-8601")
	}

	if raw.AppVersion == "" {
		return nil, apperr.Validation("app_version", "required")
	}

	platform := Platform(raw.Platform)
	if platform != PlatformIOS && platform != PlatformAndroid {
		return nil, apperr.Validation("platform", "must be one of ios|android")
	}

	payload := raw.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if err := schema.Validate(payload); err != nil {
		return nil, apperr.Validation("payload", err.Error())
	}
	if !schema.Lenient {
		// Strict schemas still tolerate unknown fields per §4.1 ("lenient
		// on unknown optional fields"); only required-field and bounds
		// violations are rejected above. No further action needed here.
	}

	return &Normalized{
		EventType:  t,
		UserID:     raw.UserID,
		Timestamp:  ts.UTC(),
		AppVersion: raw.AppVersion,
		Platform:   platform,
		SessionID:  raw.SessionID,
		Payload:    payload,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Accepts reports whether t is in the validator's closed set, the I6
// invariant check the persistence layer also enforces independently via a
// CHECK constraint.
func (v *Validator) Accepts(t Type) bool {
	_, ok := v.registry[t]
	return ok
}
