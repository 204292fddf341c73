package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob_EncodesPayload(t *testing.T) {
	job, err := NewJob("process_event", PriorityHigh, map[string]string{"event_id": "abc"}, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.Equal(t, 3, job.Attempts)

	var decoded map[string]string
	require.NoError(t, job.Decode(&decoded))
	assert.Equal(t, "abc", decoded["event_id"])
}

func TestPriorityKey_RoutesToDistinctQueues(t *testing.T) {
	assert.Equal(t, "jobs:high", PriorityHigh.key())
	assert.Equal(t, "jobs:medium", PriorityMedium.key())
	assert.Equal(t, "jobs:low", PriorityLow.key())
}

func TestBackoff_DoublesWithEachRetryConsumed(t *testing.T) {
	base := 2 * time.Second
	assert.Equal(t, 2*time.Second, backoff(base, 3))
	assert.Equal(t, 4*time.Second, backoff(base, 2))
	assert.Equal(t, 8*time.Second, backoff(base, 1))
	assert.Equal(t, 16*time.Second, backoff(base, 0))
}

func TestBackoff_ClampsNegativeAttemptsRemaining(t *testing.T) {
	base := 2 * time.Second
	assert.Equal(t, backoff(base, 0), backoff(base, -1))
}
