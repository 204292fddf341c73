package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStats_SnapshotReflectsCounters(t *testing.T) {
	s := NewStats(10)
	s.IncWaiting()
	s.IncWaiting()
	s.IncActive()
	s.IncCompleted()
	s.IncDead()

	snap := s.Snapshot()
	assert.Equal(t, int64(2), snap.Waiting)
	assert.Equal(t, int64(1), snap.Active)
	assert.Equal(t, int64(1), snap.Completed)
	assert.Equal(t, int64(1), snap.DeadLetter)
	assert.Equal(t, int64(10), snap.WorkerCount)
	assert.InDelta(t, 0.1, snap.WorkerUtilization, 0.0001)
}

func TestStats_WorkerUtilizationZeroWhenNoWorkers(t *testing.T) {
	s := NewStats(0)
	assert.Equal(t, 0.0, s.Snapshot().WorkerUtilization)
}
