package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt64_AcceptsJSONNumberFloat(t *testing.T) {
	n, ok := toInt64(float64(42))
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)
}

func TestToInt64_AcceptsIntAndInt64(t *testing.T) {
	n, ok := toInt64(int(7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	n, ok = toInt64(int64(9))
	assert.True(t, ok)
	assert.Equal(t, int64(9), n)
}

func TestToInt64_RejectsNonNumeric(t *testing.T) {
	_, ok := toInt64("100")
	assert.False(t, ok)

	_, ok = toInt64(nil)
	assert.False(t, ok)
}
