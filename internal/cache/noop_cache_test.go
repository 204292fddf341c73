package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopCache_AlwaysMisses(t *testing.T) {
	c := NewNoop()
	c.Set(context.Background(), "k", []byte("v"), time.Minute)

	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.False(t, c.Healthy())
}

func TestNoopCache_InvalidateIsSafeNoop(t *testing.T) {
	c := NewNoop()
	assert.NotPanics(t, func() {
		c.Invalidate(context.Background(), "any-prefix")
	})
}
