package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(0.01, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 3; i++ {
		assert.NoError(t, tb.Wait(ctx), "token %d should be available", i+1)
	}
	assert.Error(t, tb.Wait(ctx), "bucket should be exhausted")
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(0.01, 1)
	require.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := tb.Wait(ctx)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTokenBucketWaitRefills(t *testing.T) {
	tb := NewTokenBucket(50, 1)
	require.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	assert.NoError(t, tb.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestNew(t *testing.T) {
	assert.IsType(t, Unlimited{}, New(0, 5))
	assert.IsType(t, &TokenBucket{}, New(2, 5))

	u := New(-1, 0)
	for i := 0; i < 100; i++ {
		assert.NoError(t, u.Wait(context.Background()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, u.Wait(ctx), context.Canceled)
}
