package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	tb := NewTokenBucket(5, time.Second)
	tb.now = clock.Now
	tb.lastRefill = clock.Now()

	for i := 0; i < 5; i++ {
		assert.True(t, tb.Allow(), "token %d should be available", i+1)
	}
	assert.False(t, tb.Allow(), "bucket should be empty")

	clock.Advance(time.Second)
	assert.True(t, tb.Allow(), "bucket should refill after the period")
	assert.Equal(t, 4, tb.tokens)
}

func TestTokenBucketWaitHonorsContext(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucketWaitReturnsImmediatelyWithTokens(t *testing.T) {
	tb := NewTokenBucket(2, time.Hour)
	require.NoError(t, tb.Wait(context.Background()))
	require.NoError(t, tb.Wait(context.Background()))
	assert.Equal(t, 0, tb.tokens)
}

func TestPerMinute(t *testing.T) {
	_, ok := PerMinute(0).(unlimited)
	assert.True(t, ok)

	l := PerMinute(60)
	tb, ok := l.(*TokenBucket)
	require.True(t, ok)
	assert.Equal(t, 60, tb.capacity)
	assert.Equal(t, time.Minute, tb.refillPeriod)
}

func TestUnlimited(t *testing.T) {
	l := Unlimited()
	for i := 0; i < 1000; i++ {
		require.True(t, l.Allow())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
