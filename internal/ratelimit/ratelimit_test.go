package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/studioledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLockerGrantsLocks(t *testing.T) {
	var locker *Locker
	token, ok, err := locker.TryLock(context.Background(), SweepKey("payment_reminders", "1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.NoError(t, locker.Release(context.Background(), "k", token))
}

func TestSweepKey(t *testing.T) {
	assert.Equal(t, "studioledger:sweep:recurring_invoices:42", SweepKey("recurring_invoices", "42"))
}

func TestPublicLimiterDisabledWithoutRedis(t *testing.T) {
	limiter := NewPublicLimiter(config.Config{RateLimit: config.RateLimitConfig{PublicRate: 5, PublicBurst: 10}}, NewTokenBucket(nil))
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, retryAfter(0.5, 1))
	assert.Zero(t, retryAfter(1.5, 1))
	assert.Equal(t, 4*time.Second, bucketTTL(5, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}
