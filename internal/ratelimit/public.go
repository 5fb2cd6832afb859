package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/studioledger/internal/config"
)

const keyPublicClient = "studioledger:public:%s"

// PublicLimiter throttles public invoice views per client IP. It allows
// everything when disabled.
type PublicLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewPublicLimiter(cfg config.Config, bucket *TokenBucket) *PublicLimiter {
	if bucket == nil || cfg.RateLimit.PublicRate <= 0 || cfg.RateLimit.PublicBurst <= 0 {
		return &PublicLimiter{}
	}
	return &PublicLimiter{
		bucket: bucket,
		rate:   cfg.RateLimit.PublicRate,
		burst:  cfg.RateLimit.PublicBurst,
	}
}

func (l *PublicLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *PublicLimiter) Allow(ctx context.Context, clientIP string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPublicClient, strings.TrimSpace(clientIP)), l.rate, l.burst)
}
