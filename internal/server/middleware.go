package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"go.uber.org/zap"
)

const (
	HeaderStudioID = "X-Studio-Id"
	HeaderUserID   = "X-User-Id"
)

// StudioContext resolves the caller's studio and user from request headers.
// Authentication happens upstream; this only scopes the request.
func StudioContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderStudioID))
		if raw == "" {
			AbortWithError(c, ErrMissingStudio)
			return
		}
		studioID, err := snowflake.ParseString(raw)
		if err != nil || studioID == 0 {
			AbortWithError(c, newValidationError("studio_id", "invalid_studio_id", "invalid studio id"))
			return
		}

		ctx := studiocontext.WithStudioID(c.Request.Context(), studioID)
		if userID := strings.TrimSpace(c.GetHeader(HeaderUserID)); userID != "" {
			ctx = studiocontext.WithUserID(ctx, userID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// PublicRateLimit throttles unauthenticated endpoints per client IP. Limiter
// failures let the request through.
func (s *Server) PublicRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.publicLimiter.Enabled() {
			c.Next()
			return
		}

		result, err := s.publicLimiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.log.Warn("public rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			seconds := int(math.Ceil(result.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
