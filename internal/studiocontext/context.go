package studiocontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type (
	studioKey    struct{}
	userKey      struct{}
	actorKey     struct{}
	requestKey   struct{}
	ipAddressKey struct{}
	userAgentKey struct{}
)

const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

// WithStudioID stores the active studio ID in the context.
func WithStudioID(ctx context.Context, studioID snowflake.ID) context.Context {
	return context.WithValue(ctx, studioKey{}, studioID)
}

// StudioIDFromContext returns the studio ID from context, if set.
func StudioIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	switch typed := ctx.Value(studioKey{}).(type) {
	case snowflake.ID:
		return typed, typed != 0
	case int64:
		return snowflake.ID(typed), typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}

// WithUserID stores the acting user ID in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, strings.TrimSpace(userID))
}

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userKey{}).(string)
	return value
}

// WithActor marks who is acting: a user or the system (scheduler, webhooks).
func WithActor(ctx context.Context, actorType string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(actorType))
}

func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(actorKey{}).(string); ok && value != "" {
		return value
	}
	if UserIDFromContext(ctx) != "" {
		return ActorTypeUser
	}
	return ActorTypeSystem
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestKey{}, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestKey{}).(string)
	return value
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipAddressKey{}, strings.TrimSpace(ip))
}

func IPAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(ipAddressKey{}).(string)
	return value
}

func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, strings.TrimSpace(userAgent))
}

func UserAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userAgentKey{}).(string)
	return value
}
