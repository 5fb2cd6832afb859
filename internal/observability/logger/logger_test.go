package logger

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	require.Error(t, err)
}

func TestNewAcceptsConsoleFormat(t *testing.T) {
	log, err := New(nil, Config{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.InfoLevel))
	assert.True(t, log.Core().Enabled(zap.WarnLevel))
}

func TestWithContextAddsStudioFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := studiocontext.WithStudioID(context.Background(), snowflake.ID(42))
	ctx = studiocontext.WithUserID(ctx, "owner@studio")
	ctx = studiocontext.WithRequestID(ctx, "req-1")

	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "42", fields["studio_id"])
	assert.Equal(t, "owner@studio", fields["user_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestWithContextSystemActorByDefault(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	WithContext(context.Background(), zap.New(core)).Info("tick")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, studiocontext.ActorTypeSystem, fields["actor_type"])
	assert.NotContains(t, fields, "studio_id")
	assert.NotContains(t, fields, "request_id")
}
