package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/studioledger/internal/audit/domain"
	"github.com/smallbiznis/studioledger/internal/audit/repository"
	"github.com/smallbiznis/studioledger/internal/clock"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"github.com/smallbiznis/studioledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db := testutil.OpenDB(t, &auditdomain.AuditLog{})
	fake := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, db, fake
}

func TestRecordCapturesRequestContext(t *testing.T) {
	svc, db, _ := newTestService(t)

	ctx := studiocontext.WithStudioID(context.Background(), 42)
	ctx = studiocontext.WithUserID(ctx, "user-7")
	ctx = studiocontext.WithRequestID(ctx, "req-1")
	ctx = studiocontext.WithIPAddress(ctx, "10.0.0.1")

	err := svc.Record(ctx, auditdomain.Entry{
		Action:     "invoice.updated",
		EntityType: "invoice",
		EntityID:   "123",
		OldValues:  map[string]any{"status": "DRAFT"},
		NewValues:  map[string]any{"status": "SENT"},
	})
	require.NoError(t, err)

	var logs []auditdomain.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, snowflake.ID(42), entry.StudioID)
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "user-7", *entry.UserID)
	assert.Equal(t, "SENT", entry.NewValues["status"])
	assert.Equal(t, "DRAFT", entry.OldValues["status"])
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
}

func TestRecordRejectsMissingStudioAndAction(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Record(context.Background(), auditdomain.Entry{Action: "invoice.created"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidStudio)

	ctx := studiocontext.WithStudioID(context.Background(), 1)
	err = svc.Record(ctx, auditdomain.Entry{Action: " "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, _, fake := newTestService(t)
	ctx := studiocontext.WithStudioID(context.Background(), 9)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, auditdomain.Entry{Action: "payment.processed", EntityType: "payment"}))
		fake.Advance(time.Minute)
	}

	req := auditdomain.ListAuditLogRequest{}
	req.PageSize = 2
	first, err := svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	req.PageToken = first.NextPageToken
	second, err := svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
	assert.True(t, first.AuditLogs[1].CreatedAt.After(second.AuditLogs[0].CreatedAt))

	other := studiocontext.WithStudioID(context.Background(), 10)
	empty, err := svc.List(other, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	assert.Empty(t, empty.AuditLogs)
}
