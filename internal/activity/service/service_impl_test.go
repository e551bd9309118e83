package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/internal/activity/domain"
	"github.com/smallbiznis/freightdesk/internal/activity/repository"
	"github.com/smallbiznis/freightdesk/internal/auditcontext"
	"github.com/smallbiznis/freightdesk/internal/clock"
	eventsdomain "github.com/smallbiznis/freightdesk/internal/events/domain"
	eventsservice "github.com/smallbiznis/freightdesk/internal/events/service"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"github.com/smallbiznis/freightdesk/pkg/db/pagination"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Event{}, &eventsdomain.OutboxEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		Publisher: eventsservice.NewPublisher(conn, node),
	})
	return svc, conn, clk
}

func TestRecordResolvesActorAndEnqueuesOutbox(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := auditcontext.WithActor(context.Background(), auditcontext.ActorTypeUser, "77")
	ctx = auditcontext.WithRequestID(ctx, "req-1")

	require.NoError(t, svc.Record(ctx, nil, domain.RecordRequest{
		OrgID:    100,
		Type:     domain.TypeInquirySent,
		TargetID: "555",
		Payload:  map[string]any{"recipients": 3},
	}))

	var events []domain.Event
	require.NoError(t, conn.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, "user", events[0].ActorType)
	require.Equal(t, "77", *events[0].ActorID)
	require.Equal(t, "inquiry", events[0].TargetType)
	require.Equal(t, "req-1", events[0].Payload["request_id"])

	var outbox []eventsdomain.OutboxEvent
	require.NoError(t, conn.Find(&outbox).Error)
	require.Len(t, outbox, 1)
	require.Equal(t, domain.TypeInquirySent, outbox[0].Topic)
	require.Equal(t, "555", outbox[0].Key)
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	svc, conn, _ := newTestService(t)

	require.NoError(t, svc.Record(context.Background(), nil, domain.RecordRequest{
		OrgID: 100,
		Type:  domain.TypeInquiryExpired,
	}))

	var evt domain.Event
	require.NoError(t, conn.First(&evt).Error)
	require.Equal(t, auditcontext.ActorTypeSystem, evt.ActorType)
	require.Nil(t, evt.ActorID)
}

func TestRecordValidates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Record(ctx, nil, domain.RecordRequest{Type: domain.TypeInquirySent}), domain.ErrInvalidOrganization)
	require.ErrorIs(t, svc.Record(ctx, nil, domain.RecordRequest{OrgID: 1}), domain.ErrInvalidType)
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Record(ctx, nil, domain.RecordRequest{OrgID: 100, Type: domain.TypeInquiryCreated}))
		clk.Advance(time.Second)
	}
	require.NoError(t, svc.Record(ctx, nil, domain.RecordRequest{OrgID: 200, Type: domain.TypeInquiryCreated}))

	first, err := svc.List(ctx, 100, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Events, 2)
	require.True(t, first.HasMore)
	require.True(t, first.Events[0].CreatedAt.After(first.Events[1].CreatedAt))

	seen := map[snowflake.ID]bool{}
	for _, e := range first.Events {
		seen[e.ID] = true
	}

	token := first.NextPageToken
	total := len(first.Events)
	for token != "" {
		page, err := svc.List(ctx, 100, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: token}})
		require.NoError(t, err)
		for _, e := range page.Events {
			require.False(t, seen[e.ID])
			seen[e.ID] = true
		}
		total += len(page.Events)
		token = page.NextPageToken
	}
	require.Equal(t, 5, total)
}

func TestListRejectsBadToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.List(context.Background(), 100, domain.ListRequest{Pagination: pagination.Pagination{PageToken: "!!"}})
	require.ErrorIs(t, err, domain.ErrInvalidPageToken)

	_, err = svc.List(context.Background(), 0, domain.ListRequest{})
	require.ErrorIs(t, err, domain.ErrInvalidOrganization)
}
