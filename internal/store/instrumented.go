package store

import (
	"context"
	"time"

	"fittrack/internal/observability/logging"
	"fittrack/internal/observability/metrics"
)

// instrumented records metrics and debug logs for every call of the wrapped
// store
type instrumented struct {
	next    Store
	metrics *metrics.Collector
	logger  *logging.Logger
}

// Instrument wraps s so every call is measured
func Instrument(s Store, collector *metrics.Collector, logger *logging.Logger) Store {
	return &instrumented{next: s, metrics: collector, logger: logger.WithModule("store")}
}

func (s *instrumented) observe(ctx context.Context, operation string, start time.Time, err error) {
	duration := time.Since(start)
	s.metrics.RecordStoreCall(operation, err, duration)
	if err != nil {
		logging.FromContextOr(ctx, s.logger).Debug("Store call failed",
			"operation", operation,
			"duration_ms", duration.Milliseconds(),
			logging.Err(err),
		)
	}
}

func (s *instrumented) MemberStatus(ctx context.Context, memberID string) (status MemberStatus, err error) {
	defer func(start time.Time) { s.observe(ctx, "member_status", start, err) }(time.Now())
	return s.next.MemberStatus(ctx, memberID)
}

func (s *instrumented) Member(ctx context.Context, memberID string) (m *Member, err error) {
	defer func(start time.Time) { s.observe(ctx, "member", start, err) }(time.Now())
	return s.next.Member(ctx, memberID)
}

func (s *instrumented) ListActivities(ctx context.Context, memberID string, limit int) (out []Activity, err error) {
	defer func(start time.Time) { s.observe(ctx, "list_activities", start, err) }(time.Now())
	return s.next.ListActivities(ctx, memberID, limit)
}

func (s *instrumented) InsertActivity(ctx context.Context, a Activity) (err error) {
	defer func(start time.Time) { s.observe(ctx, "insert_activity", start, err) }(time.Now())
	return s.next.InsertActivity(ctx, a)
}

func (s *instrumented) UpdateActivity(ctx context.Context, id, memberID string, a Activity) (err error) {
	defer func(start time.Time) { s.observe(ctx, "update_activity", start, err) }(time.Now())
	return s.next.UpdateActivity(ctx, id, memberID, a)
}

func (s *instrumented) DeleteActivity(ctx context.Context, id, memberID string) (err error) {
	defer func(start time.Time) { s.observe(ctx, "delete_activity", start, err) }(time.Now())
	return s.next.DeleteActivity(ctx, id, memberID)
}

func (s *instrumented) Summary(ctx context.Context) (sum *Summary, err error) {
	defer func(start time.Time) { s.observe(ctx, "summary", start, err) }(time.Now())
	return s.next.Summary(ctx)
}

func (s *instrumented) RecentActivities(ctx context.Context, limit int) (out []Activity, err error) {
	defer func(start time.Time) { s.observe(ctx, "recent_activities", start, err) }(time.Now())
	return s.next.RecentActivities(ctx, limit)
}

func (s *instrumented) UpsertMembers(ctx context.Context, members []Member) (err error) {
	defer func(start time.Time) { s.observe(ctx, "upsert_members", start, err) }(time.Now())
	return s.next.UpsertMembers(ctx, members)
}

func (s *instrumented) DeleteMembersByEmail(ctx context.Context, emails []string) (err error) {
	defer func(start time.Time) { s.observe(ctx, "delete_members", start, err) }(time.Now())
	return s.next.DeleteMembersByEmail(ctx, emails)
}

func (s *instrumented) Close() {
	s.next.Close()
}
