package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"fittrack/internal/observability/logging"
	"fittrack/internal/observability/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemberStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]MemberStatus{
		"active":    StatusActive,
		"suspended": StatusSuspended,
		"inactive":  StatusInactive,
		"Active":    StatusUnknown,
		"actve":     StatusUnknown,
		"":          StatusUnknown,
	}
	for in, want := range cases {
		got := ParseMemberStatus(in)
		assert.Equal(t, want, got, "input %q", in)
		assert.Equal(t, want == StatusActive, got.Active(), "input %q", in)
	}
}

func TestMemberStatusJSON(t *testing.T) {
	t.Parallel()

	var m Member
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","status":"banned"}`), &m))
	assert.Equal(t, StatusUnknown, m.Status)
	assert.False(t, m.Status.Active())

	_, err := json.Marshal(Member{ID: "u1", Status: StatusUnknown})
	assert.Error(t, err, "unknown status is never written back")

	raw, err := json.Marshal(Member{ID: "u1", Status: StatusSuspended})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"suspended"`)
}

func TestAccessTokenContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, AccessTokenFromContext(ctx))
	assert.Equal(t, ctx, WithAccessToken(ctx, ""))
	assert.Equal(t, "tok", AccessTokenFromContext(WithAccessToken(ctx, "tok")))
}

type stubStore struct {
	Store
	err error
}

func (s stubStore) MemberStatus(context.Context, string) (MemberStatus, error) {
	return StatusActive, s.err
}

func TestInstrumentPassesThrough(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := Instrument(stubStore{err: boom}, metrics.NewCollector(), logging.Discard())

	status, err := s.MemberStatus(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusActive, status)
}

func TestUnavailableFailsEveryCall(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := Unavailable()
	defer s.Close()

	status, err := s.MemberStatus(ctx, "u1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, status.Active())
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = s.Member(ctx, "u1")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = s.ListActivities(ctx, "u1", 10)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = s.Summary(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = s.RecentActivities(ctx, 5)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.InsertActivity(ctx, Activity{}), ErrUnavailable)
	assert.ErrorIs(t, s.UpdateActivity(ctx, "a1", "u1", Activity{}), ErrUnavailable)
	assert.ErrorIs(t, s.DeleteActivity(ctx, "a1", "u1"), ErrUnavailable)
	assert.ErrorIs(t, s.UpsertMembers(ctx, nil), ErrUnavailable)
	assert.ErrorIs(t, s.DeleteMembersByEmail(ctx, nil), ErrUnavailable)
}
