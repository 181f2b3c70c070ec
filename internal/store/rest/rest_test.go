package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fittrack/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := New(Config{URL: srv.URL + "/", APIKey: "anon", Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestMemberStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		body   string
		want   store.MemberStatus
		wantNF bool
	}{
		{name: "active", body: `[{"status":"active"}]`, want: store.StatusActive},
		{name: "suspended", body: `[{"status":"suspended"}]`, want: store.StatusSuspended},
		{name: "typo is unknown", body: `[{"status":"Active "}]`, want: store.StatusUnknown},
		{name: "no row", body: `[]`, wantNF: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/rest/v1/members", r.URL.Path)
				assert.Equal(t, "status", r.URL.Query().Get("select"))
				assert.Equal(t, "eq.u1", r.URL.Query().Get("id"))
				respond(w, http.StatusOK, tc.body)
			})

			got, err := s.MemberStatus(context.Background(), "u1")
			if tc.wantNF {
				assert.ErrorIs(t, err, store.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAccessTokenIsForwarded(t *testing.T) {
	t.Parallel()

	var got []string
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		got = append(got, r.Header.Get("Authorization"))
		respond(w, http.StatusOK, `[{"status":"active"}]`)
	})

	_, err := s.MemberStatus(context.Background(), "u1")
	require.NoError(t, err)
	_, err = s.MemberStatus(store.WithAccessToken(context.Background(), "user-jwt"), "u1")
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer anon", "Bearer user-jwt"}, got)
}

func TestListActivities(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "eq.u1", q.Get("member_id"))
		assert.Equal(t, "occurred_at.desc", q.Get("order"))
		assert.Equal(t, "50", q.Get("limit"))
		respond(w, http.StatusOK, `[{"id":"a1","member_id":"u1","activity_type":"run","distance_km":5.2,
			"duration_minutes":30,"calories":320,"occurred_at":"2025-01-02T07:00:00+00:00","notes":null}]`)
	})

	got, err := s.ListActivities(context.Background(), "u1", 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "run", got[0].ActivityType)
	assert.InDelta(t, 5.2, got[0].DistanceKm, 1e-9)
	assert.Nil(t, got[0].Notes)
	assert.Equal(t, 2025, got[0].OccurredAt.Year())
}

func TestUpdateActivityIsScopedToMember(t *testing.T) {
	t.Parallel()

	var body map[string]any
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.a1", r.URL.Query().Get("id"))
		assert.Equal(t, "eq.u1", r.URL.Query().Get("member_id"))
		assert.Contains(t, r.Header.Get("Prefer"), "return=representation")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		respond(w, http.StatusOK, `[]`)
	})

	err := s.UpdateActivity(context.Background(), "a1", "u1", store.Activity{
		ID:           "ignored",
		MemberID:     "someone-else",
		ActivityType: "swim",
		OccurredAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, store.ErrNotFound, "no matching row")
	assert.NotContains(t, body, "id")
	assert.Equal(t, "u1", body["member_id"])
	assert.Equal(t, "swim", body["activity_type"])
}

func TestDeleteActivity(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "eq.a1", r.URL.Query().Get("id"))
		assert.Equal(t, "eq.u1", r.URL.Query().Get("member_id"))
		respond(w, http.StatusOK, `[{"id":"a1"}]`)
	})

	require.NoError(t, s.DeleteActivity(context.Background(), "a1", "u1"))
}

func TestSummaryAndRecent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/rpc/member_activity_summary":
			respond(w, http.StatusOK, `[{"total_members":5,"total_activities":12,"total_distance":40.5,
				"total_calories":2300,"by_type":{"run":7,"swim":5}}]`)
		case "/rest/v1/rpc/recent_member_activities":
			var args map[string]int
			require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
			assert.Equal(t, 5, args["limit_rows"])
			respond(w, http.StatusOK, `[]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	sum, err := s.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.TotalMembers)
	assert.Equal(t, map[string]int64{"run": 7, "swim": 5}, sum.ByType)

	recent, err := s.RecentActivities(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestUpsertAndDeleteMembers(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "id", r.URL.Query().Get("on_conflict"))
			assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")
			var rows []map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
			require.Len(t, rows, 1)
			assert.Equal(t, "active", rows[0]["status"])
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			assert.Equal(t, `in.("user1@example.com","user2@example.com")`, r.URL.Query().Get("email"))
			w.WriteHeader(http.StatusNoContent)
		}
	})

	err := s.UpsertMembers(context.Background(), []store.Member{{ID: "u1", Email: "user1@example.com", Status: store.StatusActive}})
	require.NoError(t, err)
	require.NoError(t, s.DeleteMembersByEmail(context.Background(), []string{"user1@example.com", "user2@example.com"}))
}

func TestErrorBody(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusForbidden, `{"code":"42501","message":"new row violates row-level security policy"}`)
	})

	err := s.InsertActivity(context.Background(), store.Activity{MemberID: "u1", ActivityType: "run"})
	var restErr *Error
	require.ErrorAs(t, err, &restErr)
	assert.Equal(t, http.StatusForbidden, restErr.Status)
	assert.Equal(t, "42501", restErr.Code)
	assert.Equal(t, "new row violates row-level security policy", restErr.Message)
}
