// Package rest implements store.Store against a PostgREST endpoint
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fittrack/internal/store"
)

const (
	membersTable  = "members"
	activityTable = "member_activity"

	activityColumns = "id,member_id,activity_type,distance_km,duration_minutes,calories,occurred_at,notes"
	memberColumns   = "id,email,full_name,avatar_url,status,updated_at"
)

// Config holds PostgREST client configuration
type Config struct {
	// URL is the project base URL; requests go to <URL>/rest/v1
	URL string

	// APIKey is sent as the apikey header and as the bearer when the
	// context carries no access token
	APIKey string

	// Timeout bounds each call
	Timeout time.Duration
}

// Store talks to PostgREST over HTTP
type Store struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ store.Store = (*Store)(nil)

// New creates a new PostgREST store
func New(config Config) (*Store, error) {
	if config.URL == "" || config.APIKey == "" {
		return nil, fmt.Errorf("data store URL and API key are required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Store{
		baseURL:    strings.TrimSuffix(config.URL, "/") + "/rest/v1",
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Error is a non-2xx answer from PostgREST
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("data store: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("data store: %d: %s", e.Status, e.Message)
}

// UserMessage is the message PostgREST meant for the caller
func (e *Error) UserMessage() string {
	return e.Message
}

// request describes one PostgREST call
type request struct {
	method string
	path   string
	query  url.Values
	prefer []string
	body   any
}

func (s *Store) do(ctx context.Context, req request, out any) error {
	var reader io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := s.baseURL + "/" + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("apikey", s.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if len(req.prefer) > 0 {
		httpReq.Header.Set("Prefer", strings.Join(req.prefer, ","))
	}

	bearer := store.AccessTokenFromContext(ctx)
	if bearer == "" {
		bearer = s.apiKey
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("data store %s %s failed: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &Error{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, e)
		}
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return e
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode %s response: %w", req.path, err)
	}
	return nil
}

func eq(v string) string {
	return "eq." + v
}

// in builds an in.(...) filter with every value double-quoted
func in(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}

func (s *Store) MemberStatus(ctx context.Context, memberID string) (store.MemberStatus, error) {
	var rows []struct {
		Status store.MemberStatus `json:"status"`
	}
	err := s.do(ctx, request{
		method: http.MethodGet,
		path:   membersTable,
		query:  url.Values{"select": {"status"}, "id": {eq(memberID)}, "limit": {"1"}},
	}, &rows)
	if err != nil {
		return store.StatusUnknown, err
	}
	if len(rows) == 0 {
		return store.StatusUnknown, store.ErrNotFound
	}
	return rows[0].Status, nil
}

func (s *Store) Member(ctx context.Context, memberID string) (*store.Member, error) {
	var rows []store.Member
	err := s.do(ctx, request{
		method: http.MethodGet,
		path:   membersTable,
		query:  url.Values{"select": {memberColumns}, "id": {eq(memberID)}, "limit": {"1"}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Store) ListActivities(ctx context.Context, memberID string, limit int) ([]store.Activity, error) {
	var rows []store.Activity
	err := s.do(ctx, request{
		method: http.MethodGet,
		path:   activityTable,
		query: url.Values{
			"select":    {activityColumns},
			"member_id": {eq(memberID)},
			"order":     {"occurred_at.desc"},
			"limit":     {strconv.Itoa(limit)},
		},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// activityRow is the write payload; an empty id lets the database assign one
type activityRow struct {
	ID              string    `json:"id,omitempty"`
	MemberID        string    `json:"member_id"`
	ActivityType    string    `json:"activity_type"`
	DistanceKm      float64   `json:"distance_km"`
	DurationMinutes float64   `json:"duration_minutes"`
	Calories        float64   `json:"calories"`
	OccurredAt      time.Time `json:"occurred_at"`
	Notes           *string   `json:"notes"`
}

func toRow(a store.Activity) activityRow {
	return activityRow{
		ID:              a.ID,
		MemberID:        a.MemberID,
		ActivityType:    a.ActivityType,
		DistanceKm:      a.DistanceKm,
		DurationMinutes: a.DurationMinutes,
		Calories:        a.Calories,
		OccurredAt:      a.OccurredAt.UTC(),
		Notes:           a.Notes,
	}
}

func (s *Store) InsertActivity(ctx context.Context, a store.Activity) error {
	return s.do(ctx, request{
		method: http.MethodPost,
		path:   activityTable,
		prefer: []string{"return=minimal"},
		body:   toRow(a),
	}, nil)
}

func (s *Store) UpdateActivity(ctx context.Context, id, memberID string, a store.Activity) error {
	row := toRow(a)
	row.ID = ""
	row.MemberID = memberID

	var touched []struct {
		ID string `json:"id"`
	}
	err := s.do(ctx, request{
		method: http.MethodPatch,
		path:   activityTable,
		query:  url.Values{"id": {eq(id)}, "member_id": {eq(memberID)}, "select": {"id"}},
		prefer: []string{"return=representation"},
		body:   row,
	}, &touched)
	if err != nil {
		return err
	}
	if len(touched) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteActivity(ctx context.Context, id, memberID string) error {
	var touched []struct {
		ID string `json:"id"`
	}
	err := s.do(ctx, request{
		method: http.MethodDelete,
		path:   activityTable,
		query:  url.Values{"id": {eq(id)}, "member_id": {eq(memberID)}, "select": {"id"}},
		prefer: []string{"return=representation"},
	}, &touched)
	if err != nil {
		return err
	}
	if len(touched) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Summary(ctx context.Context) (*store.Summary, error) {
	var rows []store.Summary
	err := s.do(ctx, request{
		method: http.MethodPost,
		path:   "rpc/member_activity_summary",
		body:   map[string]any{},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &store.Summary{ByType: map[string]int64{}}, nil
	}
	sum := rows[0]
	if sum.ByType == nil {
		sum.ByType = map[string]int64{}
	}
	return &sum, nil
}

func (s *Store) RecentActivities(ctx context.Context, limit int) ([]store.Activity, error) {
	var rows []store.Activity
	err := s.do(ctx, request{
		method: http.MethodPost,
		path:   "rpc/recent_member_activities",
		body:   map[string]int{"limit_rows": limit},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) UpsertMembers(ctx context.Context, members []store.Member) error {
	if len(members) == 0 {
		return nil
	}
	return s.do(ctx, request{
		method: http.MethodPost,
		path:   membersTable,
		query:  url.Values{"on_conflict": {"id"}},
		prefer: []string{"resolution=merge-duplicates", "return=minimal"},
		body:   members,
	}, nil)
}

func (s *Store) DeleteMembersByEmail(ctx context.Context, emails []string) error {
	if len(emails) == 0 {
		return nil
	}
	return s.do(ctx, request{
		method: http.MethodDelete,
		path:   membersTable,
		query:  url.Values{"email": {in(emails)}},
	}, nil)
}

// Close releases idle connections
func (s *Store) Close() {
	s.httpClient.CloseIdleConnections()
}
