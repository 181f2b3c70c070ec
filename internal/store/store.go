// Package store defines the data store used by the app: the members table,
// the member_activity table and two read-only aggregate procedures.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// MemberStatus is the closed set of member states. Anything the store
// returns that is not a known value maps to StatusUnknown.
type MemberStatus int

const (
	StatusUnknown MemberStatus = iota
	StatusActive
	StatusSuspended
	StatusInactive
)

// ParseMemberStatus maps a stored status string onto the enum
func ParseMemberStatus(s string) MemberStatus {
	switch s {
	case "active":
		return StatusActive
	case "suspended":
		return StatusSuspended
	case "inactive":
		return StatusInactive
	default:
		return StatusUnknown
	}
}

func (s MemberStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	case StatusInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Active reports whether the status grants access to protected pages
func (s MemberStatus) Active() bool {
	return s == StatusActive
}

// MarshalText writes the stored representation. StatusUnknown has none and
// cannot be written.
func (s MemberStatus) MarshalText() ([]byte, error) {
	if s == StatusUnknown {
		return nil, errors.New("cannot store unknown member status")
	}
	return []byte(s.String()), nil
}

// UnmarshalText never fails; unrecognized values become StatusUnknown
func (s *MemberStatus) UnmarshalText(b []byte) error {
	*s = ParseMemberStatus(strings.TrimSpace(string(b)))
	return nil
}

// Member is a row of the members table, keyed by the identity user id
type Member struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	FullName  *string      `json:"full_name"`
	AvatarURL *string      `json:"avatar_url"`
	Status    MemberStatus `json:"status"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
}

// Activity is a row of the member_activity table
type Activity struct {
	ID              string    `json:"id"`
	MemberID        string    `json:"member_id"`
	ActivityType    string    `json:"activity_type"`
	DistanceKm      float64   `json:"distance_km"`
	DurationMinutes float64   `json:"duration_minutes"`
	Calories        float64   `json:"calories"`
	OccurredAt      time.Time `json:"occurred_at"`
	Notes           *string   `json:"notes"`
}

// Summary holds the system-wide totals
type Summary struct {
	TotalMembers    int64            `json:"total_members"`
	TotalActivities int64            `json:"total_activities"`
	TotalDistance   float64          `json:"total_distance"`
	TotalCalories   float64          `json:"total_calories"`
	ByType          map[string]int64 `json:"by_type"`
}

// Store is the data access surface. Activity writes and deletes are always
// scoped to the owning member on top of whatever the backend enforces.
type Store interface {
	// MemberStatus returns the status of a member, ErrNotFound when no row exists
	MemberStatus(ctx context.Context, memberID string) (MemberStatus, error)

	// Member returns a full member row, ErrNotFound when no row exists
	Member(ctx context.Context, memberID string) (*Member, error)

	// ListActivities returns a member's activities, newest first
	ListActivities(ctx context.Context, memberID string, limit int) ([]Activity, error)

	InsertActivity(ctx context.Context, a Activity) error

	// UpdateActivity updates the activity with the given id owned by memberID.
	// ErrNotFound when nothing matched.
	UpdateActivity(ctx context.Context, id, memberID string, a Activity) error

	// DeleteActivity deletes the activity with the given id owned by memberID.
	// ErrNotFound when nothing matched.
	DeleteActivity(ctx context.Context, id, memberID string) error

	Summary(ctx context.Context) (*Summary, error)

	// RecentActivities returns the most recent activities across all members
	RecentActivities(ctx context.Context, limit int) ([]Activity, error)

	// UpsertMembers inserts or replaces member rows by id
	UpsertMembers(ctx context.Context, members []Member) error

	// DeleteMembersByEmail removes member rows whose email is listed
	DeleteMembersByEmail(ctx context.Context, emails []string) error

	Close()
}

type accessTokenKey struct{}

// WithAccessToken attaches the caller's access token so backends that
// enforce row-level policies act on the caller's behalf
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFromContext returns the access token attached to ctx, if any
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}
