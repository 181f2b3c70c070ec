package store

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by every call of a store that was never
// configured
var ErrUnavailable = errors.New("data store is not configured")

type unavailable struct{}

// Unavailable returns a store whose calls all fail with ErrUnavailable. It
// stands in when no backend is configured so the server still starts and
// pages render without data.
func Unavailable() Store {
	return unavailable{}
}

func (unavailable) MemberStatus(context.Context, string) (MemberStatus, error) {
	return StatusUnknown, ErrUnavailable
}

func (unavailable) Member(context.Context, string) (*Member, error) {
	return nil, ErrUnavailable
}

func (unavailable) ListActivities(context.Context, string, int) ([]Activity, error) {
	return nil, ErrUnavailable
}

func (unavailable) InsertActivity(context.Context, Activity) error { return ErrUnavailable }

func (unavailable) UpdateActivity(context.Context, string, string, Activity) error {
	return ErrUnavailable
}

func (unavailable) DeleteActivity(context.Context, string, string) error { return ErrUnavailable }

func (unavailable) Summary(context.Context) (*Summary, error) { return nil, ErrUnavailable }

func (unavailable) RecentActivities(context.Context, int) ([]Activity, error) {
	return nil, ErrUnavailable
}

func (unavailable) UpsertMembers(context.Context, []Member) error { return ErrUnavailable }

func (unavailable) DeleteMembersByEmail(context.Context, []string) error { return ErrUnavailable }

func (unavailable) Close() {}
