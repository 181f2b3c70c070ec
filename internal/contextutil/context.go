package contextutil

import (
	"context"

	"fittrack/internal/identity"
)

// Key is a type-safe key for context values
type Key string

const (
	// UserKey is the key for the user resolved by the gate
	UserKey Key = "context:user"

	// UserResolvedKey marks that the gate already ran session resolution
	UserResolvedKey Key = "context:user_resolved"
)

// WithUser records the outcome of session resolution. user may be nil, in
// which case handlers know the request is anonymous without asking again.
func WithUser(ctx context.Context, user *identity.User) context.Context {
	ctx = context.WithValue(ctx, UserResolvedKey, true)
	return context.WithValue(ctx, UserKey, user)
}

// GetUser returns the user resolved by the gate. ok is false when the gate
// did not resolve a session for this request.
func GetUser(ctx context.Context) (user *identity.User, ok bool) {
	if resolved, _ := ctx.Value(UserResolvedKey).(bool); !resolved {
		return nil, false
	}
	user, _ = ctx.Value(UserKey).(*identity.User)
	return user, true
}
