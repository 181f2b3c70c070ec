// Package actions implements the form actions behind the pages: sign in,
// sign up, sign out and activity writes. Actions never fail across their
// boundary; they answer with a redirect or a Result.
package actions

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"fittrack/internal/i18n"
	"fittrack/internal/identity"
	"fittrack/internal/observability/logging"
	"fittrack/internal/store"

	"github.com/go-playground/validator/v10"
)

// Identity is the part of the identity client the actions use
type Identity interface {
	GetUser(ctx context.Context, cookies []*http.Cookie) (*identity.User, identity.CookieMutations, error)
	Session(cookies []*http.Cookie) (*identity.Session, bool)
	SignInWithPassword(ctx context.Context, email, password string, existing []*http.Cookie) (identity.CookieMutations, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any, existing []*http.Cookie) (identity.CookieMutations, error)
	SignOut(ctx context.Context, cookies []*http.Cookie) (identity.CookieMutations, error)
}

// Store is the part of the data store the actions use
type Store interface {
	MemberStatus(ctx context.Context, memberID string) (store.MemberStatus, error)
	InsertActivity(ctx context.Context, a store.Activity) error
	UpdateActivity(ctx context.Context, id, memberID string, a store.Activity) error
	DeleteActivity(ctx context.Context, id, memberID string) error
}

// Redirect is the outcome of an auth action
type Redirect struct {
	Location string
	Cookies  identity.CookieMutations
}

// Result is the outcome of an activity action
type Result struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Actions holds the collaborators shared by all actions
type Actions struct {
	identity Identity
	store    Store
	validate *validator.Validate
	logger   *logging.Logger
}

// New creates the actions
func New(idp Identity, s Store, logger *logging.Logger) *Actions {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report form field names rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Actions{
		identity: idp,
		store:    s,
		validate: v,
		logger:   logger.WithModule("actions"),
	}
}

// failedOn reports whether validation failed on the named form field
func failedOn(err error, field string) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Field() == field {
			return true
		}
	}
	return false
}

// storeMessage is implemented by store errors whose text is fit for users
type storeMessage interface {
	UserMessage() string
}

func (a *Actions) failure(ctx context.Context, operation string, err error) Result {
	logging.FromContextOr(ctx, a.logger).Warn("Activity action failed", "operation", operation, logging.Err(err))

	var sm storeMessage
	if errors.As(err, &sm) && sm.UserMessage() != "" {
		return Result{Error: sm.UserMessage()}
	}
	return Result{Error: i18n.UnexpectedError}
}
