package actions

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"fittrack/internal/i18n"
	"fittrack/internal/identity"
	"fittrack/internal/observability/logging"
	"fittrack/internal/store"
)

// SignInForm is the sign in form. Values are trimmed before validation.
type SignInForm struct {
	Email    string `form:"email" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// SignUpForm is the sign up form. FullName is optional.
type SignUpForm struct {
	Email    string `form:"email" validate:"required"`
	Password string `form:"password" validate:"required"`
	FullName string `form:"full_name"`
}

// ParseSignInForm reads a sign in form
func ParseSignInForm(v url.Values) SignInForm {
	return SignInForm{
		Email:    strings.TrimSpace(v.Get("email")),
		Password: strings.TrimSpace(v.Get("password")),
	}
}

// ParseSignUpForm reads a sign up form
func ParseSignUpForm(v url.Values) SignUpForm {
	return SignUpForm{
		Email:    strings.TrimSpace(v.Get("email")),
		Password: strings.TrimSpace(v.Get("password")),
		FullName: strings.TrimSpace(v.Get("full_name")),
	}
}

func withQuery(path, key, value string) string {
	return path + "?" + url.Values{key: {value}}.Encode()
}

// serviceMessage is what the identity service said, for display
func serviceMessage(err error) string {
	var svcErr *identity.Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return err.Error()
}

// SignIn signs the user in with email and password. A member whose status
// is not active is signed out again at once. Running it twice for a
// suspended account leaves no session behind either time.
func (a *Actions) SignIn(ctx context.Context, form SignInForm, cookies []*http.Cookie) Redirect {
	logger := logging.FromContextOr(ctx, a.logger)

	if err := a.validate.Struct(form); err != nil {
		return Redirect{Location: withQuery("/login", "error", i18n.MissingEmailOrPassword)}
	}

	mutations, err := a.identity.SignInWithPassword(ctx, form.Email, form.Password, cookies)
	if err != nil {
		logger.Info("Sign in refused", "email", logging.MaskedEmail(form.Email), logging.Err(err))
		return Redirect{Location: withQuery("/login", "error", serviceMessage(err))}
	}

	current := mutations.Merge(cookies)
	user, more, err := a.identity.GetUser(ctx, current)
	mutations = mutations.Then(more)
	if err != nil || user == nil {
		if err != nil {
			logger.Warn("Failed to fetch user after sign in", logging.Err(err))
		}
		return Redirect{Location: withQuery("/login", "error", i18n.UnableToFetchUser), Cookies: mutations}
	}
	current = more.Merge(current)

	if session, ok := a.identity.Session(current); ok {
		ctx = store.WithAccessToken(ctx, session.AccessToken)
	}
	status, err := a.store.MemberStatus(ctx, user.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// no members row yet; provisioning happens outside the app
	case err != nil:
		logger.Warn("Failed to look up member status after sign in", "user_id", user.ID, logging.Err(err))
	case !status.Active():
		deletions, err := a.identity.SignOut(ctx, current)
		if err != nil {
			logger.Warn("Failed to revoke session of inactive member", "user_id", user.ID, logging.Err(err))
		}
		logger.Info("Inactive member signed out", "user_id", user.ID, "status", status.String())
		return Redirect{
			Location: withQuery("/login", "error", i18n.AccountSuspendedCode),
			Cookies:  mutations.Then(deletions),
		}
	}

	return Redirect{Location: "/account", Cookies: mutations}
}

// SignUp registers a user. It never creates the members row.
func (a *Actions) SignUp(ctx context.Context, form SignUpForm, cookies []*http.Cookie) Redirect {
	if err := a.validate.Struct(form); err != nil {
		return Redirect{Location: withQuery("/signup", "error", i18n.MissingEmailOrPassword)}
	}

	var metadata map[string]any
	if form.FullName != "" {
		metadata = map[string]any{"full_name": form.FullName}
	}

	mutations, err := a.identity.SignUp(ctx, form.Email, form.Password, metadata, cookies)
	if err != nil {
		logging.FromContextOr(ctx, a.logger).Info("Sign up refused", "email", logging.MaskedEmail(form.Email), logging.Err(err))
		return Redirect{Location: withQuery("/signup", "error", serviceMessage(err))}
	}

	return Redirect{Location: withQuery("/login", "success", i18n.CheckEmailOrSignIn), Cookies: mutations}
}

// SignOut ends the session and returns to the login page
func (a *Actions) SignOut(ctx context.Context, cookies []*http.Cookie) Redirect {
	deletions, err := a.identity.SignOut(ctx, cookies)
	if err != nil {
		logging.FromContextOr(ctx, a.logger).Warn("Sign out failed remotely", logging.Err(err))
	}
	return Redirect{Location: "/login", Cookies: deletions}
}
