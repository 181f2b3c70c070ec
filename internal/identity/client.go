package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fittrack/internal/observability/logging"
	"fittrack/internal/observability/metrics"
)

// Config holds identity client configuration
type Config struct {
	// URL is the backend project base URL
	URL string

	// AnonKey is the public API key
	AnonKey string

	// CookieName is the base name of the session cookie
	CookieName string

	// CookieSecure marks written cookies Secure
	CookieSecure bool

	// VerifyJWKS validates access tokens locally instead of calling /user
	VerifyJWKS bool

	// Timeout bounds each call
	Timeout time.Duration
}

// Client resolves and manages cookie-backed sessions
type Client struct {
	transport
	cookies  cookieCodec
	verifier *Verifier
	logger   *logging.Logger
}

// New creates a new identity client
func New(ctx context.Context, config Config, logger *logging.Logger, collector *metrics.Collector) (*Client, error) {
	if config.URL == "" || config.AnonKey == "" {
		return nil, fmt.Errorf("identity service URL and anon key are required")
	}
	if config.CookieName == "" {
		config.CookieName = "sb-auth-token"
	}

	c := &Client{
		transport: newTransport(config.URL, config.AnonKey, config.Timeout, collector),
		cookies:   cookieCodec{name: config.CookieName, secure: config.CookieSecure},
		logger:    logger.WithModule("identity"),
	}
	if config.VerifyJWKS {
		c.verifier = NewVerifier(ctx, config.URL)
	}
	return c, nil
}

// GetUser resolves the user from the request cookies. The session is
// refreshed when the access token has expired; the resulting mutations must
// be applied to the response whatever it turns out to be. A missing, refused
// or unverifiable session yields a nil user and no error. Errors are
// reserved for the service being unreachable or failing.
func (c *Client) GetUser(ctx context.Context, cookies []*http.Cookie) (*User, CookieMutations, error) {
	logger := logging.FromContextOr(ctx, c.logger)

	session, ok := c.cookies.read(cookies)
	if !ok {
		return nil, nil, nil
	}

	var mutations CookieMutations
	if !session.Token().Valid() {
		if session.RefreshToken == "" {
			return nil, c.cookies.clear(cookies), nil
		}

		refreshed, err := c.refresh(ctx, session.RefreshToken)
		if err != nil {
			var svcErr *Error
			if errors.As(err, &svcErr) && svcErr.Rejected() {
				logger.Info("Session refresh refused, clearing session", "code", svcErr.Code)
				return nil, c.cookies.clear(cookies), nil
			}
			return nil, nil, err
		}

		mutations, err = c.cookies.write(refreshed, cookies)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode refreshed session: %w", err)
		}
		session = refreshed
		logger.Debug("Session refreshed")
	}

	user, err := c.validate(ctx, session)
	if err != nil {
		return nil, mutations, err
	}
	return user, mutations, nil
}

// validate turns a session into a trusted user, either by verifying the
// access token locally or by asking the service
func (c *Client) validate(ctx context.Context, session *Session) (*User, error) {
	if c.verifier != nil {
		user, err := c.verifier.Verify(ctx, session.AccessToken)
		if err != nil {
			logging.FromContextOr(ctx, c.logger).Debug("Access token rejected", logging.Err(err))
			return nil, nil
		}
		return user, nil
	}

	var user User
	err := c.call(ctx, "get_user", http.MethodGet, "/user", nil, session.AccessToken, nil, &user)
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) && (svcErr.Status == http.StatusUnauthorized || svcErr.Status == http.StatusForbidden) {
			return nil, nil
		}
		return nil, err
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

// UserForToken resolves a bare access token, as sent by API clients in an
// Authorization header. Rejected tokens yield a nil user and no error.
func (c *Client) UserForToken(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, nil
	}
	return c.validate(ctx, &Session{AccessToken: accessToken})
}

// Session returns the session stored in the cookies without validating it.
// Callers use it to forward the access token to the data store after
// GetUser has vouched for it.
func (c *Client) Session(cookies []*http.Cookie) (*Session, bool) {
	return c.cookies.read(cookies)
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var session Session
	err := c.call(ctx, "refresh", http.MethodPost, "/token",
		url.Values{"grant_type": {"refresh_token"}}, "",
		map[string]string{"refresh_token": refreshToken}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
