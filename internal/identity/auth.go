package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// SignInWithPassword exchanges credentials for a session and returns the
// cookies that store it
func (c *Client) SignInWithPassword(ctx context.Context, email, password string, existing []*http.Cookie) (CookieMutations, error) {
	var session Session
	err := c.call(ctx, "sign_in", http.MethodPost, "/token",
		url.Values{"grant_type": {"password"}}, "",
		map[string]string{"email": email, "password": password}, &session)
	if err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, &Error{Status: http.StatusBadGateway, Message: "token response carried no access token"}
	}

	mutations, err := c.cookies.write(&session, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return mutations, nil
}

// signUpResponse is either a bare user (confirmation pending) or a full
// session when the project auto-confirms
type signUpResponse struct {
	Session
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignUp registers a user. metadata is stored as user metadata. When the
// service answers with a session the returned mutations store it.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any, existing []*http.Cookie) (CookieMutations, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}

	var resp signUpResponse
	if err := c.call(ctx, "sign_up", http.MethodPost, "/signup", nil, "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, nil
	}

	mutations, err := c.cookies.write(&resp.Session, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return mutations, nil
}

// SignOut revokes the session remotely and always returns the mutations
// that delete the session cookies, even when revocation failed
func (c *Client) SignOut(ctx context.Context, cookies []*http.Cookie) (CookieMutations, error) {
	deletions := c.cookies.clear(cookies)

	session, ok := c.cookies.read(cookies)
	if !ok {
		return deletions, nil
	}

	err := c.call(ctx, "sign_out", http.MethodPost, "/logout", nil, session.AccessToken, nil, nil)
	if err != nil {
		var svcErr *Error
		// an already invalid session is signed out as far as we care
		if errors.As(err, &svcErr) && svcErr.Rejected() {
			return deletions, nil
		}
		return deletions, err
	}
	return deletions, nil
}
