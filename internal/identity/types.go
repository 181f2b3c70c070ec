// Package identity is a client for the GoTrue-compatible identity service.
//
// Sessions live in cookies. Reading the session can refresh it, so every
// operation that may touch the session returns the cookie mutations the
// caller has to apply to whatever response it ends up writing.
package identity

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// User is the identity resolved from a session
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Session is the credential material stored in the session cookie. The JSON
// shape matches the token endpoint response so it can be stored verbatim.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Token returns the session as an oauth2 token. Expiry comes from
// expires_at, or from the access token's exp claim when that is missing.
func (s *Session) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
	}
	switch {
	case s.ExpiresAt > 0:
		tok.Expiry = time.Unix(s.ExpiresAt, 0)
	default:
		tok.Expiry = accessTokenExpiry(s.AccessToken)
	}
	return tok
}

// accessTokenExpiry reads exp without verifying the signature; the token is
// still validated by the identity service before it is trusted
func accessTokenExpiry(accessToken string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Error is a non-2xx answer from the identity service
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity service: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity service: %d: %s", e.Status, e.Message)
}

// Rejected reports whether the service refused the request, as opposed to
// failing to handle it
func (e *Error) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// errorBody covers both error shapes the service emits
type errorBody struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Err              string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (b errorBody) toError(status int) *Error {
	e := &Error{Status: status, Code: b.ErrorCode}
	if e.Code == "" {
		e.Code = b.Err
	}
	for _, m := range []string{b.Msg, b.ErrorDescription, b.Message, b.Err} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// CookieMutations are cookies the identity service wants set or deleted.
// A cookie with MaxAge < 0 is a deletion.
type CookieMutations []*http.Cookie

// Apply writes the mutations as Set-Cookie headers
func (m CookieMutations) Apply(w http.ResponseWriter) {
	for _, c := range m {
		http.SetCookie(w, c)
	}
}

// Then combines two rounds of mutations; for a cookie touched by both the
// later one wins
func (m CookieMutations) Then(next CookieMutations) CookieMutations {
	if len(next) == 0 {
		return m
	}
	replaced := make(map[string]bool, len(next))
	for _, c := range next {
		replaced[c.Name] = true
	}
	out := make(CookieMutations, 0, len(m)+len(next))
	for _, c := range m {
		if !replaced[c.Name] {
			out = append(out, c)
		}
	}
	return append(out, next...)
}

// Merge returns cookies with the mutations applied, preserving order
func (m CookieMutations) Merge(cookies []*http.Cookie) []*http.Cookie {
	if len(m) == 0 {
		return cookies
	}
	changed := make(map[string]*http.Cookie, len(m))
	for _, c := range m {
		changed[c.Name] = c
	}

	merged := make([]*http.Cookie, 0, len(cookies)+len(m))
	seen := make(map[string]bool, len(cookies))
	for _, c := range cookies {
		seen[c.Name] = true
		if mc, ok := changed[c.Name]; ok {
			if mc.MaxAge < 0 {
				continue
			}
			merged = append(merged, &http.Cookie{Name: mc.Name, Value: mc.Value})
			continue
		}
		merged = append(merged, c)
	}
	for _, mc := range m {
		if !seen[mc.Name] && mc.MaxAge >= 0 {
			merged = append(merged, &http.Cookie{Name: mc.Name, Value: mc.Value})
		}
	}
	return merged
}

// ApplyToRequest rewrites the request's Cookie header so handlers further
// down the chain observe the refreshed session
func (m CookieMutations) ApplyToRequest(r *http.Request) {
	if len(m) == 0 {
		return
	}
	merged := m.Merge(r.Cookies())
	r.Header.Del("Cookie")
	for _, c := range merged {
		r.AddCookie(c)
	}
}
