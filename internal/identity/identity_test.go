package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fittrack/internal/observability/logging"
	"fittrack/internal/observability/metrics"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookie = "sb-test-auth-token"

func makeToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		URL:        srv.URL,
		AnonKey:    "anon-key",
		CookieName: testCookie,
		Timeout:    2 * time.Second,
	}, logging.Discard(), metrics.NewCollector())
	require.NoError(t, err)
	return c
}

// requestCookies turns written mutations into what a browser sends back
func requestCookies(m CookieMutations) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range m {
		if c.MaxAge >= 0 {
			out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return out
}

func sessionCookies(t *testing.T, s *Session) []*http.Cookie {
	t.Helper()
	m, err := cookieCodec{name: testCookie}.write(s, nil)
	require.NoError(t, err)
	return requestCookies(m)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCookieCodec(t *testing.T) {
	codec := cookieCodec{name: testCookie}

	t.Run("single cookie round trip", func(t *testing.T) {
		s := &Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: 42}
		m, err := codec.write(s, nil)
		require.NoError(t, err)
		require.Len(t, m, 1)
		assert.Equal(t, testCookie, m[0].Name)
		assert.True(t, strings.HasPrefix(m[0].Value, base64Prefix))

		got, ok := codec.read(requestCookies(m))
		require.True(t, ok)
		assert.Equal(t, s.AccessToken, got.AccessToken)
		assert.Equal(t, s.RefreshToken, got.RefreshToken)
	})

	t.Run("large session is chunked and stale cookie deleted", func(t *testing.T) {
		s := &Session{AccessToken: strings.Repeat("x", 5000), RefreshToken: "r"}
		existing := []*http.Cookie{{Name: testCookie, Value: "old"}, {Name: "other", Value: "keep"}}

		m, err := codec.write(s, existing)
		require.NoError(t, err)

		names := map[string]int{}
		for _, c := range m {
			names[c.Name] = c.MaxAge
		}
		assert.Contains(t, names, testCookie+".0")
		assert.Contains(t, names, testCookie+".1")
		assert.Equal(t, -1, names[testCookie], "plain cookie replaced by chunks must be deleted")
		assert.NotContains(t, names, "other")

		got, ok := codec.read(requestCookies(m))
		require.True(t, ok)
		assert.Equal(t, s.AccessToken, got.AccessToken)
	})

	t.Run("raw json value is accepted", func(t *testing.T) {
		got, ok := codec.read([]*http.Cookie{{Name: testCookie, Value: `{"access_token":"a","refresh_token":"r"}`}})
		require.True(t, ok)
		assert.Equal(t, "a", got.AccessToken)
	})

	t.Run("garbage is no session", func(t *testing.T) {
		_, ok := codec.read([]*http.Cookie{{Name: testCookie, Value: "base64-***"}})
		assert.False(t, ok)
	})
}

func TestSessionTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	s := &Session{AccessToken: makeToken(t, "u1", exp)}
	assert.True(t, s.Token().Expiry.Equal(exp), "expiry falls back to the exp claim")
	assert.True(t, s.Token().Valid())

	s.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	assert.False(t, s.Token().Valid(), "expires_at wins over the claim")
}

func TestGetUser(t *testing.T) {
	t.Run("no session cookie", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))

		user, m, err := c.GetUser(context.Background(), []*http.Cookie{{Name: "unrelated", Value: "1"}})
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.Empty(t, m)
		assert.Zero(t, calls.Load())
	})

	t.Run("valid session resolves through the service", func(t *testing.T) {
		access := makeToken(t, "u1", time.Now().Add(time.Hour))
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/user", r.URL.Path)
			assert.Equal(t, "anon-key", r.Header.Get("apikey"))
			assert.Equal(t, "Bearer "+access, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, User{ID: "u1", Email: "u1@example.com"})
		}))

		user, m, err := c.GetUser(context.Background(), sessionCookies(t, &Session{AccessToken: access, RefreshToken: "r1"}))
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "u1", user.ID)
		assert.Empty(t, m)
	})

	t.Run("expired session is refreshed and cookies rewritten", func(t *testing.T) {
		fresh := makeToken(t, "u1", time.Now().Add(time.Hour))
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/v1/token":
				assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "r-old", body["refresh_token"])
				writeJSON(w, http.StatusOK, Session{
					AccessToken:  fresh,
					RefreshToken: "r-new",
					ExpiresAt:    time.Now().Add(time.Hour).Unix(),
				})
			case "/auth/v1/user":
				assert.Equal(t, "Bearer "+fresh, r.Header.Get("Authorization"))
				writeJSON(w, http.StatusOK, User{ID: "u1"})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))

		stale := &Session{AccessToken: "stale", RefreshToken: "r-old", ExpiresAt: time.Now().Add(-time.Hour).Unix()}
		user, m, err := c.GetUser(context.Background(), sessionCookies(t, stale))
		require.NoError(t, err)
		require.NotNil(t, user)
		require.NotEmpty(t, m)

		got, ok := c.Session(requestCookies(m))
		require.True(t, ok)
		assert.Equal(t, "r-new", got.RefreshToken)
	})

	t.Run("refused refresh clears the session", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token"})
		}))

		stale := &Session{AccessToken: "stale", RefreshToken: "gone", ExpiresAt: 1}
		user, m, err := c.GetUser(context.Background(), sessionCookies(t, stale))
		require.NoError(t, err)
		assert.Nil(t, user)
		require.Len(t, m, 1)
		assert.Equal(t, -1, m[0].MaxAge)
	})

	t.Run("unauthorized token is no user", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "invalid JWT"})
		}))

		user, _, err := c.GetUser(context.Background(), sessionCookies(t, &Session{AccessToken: "a", RefreshToken: "r"}))
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("service failure propagates", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, _, err := c.GetUser(context.Background(), sessionCookies(t, &Session{AccessToken: "a", RefreshToken: "r"}))
		var svcErr *Error
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, http.StatusInternalServerError, svcErr.Status)
	})
}

func TestUserForToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, User{ID: "u1"})
	}))

	user, err := c.UserForToken(context.Background(), "good")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)

	user, err = c.UserForToken(context.Background(), "bad")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = c.UserForToken(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSignInWithPassword(t *testing.T) {
	t.Run("success stores the session", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
			writeJSON(w, http.StatusOK, Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).Unix()})
		}))

		m, err := c.SignInWithPassword(context.Background(), "u@example.com", "pw", nil)
		require.NoError(t, err)
		s, ok := c.Session(requestCookies(m))
		require.True(t, ok)
		assert.Equal(t, "a", s.AccessToken)
	})

	t.Run("service message is preserved", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "error_code": "invalid_credentials", "msg": "Invalid login credentials"})
		}))

		_, err := c.SignInWithPassword(context.Background(), "u@example.com", "bad", nil)
		var svcErr *Error
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, "Invalid login credentials", svcErr.Message)
		assert.Equal(t, "invalid_credentials", svcErr.Code)
	})
}

func TestSignUp(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"full_name": "Somchai"}, body["data"])
		writeJSON(w, http.StatusOK, map[string]any{"id": "u9", "email": "n@example.com"})
	}))

	m, err := c.SignUp(context.Background(), "n@example.com", "pw", map[string]any{"full_name": "Somchai"}, nil)
	require.NoError(t, err)
	assert.Empty(t, m, "confirmation pending means no session")
}

func TestSignOutAlwaysClearsCookies(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	m, err := c.SignOut(context.Background(), sessionCookies(t, &Session{AccessToken: "a", RefreshToken: "r"}))
	assert.Error(t, err)
	require.Len(t, m, 1)
	assert.Equal(t, -1, m[0].MaxAge)
}

func TestCookieMutationsApplyToRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/account", nil)
	r.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	r.AddCookie(&http.Cookie{Name: testCookie, Value: "old"})
	r.AddCookie(&http.Cookie{Name: testCookie + ".1", Value: "stale"})

	CookieMutations{
		{Name: testCookie, Value: "new"},
		{Name: testCookie + ".1", MaxAge: -1},
	}.ApplyToRequest(r)

	got := map[string]string{}
	for _, c := range r.Cookies() {
		got[c.Name] = c.Value
	}
	assert.Equal(t, map[string]string{"theme": "dark", testCookie: "new"}, got)
}

func TestCookieMutationsThen(t *testing.T) {
	first := CookieMutations{
		{Name: testCookie, Value: "a"},
		{Name: "theme", Value: "dark"},
	}
	second := CookieMutations{{Name: testCookie, MaxAge: -1}}

	got := first.Then(second)
	require.Len(t, got, 2)
	assert.Equal(t, "theme", got[0].Name)
	assert.Equal(t, testCookie, got[1].Name)
	assert.Equal(t, -1, got[1].MaxAge)

	assert.Equal(t, first, first.Then(nil))
	merged := got.Merge([]*http.Cookie{{Name: testCookie, Value: "old"}})
	require.Len(t, merged, 1)
	assert.Equal(t, "theme", merged[0].Name)
}

func TestAdminFindUsersByEmail(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		pages.Add(1)
		users := []User{{ID: "1", Email: "user1@example.com"}, {ID: "2", Email: "other@example.com"}}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	}))
	t.Cleanup(srv.Close)

	admin, err := NewAdmin(srv.URL, "service-key", time.Second, nil)
	require.NoError(t, err)

	found, err := admin.FindUsersByEmail(context.Background(), []string{"user1@example.com", "user2@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "1", found["user1@example.com"].ID)
	assert.NotContains(t, found, "user2@example.com")
	assert.Equal(t, int32(1), pages.Load(), "a short page ends the listing")
}
