// Package gate decides, for every inbound request, whether it is rewritten
// to the proxy target, passed through, or redirected to the login page.
package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fittrack/internal/i18n"
	"fittrack/internal/identity"
	"fittrack/internal/observability/logging"
	"fittrack/internal/observability/metrics"
	"fittrack/internal/store"

	"golang.org/x/exp/slices"
)

const (
	// ProxyPrefix marks requests rewritten to the proxy target
	ProxyPrefix = "/proxy/"

	// APIPrefix marks requests whose handlers authorize themselves
	APIPrefix = "/api"

	// LoginPath is where unauthenticated and inactive users are sent
	LoginPath = "/login"
)

// PublicRoutes are reachable without a session, as is any sub-path of them
var PublicRoutes = []string{"/", "/login", "/signup", "/auth", "/favicon.ico"}

// Kind is the closed set of gate outcomes
type Kind int

const (
	// Continue passes the request on to the application
	Continue Kind = iota
	// Rewrite serves the request from the proxy target
	Rewrite
	// Redirect sends the browser elsewhere
	Redirect
)

// Decision names the branch that produced an Action
type Decision string

const (
	DecisionProxy            Decision = "proxy_rewrite"
	DecisionIdentityDisabled Decision = "identity_disabled"
	DecisionPublic           Decision = "public"
	DecisionAPI              Decision = "api"
	DecisionUnauthenticated  Decision = "unauthenticated"
	DecisionInactive         Decision = "inactive"
	DecisionAllowed          Decision = "allowed"
)

// Action is the outcome of Evaluate. Cookies must be applied to whatever
// response is eventually written, redirects included.
type Action struct {
	Kind     Kind
	Decision Decision

	// Target is the absolute URL a Rewrite is served from
	Target *url.URL

	// Path and Query locate a Redirect
	Path  string
	Query url.Values

	// Cookies are the session mutations produced while resolving the user
	Cookies identity.CookieMutations

	// User is the resolved user; Resolved is false when no resolution ran
	User     *identity.User
	Resolved bool
}

// Location is the redirect target of a Redirect action
func (a Action) Location() string {
	if len(a.Query) == 0 {
		return a.Path
	}
	return a.Path + "?" + a.Query.Encode()
}

// Identity resolves sessions from request cookies
type Identity interface {
	GetUser(ctx context.Context, cookies []*http.Cookie) (*identity.User, identity.CookieMutations, error)
	Session(cookies []*http.Cookie) (*identity.Session, bool)
}

// Members looks up member status
type Members interface {
	MemberStatus(ctx context.Context, memberID string) (store.MemberStatus, error)
}

// Config holds gate configuration
type Config struct {
	// ProxyTarget is the rewrite base; nil disables the proxy branch
	ProxyTarget *url.URL

	// ProxyTimeout bounds the wait for upstream response headers
	ProxyTimeout time.Duration
}

// Gate evaluates requests and applies the resulting actions
type Gate struct {
	config     Config
	identity   Identity
	members    Members
	translator *i18n.Translator
	logger     *logging.Logger
	metrics    *metrics.Collector
	proxy      http.Handler
}

// New creates a new gate. A nil identity means the identity service is not
// configured and every non-proxy request passes through unchecked.
func New(config Config, idp Identity, members Members, translator *i18n.Translator, logger *logging.Logger, collector *metrics.Collector) *Gate {
	g := &Gate{
		config:     config,
		identity:   idp,
		members:    members,
		translator: translator,
		logger:     logger.WithModule("gate"),
		metrics:    collector,
	}
	if config.ProxyTarget != nil {
		g.proxy = newRewriteProxy(config.ProxyTimeout, g.logger, collector)
	}
	return g
}

// Evaluate classifies the request. Steps run in a fixed order and the first
// match wins. An error means the identity service or the store failed.
func (g *Gate) Evaluate(r *http.Request) (Action, error) {
	path := r.URL.Path

	if strings.HasPrefix(path, ProxyPrefix) && g.config.ProxyTarget != nil {
		return Action{Kind: Rewrite, Decision: DecisionProxy, Target: g.rewriteTarget(r.URL)}, nil
	}

	if g.identity == nil {
		return Action{Kind: Continue, Decision: DecisionIdentityDisabled}, nil
	}

	// resolution comes first so its cookie mutations reach every outcome
	ctx := r.Context()
	user, mutations, err := g.identity.GetUser(ctx, r.Cookies())
	if err != nil {
		return Action{}, fmt.Errorf("failed to resolve user: %w", err)
	}

	action := Action{Cookies: mutations, User: user, Resolved: true}

	if isPublic(path) {
		action.Kind, action.Decision = Continue, DecisionPublic
		return action, nil
	}

	if strings.HasPrefix(path, APIPrefix) {
		action.Kind, action.Decision = Continue, DecisionAPI
		return action, nil
	}

	if user == nil {
		action.Kind, action.Decision = Redirect, DecisionUnauthenticated
		action.Path = LoginPath
		action.Query = r.URL.Query()
		action.Query.Set("next", path)
		action.Query.Set("error", g.translator.Text(r, i18n.SignInRequired))
		return action, nil
	}

	if session, ok := g.identity.Session(mutations.Merge(r.Cookies())); ok {
		ctx = store.WithAccessToken(ctx, session.AccessToken)
	}
	status, err := g.members.MemberStatus(ctx, user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Action{}, fmt.Errorf("failed to look up member status: %w", err)
	}
	if !status.Active() {
		action.Kind, action.Decision = Redirect, DecisionInactive
		action.Path = LoginPath
		action.Query = r.URL.Query()
		action.Query.Set("error", g.translator.Text(r, i18n.AccountSuspended))
		return action, nil
	}

	action.Kind, action.Decision = Continue, DecisionAllowed
	return action, nil
}

func isPublic(path string) bool {
	return slices.ContainsFunc(PublicRoutes, func(route string) bool {
		return path == route || strings.HasPrefix(path, route+"/")
	})
}

// rewriteTarget joins the remainder after ProxyPrefix onto the target path,
// keeping the incoming query verbatim
func (g *Gate) rewriteTarget(in *url.URL) *url.URL {
	target := *g.config.ProxyTarget

	escaped := strings.TrimPrefix(in.EscapedPath(), ProxyPrefix)
	base := strings.TrimSuffix(g.config.ProxyTarget.EscapedPath(), "/")
	rawPath := base + "/" + escaped

	if p, err := url.PathUnescape(rawPath); err == nil {
		target.Path = p
		target.RawPath = rawPath
	} else {
		target.Path = strings.TrimSuffix(g.config.ProxyTarget.Path, "/") + "/" + strings.TrimPrefix(in.Path, ProxyPrefix)
		target.RawPath = ""
	}
	target.RawQuery = in.RawQuery
	target.ForceQuery = false
	target.Fragment = ""
	return &target
}
