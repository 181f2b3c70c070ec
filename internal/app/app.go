// Package app is the HTTP surface behind the gate: the HTML pages, the form
// posts that drive the actions and the JSON API.
package app

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"fittrack/internal/actions"
	"fittrack/internal/contextutil"
	"fittrack/internal/i18n"
	"fittrack/internal/identity"
	"fittrack/internal/observability"
	"fittrack/internal/observability/logging"
	"fittrack/internal/store"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Identity is the part of the identity client the handlers use
type Identity interface {
	Session(cookies []*http.Cookie) (*identity.Session, bool)
	UserForToken(ctx context.Context, accessToken string) (*identity.User, error)
}

// Store is the read side of the data store used by pages and the API
type Store interface {
	MemberStatus(ctx context.Context, memberID string) (store.MemberStatus, error)
	Member(ctx context.Context, memberID string) (*store.Member, error)
	ListActivities(ctx context.Context, memberID string, limit int) ([]store.Activity, error)
	Summary(ctx context.Context) (*store.Summary, error)
	RecentActivities(ctx context.Context, limit int) ([]store.Activity, error)
}

// Actions are the writes behind the forms and the API
type Actions interface {
	SignIn(ctx context.Context, form actions.SignInForm, cookies []*http.Cookie) actions.Redirect
	SignUp(ctx context.Context, form actions.SignUpForm, cookies []*http.Cookie) actions.Redirect
	SignOut(ctx context.Context, cookies []*http.Cookie) actions.Redirect
	UpsertActivity(ctx context.Context, form actions.ActivityForm) actions.Result
	DeleteActivity(ctx context.Context, id string) actions.Result
}

// Config holds app configuration
type Config struct {
	// AllowedOrigins may call the JSON API cross-origin; empty disables CORS
	AllowedOrigins []string
}

const (
	// dashboardRecent is how many activities the dashboard lists
	dashboardRecent = 5
	// accountActivities is how many activities the account page lists
	accountActivities = 50
	// maxAPIActivities caps the limit parameter of the activity listing
	maxAPIActivities = 200
)

// App serves the pages and the API
type App struct {
	config     Config
	identity   Identity
	store      Store
	actions    Actions
	translator *i18n.Translator
	templates  *template.Template
	logger     *logging.Logger
}

// New creates the app. A nil identity means sign in is not configured: the
// auth forms answer with an error and the API only sees anonymous callers.
func New(config Config, idp Identity, s Store, acts Actions, translator *i18n.Translator, logger *logging.Logger) (*App, error) {
	a := &App{
		config:     config,
		identity:   idp,
		store:      s,
		actions:    acts,
		translator: translator,
		logger:     logger.WithModule("app"),
	}

	tmpl, err := template.New("").Funcs(a.templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	a.templates = tmpl
	return a, nil
}

// Handler returns the router for everything behind the gate
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(observability.RecordRoute)
	router.Use(a.withAccessToken)

	router.HandleFunc("/", a.dashboard).Methods(http.MethodGet)
	router.HandleFunc("/login", a.loginPage).Methods(http.MethodGet)
	router.HandleFunc("/signup", a.signupPage).Methods(http.MethodGet)
	router.HandleFunc("/account", a.accountPage).Methods(http.MethodGet)

	// registered on the root router so a wrong method answers 405
	router.Handle("/auth/signin", a.requireIdentity(http.HandlerFunc(a.signIn))).Methods(http.MethodPost)
	router.Handle("/auth/signup", a.requireIdentity(http.HandlerFunc(a.signUp))).Methods(http.MethodPost)
	router.Handle("/auth/signout", a.requireIdentity(http.HandlerFunc(a.signOut))).Methods(http.MethodPost)

	router.HandleFunc("/account/activities", a.saveActivity).Methods(http.MethodPost)
	router.HandleFunc("/account/activities/{id}/delete", a.removeActivity).Methods(http.MethodPost)

	router.PathPrefix("/api/").Handler(a.apiHandler())

	static, _ := fs.Sub(staticFS, "static")
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	return router
}

// Health answers load balancer probes. It is mounted outside the gate.
func (a *App) Health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// withAccessToken forwards the session's access token to the data store so
// row level security applies to the signed in member
func (a *App) withAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.identity != nil {
			if session, ok := a.identity.Session(r.Cookies()); ok {
				r = r.WithContext(store.WithAccessToken(r.Context(), session.AccessToken))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (a *App) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.identity == nil {
			back := "/login"
			if r.URL.Path == "/auth/signup" {
				back = "/signup"
			}
			http.Redirect(w, r, back+"?error="+i18n.IdentityUnavailable, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *App) cors(next http.Handler) http.Handler {
	if len(a.config.AllowedOrigins) == 0 {
		return next
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   a.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})(next)
}

// language picks the display language for r
func (a *App) language(r *http.Request) language.Tag {
	return a.translator.Language(r.Header.Get("Accept-Language"))
}

func currentUser(ctx context.Context) *identity.User {
	user, _ := contextutil.GetUser(ctx)
	return user
}

func (a *App) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"t":     func(tag language.Tag, key string) string { return a.translator.TextFor(tag, key) },
		"title": i18n.Title,
		"num": func(tag language.Tag, v float64) string {
			return a.translator.PrinterFor(tag).Sprintf("%.2f", v)
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.UTC().Format("2006-01-02 15:04")
		},
		"inputTime": func(t time.Time) string { return t.UTC().Format("2006-01-02T15:04") },
		"text": func(s *string) string {
			if s == nil || *s == "" {
				return "-"
			}
			return *s
		},
	}
}

func (a *App) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logging.FromContextOr(r.Context(), a.logger).Error("Failed to render page", "page", name, logging.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// redirect applies the action's cookies and sends the browser on. Form posts
// are answered with 303 so the follow-up is a GET.
func redirect(w http.ResponseWriter, r *http.Request, res actions.Redirect) {
	res.Cookies.Apply(w)
	http.Redirect(w, r, res.Location, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
