package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fittrack/internal/actions"
	"fittrack/internal/contextutil"
	"fittrack/internal/i18n"
	"fittrack/internal/observability"
	"fittrack/internal/observability/logging"
	"fittrack/internal/store"

	"github.com/gorilla/mux"
)

// apiError is the body of every failed API call
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (a *App) apiHandler() http.Handler {
	router := mux.NewRouter()
	router.Use(observability.RecordRoute)
	router.Use(a.authenticateAPI)

	router.HandleFunc("/api/stats", a.apiStats).Methods(http.MethodGet)
	router.HandleFunc("/api/activities", a.apiListActivities).Methods(http.MethodGet)
	router.HandleFunc("/api/activities", a.apiSaveActivity).Methods(http.MethodPost)
	router.HandleFunc("/api/activities/{id}", a.apiDeleteActivity).Methods(http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "not_found"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method_not_allowed"})
	})

	return a.cors(router)
}

// bearerToken extracts the token of an Authorization: Bearer header
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// authenticateAPI resolves API callers that did not come with a session
// cookie from their bearer token. Anonymous callers pass on; handlers decide
// whether they need a user.
func (a *App) authenticateAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if currentUser(ctx) != nil || a.identity == nil {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := a.identity.UserForToken(ctx, token)
		if err != nil {
			logging.FromContextOr(ctx, a.logger).Error("Failed to resolve bearer token", logging.Err(err))
			writeJSON(w, http.StatusBadGateway, apiError{Error: "identity_unavailable"})
			return
		}
		if user != nil {
			ctx = contextutil.WithUser(ctx, user)
			ctx = store.WithAccessToken(ctx, token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *App) unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, apiError{
		Error:   i18n.NotAuthenticated,
		Message: a.translator.Text(r, i18n.NotAuthenticated),
	})
}

// activeMember answers the request itself unless the caller is a signed in
// member whose status is active. The gate lets /api through, so member
// scoped endpoints check the status here.
func (a *App) activeMember(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	user := currentUser(ctx)
	if user == nil {
		a.unauthorized(w, r)
		return false
	}

	status, err := a.store.MemberStatus(ctx, user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		a.storeFailure(w, r, "member_status", err)
		return false
	}
	if !status.Active() {
		logging.FromContextOr(ctx, a.logger).Info("API call refused for inactive member",
			"user_id", user.ID, "status", status.String())
		writeJSON(w, http.StatusForbidden, apiError{
			Error:   i18n.AccountSuspendedCode,
			Message: a.translator.Text(r, i18n.AccountSuspendedCode),
		})
		return false
	}
	return true
}

func (a *App) storeFailure(w http.ResponseWriter, r *http.Request, operation string, err error) {
	logging.FromContextOr(r.Context(), a.logger).Error("Data store call failed", "operation", operation, logging.Err(err))
	writeJSON(w, http.StatusBadGateway, apiError{
		Error:   i18n.UnexpectedError,
		Message: a.translator.Text(r, i18n.UnexpectedError),
	})
}

func (a *App) apiStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sum, err := a.store.Summary(ctx)
	if err != nil {
		a.storeFailure(w, r, "summary", err)
		return
	}
	recent, err := a.store.RecentActivities(ctx, dashboardRecent)
	if err != nil {
		a.storeFailure(w, r, "recent_activities", err)
		return
	}
	if recent == nil {
		recent = []store.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": sum, "recent": recent})
}

// listLimit reads the limit parameter, falling back to the account page size
func listLimit(q url.Values) int {
	n, err := strconv.Atoi(q.Get("limit"))
	if err != nil || n <= 0 {
		return accountActivities
	}
	return min(n, maxAPIActivities)
}

func (a *App) apiListActivities(w http.ResponseWriter, r *http.Request) {
	if !a.activeMember(w, r) {
		return
	}
	user := currentUser(r.Context())
	activities, err := a.store.ListActivities(r.Context(), user.ID, listLimit(r.URL.Query()))
	if err != nil {
		a.storeFailure(w, r, "list_activities", err)
		return
	}
	if activities == nil {
		activities = []store.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

// activityRequest is the JSON form of an activity write. Absent numbers
// are stored as zero, as they are for the HTML form.
type activityRequest struct {
	ID              string   `json:"id"`
	ActivityType    string   `json:"activity_type"`
	DistanceKm      *float64 `json:"distance_km"`
	DurationMinutes *float64 `json:"duration_minutes"`
	Calories        *float64 `json:"calories"`
	OccurredAt      string   `json:"occurred_at"`
	Notes           string   `json:"notes"`
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func (req activityRequest) form() actions.ActivityForm {
	return actions.ParseActivityForm(url.Values{
		"id":               {req.ID},
		"activity_type":    {req.ActivityType},
		"distance_km":      {formatNumber(req.DistanceKm)},
		"duration_minutes": {formatNumber(req.DurationMinutes)},
		"calories":         {formatNumber(req.Calories)},
		"occurred_at":      {req.OccurredAt},
		"notes":            {req.Notes},
	})
}

// resultStatus maps an action result onto an HTTP status
func resultStatus(res actions.Result) int {
	switch res.Error {
	case "":
		return http.StatusOK
	case i18n.NotAuthenticated:
		return http.StatusUnauthorized
	case i18n.NotFound:
		return http.StatusNotFound
	case i18n.ActivityTypeRequired, i18n.InvalidID:
		return http.StatusBadRequest
	case i18n.UnexpectedError:
		return http.StatusBadGateway
	default:
		// the store refused the write and said why
		return http.StatusUnprocessableEntity
	}
}

func (a *App) writeResult(w http.ResponseWriter, r *http.Request, res actions.Result) {
	if res.Error == "" {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, resultStatus(res), apiError{Error: res.Error, Message: a.translator.Text(r, res.Error)})
}

func (a *App) apiSaveActivity(w http.ResponseWriter, r *http.Request) {
	if !a.activeMember(w, r) {
		return
	}

	var req activityRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "malformed_body", Message: err.Error()})
		return
	}
	a.writeResult(w, r, a.actions.UpsertActivity(r.Context(), req.form()))
}

func (a *App) apiDeleteActivity(w http.ResponseWriter, r *http.Request) {
	if !a.activeMember(w, r) {
		return
	}
	a.writeResult(w, r, a.actions.DeleteActivity(r.Context(), mux.Vars(r)["id"]))
}
