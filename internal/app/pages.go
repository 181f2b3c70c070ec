package app

import (
	"errors"
	"net/http"
	"net/url"
	"sort"

	"fittrack/internal/actions"
	"fittrack/internal/i18n"
	"fittrack/internal/identity"
	"fittrack/internal/observability/logging"
	"fittrack/internal/store"

	"github.com/gorilla/mux"
	"golang.org/x/text/language"
)

// page is what every template sees
type page struct {
	Lang    language.Tag
	User    *identity.User
	Error   string
	Success string
}

func (a *App) newPage(r *http.Request) page {
	q := r.URL.Query()
	return page{
		Lang:    a.language(r),
		User:    currentUser(r.Context()),
		Error:   q.Get("error"),
		Success: q.Get("success"),
	}
}

type typeCount struct {
	Type  string
	Count int64
}

type dashboardView struct {
	page
	Summary store.Summary
	ByType  []typeCount
	Recent  []store.Activity
}

func (a *App) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContextOr(ctx, a.logger)
	data := dashboardView{page: a.newPage(r)}

	if sum, err := a.store.Summary(ctx); err != nil {
		logger.Warn("Failed to load activity summary", logging.Err(err))
	} else {
		data.Summary = *sum
		for t, n := range sum.ByType {
			data.ByType = append(data.ByType, typeCount{Type: t, Count: n})
		}
		sort.Slice(data.ByType, func(i, j int) bool {
			if data.ByType[i].Count != data.ByType[j].Count {
				return data.ByType[i].Count > data.ByType[j].Count
			}
			return data.ByType[i].Type < data.ByType[j].Type
		})
	}

	recent, err := a.store.RecentActivities(ctx, dashboardRecent)
	if err != nil {
		logger.Warn("Failed to load recent activities", logging.Err(err))
	}
	data.Recent = recent

	a.render(w, r, "dashboard", data)
}

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "login", a.newPage(r))
}

func (a *App) signupPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "signup", a.newPage(r))
}

type accountView struct {
	page
	Member     *store.Member
	Activities []store.Activity
	// Blank backs the empty new-activity form
	Blank store.Activity
}

func (a *App) accountPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContextOr(ctx, a.logger)

	data := accountView{page: a.newPage(r)}
	if data.User == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	member, err := a.store.Member(ctx, data.User.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		logger.Warn("Failed to load member profile", "user_id", data.User.ID, logging.Err(err))
	default:
		data.Member = member
	}

	data.Activities, err = a.store.ListActivities(ctx, data.User.ID, accountActivities)
	if err != nil {
		logger.Warn("Failed to load activities", "user_id", data.User.ID, logging.Err(err))
	}

	a.render(w, r, "account", data)
}

func (a *App) signIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	redirect(w, r, a.actions.SignIn(r.Context(), actions.ParseSignInForm(r.PostForm), r.Cookies()))
}

func (a *App) signUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	redirect(w, r, a.actions.SignUp(r.Context(), actions.ParseSignUpForm(r.PostForm), r.Cookies()))
}

func (a *App) signOut(w http.ResponseWriter, r *http.Request) {
	redirect(w, r, a.actions.SignOut(r.Context(), r.Cookies()))
}

// accountResult sends the browser back to the account page with the
// outcome of an activity action
func accountResult(res actions.Result, success string) actions.Redirect {
	if res.Error != "" {
		return actions.Redirect{Location: "/account?" + url.Values{"error": {res.Error}}.Encode()}
	}
	return actions.Redirect{Location: "/account?success=" + success}
}

func (a *App) saveActivity(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	res := a.actions.UpsertActivity(r.Context(), actions.ParseActivityForm(r.PostForm))
	redirect(w, r, accountResult(res, i18n.ActivitySaved))
}

func (a *App) removeActivity(w http.ResponseWriter, r *http.Request) {
	res := a.actions.DeleteActivity(r.Context(), mux.Vars(r)["id"])
	redirect(w, r, accountResult(res, i18n.ActivityDeleted))
}
