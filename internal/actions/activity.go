package actions

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fittrack/internal/contextutil"
	"fittrack/internal/i18n"
	"fittrack/internal/store"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// ActivityForm is the raw activity form. Numbers and the timestamp are
// parsed leniently; see UpsertActivity.
type ActivityForm struct {
	ID              string `form:"id" validate:"omitempty,uuid"`
	ActivityType    string `form:"activity_type" validate:"required"`
	DistanceKm      string `form:"distance_km"`
	DurationMinutes string `form:"duration_minutes"`
	Calories        string `form:"calories"`
	OccurredAt      string `form:"occurred_at"`
	Notes           string `form:"notes"`
}

// ParseActivityForm reads an activity form
func ParseActivityForm(v url.Values) ActivityForm {
	return ActivityForm{
		ID:              strings.TrimSpace(v.Get("id")),
		ActivityType:    norm.NFC.String(strings.TrimSpace(v.Get("activity_type"))),
		DistanceKm:      v.Get("distance_km"),
		DurationMinutes: v.Get("duration_minutes"),
		Calories:        v.Get("calories"),
		OccurredAt:      v.Get("occurred_at"),
		Notes:           v.Get("notes"),
	}
}

// timeLayouts are tried in order; zone-less values are taken as UTC
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// now is swapped in tests
var now = time.Now

// parseNumber falls back to 0 for anything that is not a finite number.
// Besides decimals only unsigned 0x, 0o and 0b integers are numbers; digit
// separators and hex floats are not.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsRune(s, '_') {
		return 0
	}
	if len(s) > 2 && s[0] == '0' && strings.ContainsRune("xXoObB", rune(s[1])) {
		n, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return 0
		}
		return float64(n)
	}
	if strings.ContainsAny(s, "xXpP") {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseOccurredAt falls back to the current time for anything unparseable
func parseOccurredAt(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return now().UTC()
}

func parseNotes(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// UpsertActivity creates an activity, or updates it when the form carries
// an id. Writes are always scoped to the signed in member.
func (a *Actions) UpsertActivity(ctx context.Context, form ActivityForm) Result {
	user, _ := contextutil.GetUser(ctx)
	if user == nil {
		return Result{Error: i18n.NotAuthenticated}
	}

	form.ActivityType = strings.TrimSpace(form.ActivityType)
	if err := a.validate.Struct(form); err != nil {
		if failedOn(err, "activity_type") {
			return Result{Error: i18n.ActivityTypeRequired}
		}
		return Result{Error: i18n.InvalidID}
	}

	activity := store.Activity{
		MemberID:        user.ID,
		ActivityType:    form.ActivityType,
		DistanceKm:      parseNumber(form.DistanceKm),
		DurationMinutes: parseNumber(form.DurationMinutes),
		Calories:        parseNumber(form.Calories),
		OccurredAt:      parseOccurredAt(form.OccurredAt),
		Notes:           parseNotes(form.Notes),
	}

	if form.ID != "" {
		err := a.store.UpdateActivity(ctx, form.ID, user.ID, activity)
		if errors.Is(err, store.ErrNotFound) {
			return Result{Error: i18n.NotFound}
		}
		if err != nil {
			return a.failure(ctx, "update_activity", err)
		}
		return Result{Success: true}
	}

	activity.ID = uuid.NewString()
	if err := a.store.InsertActivity(ctx, activity); err != nil {
		return a.failure(ctx, "insert_activity", err)
	}
	return Result{Success: true}
}

// DeleteActivity deletes one of the signed in member's activities
func (a *Actions) DeleteActivity(ctx context.Context, id string) Result {
	user, _ := contextutil.GetUser(ctx)
	if user == nil {
		return Result{Error: i18n.NotAuthenticated}
	}
	if err := uuid.Validate(id); err != nil {
		return Result{Error: i18n.InvalidID}
	}

	err := a.store.DeleteActivity(ctx, id, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Error: i18n.NotFound}
	}
	if err != nil {
		return a.failure(ctx, "delete_activity", err)
	}
	return Result{Success: true}
}
