package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fittrack/internal/observability/metrics"
)

// Admin calls the privileged user management endpoints. It authenticates
// with the service role key and must never be reachable from a request.
type Admin struct {
	transport
}

// UserAttributes are the fields accepted when creating or updating a user
type UserAttributes struct {
	Email        string         `json:"email,omitempty"`
	Password     string         `json:"password,omitempty"`
	EmailConfirm bool           `json:"email_confirm,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// NewAdmin creates an admin client
func NewAdmin(baseURL, serviceKey string, timeout time.Duration, collector *metrics.Collector) (*Admin, error) {
	if baseURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("identity service URL and service key are required")
	}
	return &Admin{transport: newTransport(baseURL, serviceKey, timeout, collector)}, nil
}

// ListUsers returns one page of users, pages start at 1
func (a *Admin) ListUsers(ctx context.Context, page, perPage int) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	query := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
	if err := a.call(ctx, "admin_list_users", http.MethodGet, "/admin/users", query, "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// FindUsersByEmail pages through all users until every wanted email is
// found or the listing is exhausted
func (a *Admin) FindUsersByEmail(ctx context.Context, emails []string) (map[string]User, error) {
	const perPage = 200

	wanted := make(map[string]bool, len(emails))
	for _, e := range emails {
		wanted[e] = true
	}

	found := make(map[string]User, len(emails))
	for page := 1; len(found) < len(wanted); page++ {
		users, err := a.ListUsers(ctx, page, perPage)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.Email != "" && wanted[u.Email] {
				found[u.Email] = u
			}
		}
		if len(users) < perPage {
			break
		}
	}
	return found, nil
}

// CreateUser creates a user
func (a *Admin) CreateUser(ctx context.Context, attrs UserAttributes) (*User, error) {
	var user User
	if err := a.call(ctx, "admin_create_user", http.MethodPost, "/admin/users", nil, "", attrs, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser updates a user by id
func (a *Admin) UpdateUser(ctx context.Context, id string, attrs UserAttributes) (*User, error) {
	var user User
	if err := a.call(ctx, "admin_update_user", http.MethodPut, "/admin/users/"+url.PathEscape(id), nil, "", attrs, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser deletes a user by id
func (a *Admin) DeleteUser(ctx context.Context, id string) error {
	return a.call(ctx, "admin_delete_user", http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, "", nil, nil)
}
