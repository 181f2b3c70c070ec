// Package seed provisions the demo accounts: identity users with confirmed
// email and metadata, plus an active members row for each.
package seed

import (
	"context"
	"fmt"
	"strconv"

	"fittrack/internal/identity"
	"fittrack/internal/observability/logging"
	"fittrack/internal/store"
)

// Account is one demo login
type Account struct {
	Email     string
	Password  string
	FullName  string
	AvatarURL string
}

// DemoPassword is shared by all demo accounts
const DemoPassword = "Password!234"

// DemoAccounts are the accounts Run provisions
var DemoAccounts = func() []Account {
	names := []string{"Somchai Saengdee", "Somsri Rakthai", "Wichai Meesook", "Ananya Jaiyen", "Kitti Panit"}
	accounts := make([]Account, len(names))
	for i, name := range names {
		user := "user" + strconv.Itoa(i+1)
		accounts[i] = Account{
			Email:     user + "@example.com",
			Password:  DemoPassword,
			FullName:  name,
			AvatarURL: "https://ui-avatars.com/api/?name=" + user,
		}
	}
	return accounts
}()

// Admin is the privileged identity API used for provisioning
type Admin interface {
	FindUsersByEmail(ctx context.Context, emails []string) (map[string]identity.User, error)
	CreateUser(ctx context.Context, attrs identity.UserAttributes) (*identity.User, error)
	UpdateUser(ctx context.Context, id string, attrs identity.UserAttributes) (*identity.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Members writes members rows, bypassing row level security
type Members interface {
	UpsertMembers(ctx context.Context, members []store.Member) error
	DeleteMembersByEmail(ctx context.Context, emails []string) error
}

// Seeder provisions accounts
type Seeder struct {
	admin   Admin
	members Members
	logger  *logging.Logger
}

// New creates a seeder
func New(admin Admin, members Members, logger *logging.Logger) *Seeder {
	return &Seeder{admin: admin, members: members, logger: logger.WithModule("seed")}
}

func emailsOf(accounts []Account) []string {
	emails := make([]string, len(accounts))
	for i, a := range accounts {
		emails[i] = a.Email
	}
	return emails
}

// Run creates or updates every account. Existing users keep their id and
// get their password and metadata reset, so Run can be repeated. With reset
// the members rows and users are deleted first; members go first because
// they reference the users.
func (s *Seeder) Run(ctx context.Context, accounts []Account, reset bool) error {
	emails := emailsOf(accounts)

	if reset {
		existing, err := s.admin.FindUsersByEmail(ctx, emails)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		if err := s.members.DeleteMembersByEmail(ctx, emails); err != nil {
			return fmt.Errorf("failed to delete members: %w", err)
		}
		for email, user := range existing {
			if err := s.admin.DeleteUser(ctx, user.ID); err != nil {
				return fmt.Errorf("failed to delete user %s: %w", email, err)
			}
			s.logger.Info("Deleted user", "email", logging.MaskedEmail(email))
		}
	}

	existing, err := s.admin.FindUsersByEmail(ctx, emails)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	rows := make([]store.Member, 0, len(accounts))
	for _, a := range accounts {
		attrs := identity.UserAttributes{
			Email:        a.Email,
			Password:     a.Password,
			EmailConfirm: true,
			UserMetadata: map[string]any{
				"full_name":  a.FullName,
				"avatar_url": a.AvatarURL,
			},
		}

		var id string
		if user, ok := existing[a.Email]; ok {
			attrs.Email = ""
			if _, err := s.admin.UpdateUser(ctx, user.ID, attrs); err != nil {
				return fmt.Errorf("failed to update user %s: %w", a.Email, err)
			}
			id = user.ID
			s.logger.Info("Updated user", "email", logging.MaskedEmail(a.Email))
		} else {
			created, err := s.admin.CreateUser(ctx, attrs)
			if err != nil {
				return fmt.Errorf("failed to create user %s: %w", a.Email, err)
			}
			id = created.ID
			s.logger.Info("Created user", "email", logging.MaskedEmail(a.Email))
		}

		fullName, avatarURL := a.FullName, a.AvatarURL
		rows = append(rows, store.Member{
			ID:        id,
			Email:     a.Email,
			FullName:  &fullName,
			AvatarURL: &avatarURL,
			Status:    store.StatusActive,
		})
	}

	if err := s.members.UpsertMembers(ctx, rows); err != nil {
		return fmt.Errorf("failed to upsert members: %w", err)
	}
	return nil
}
