// Package postgres implements store.Store directly against Postgres using a
// pgx pool. It connects as a trusted role, so every activity query carries
// the owning member filter itself.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"fittrack/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the pool
type Config struct {
	URL      string
	MaxConns int32
}

// Store is a pgx backed store
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open parses the DSN, applies the pool size and connects
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const activitySelect = `
SELECT id::text, member_id::text, activity_type,
       coalesce(distance_km, 0)::float8, coalesce(duration_minutes, 0)::float8,
       coalesce(calories, 0)::float8, occurred_at, notes
FROM member_activity`

func (s *Store) MemberStatus(ctx context.Context, memberID string) (store.MemberStatus, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT coalesce(status, '') FROM members WHERE id = $1`, memberID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.StatusUnknown, store.ErrNotFound
	}
	if err != nil {
		return store.StatusUnknown, fmt.Errorf("failed to query member status: %w", err)
	}
	return store.ParseMemberStatus(status), nil
}

func (s *Store) Member(ctx context.Context, memberID string) (*store.Member, error) {
	var (
		m      store.Member
		status string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, coalesce(email, ''), full_name, avatar_url, coalesce(status, ''), updated_at
		FROM members WHERE id = $1`, memberID).
		Scan(&m.ID, &m.Email, &m.FullName, &m.AvatarURL, &status, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query member: %w", err)
	}
	m.Status = store.ParseMemberStatus(status)
	return &m, nil
}

func scanActivities(rows pgx.Rows) ([]store.Activity, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Activity, error) {
		var a store.Activity
		err := row.Scan(&a.ID, &a.MemberID, &a.ActivityType,
			&a.DistanceKm, &a.DurationMinutes, &a.Calories, &a.OccurredAt, &a.Notes)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan activities: %w", err)
	}
	return out, nil
}

func (s *Store) ListActivities(ctx context.Context, memberID string, limit int) ([]store.Activity, error) {
	rows, err := s.pool.Query(ctx, activitySelect+`
		WHERE member_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	return scanActivities(rows)
}

func (s *Store) InsertActivity(ctx context.Context, a store.Activity) error {
	var id any
	if a.ID != "" {
		id = a.ID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO member_activity
			(id, member_id, activity_type, distance_km, duration_minutes, calories, occurred_at, notes)
		VALUES (coalesce($1::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8)`,
		id, a.MemberID, a.ActivityType, a.DistanceKm, a.DurationMinutes, a.Calories, a.OccurredAt, a.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func (s *Store) UpdateActivity(ctx context.Context, id, memberID string, a store.Activity) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE member_activity
		SET activity_type = $3, distance_km = $4, duration_minutes = $5,
		    calories = $6, occurred_at = $7, notes = $8
		WHERE id = $1 AND member_id = $2`,
		id, memberID, a.ActivityType, a.DistanceKm, a.DurationMinutes, a.Calories, a.OccurredAt, a.Notes)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteActivity(ctx context.Context, id, memberID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM member_activity WHERE id = $1 AND member_id = $2`, id, memberID)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Summary(ctx context.Context) (*store.Summary, error) {
	sum := store.Summary{ByType: map[string]int64{}}
	err := s.pool.QueryRow(ctx, `
		SELECT coalesce(total_members, 0)::int8, coalesce(total_activities, 0)::int8,
		       coalesce(total_distance, 0)::float8, coalesce(total_calories, 0)::float8,
		       coalesce(by_type, '{}'::jsonb)
		FROM member_activity_summary()`).
		Scan(&sum.TotalMembers, &sum.TotalActivities, &sum.TotalDistance, &sum.TotalCalories, &sum.ByType)
	if errors.Is(err, pgx.ErrNoRows) {
		return &sum, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	return &sum, nil
}

func (s *Store) RecentActivities(ctx context.Context, limit int) ([]store.Activity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT coalesce(id::text, ''), coalesce(member_id::text, ''), activity_type,
		       coalesce(distance_km, 0)::float8, coalesce(duration_minutes, 0)::float8,
		       coalesce(calories, 0)::float8, occurred_at, notes
		FROM recent_member_activities($1)`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent activities: %w", err)
	}
	return scanActivities(rows)
}

func (s *Store) UpsertMembers(ctx context.Context, members []store.Member) error {
	if len(members) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range members {
		status, err := m.Status.MarshalText()
		if err != nil {
			return fmt.Errorf("member %s: %w", m.ID, err)
		}
		batch.Queue(`
			INSERT INTO members (id, email, full_name, avatar_url, status, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (id) DO UPDATE
			SET email = excluded.email, full_name = excluded.full_name,
			    avatar_url = excluded.avatar_url, status = excluded.status,
			    updated_at = excluded.updated_at`,
			m.ID, m.Email, m.FullName, m.AvatarURL, string(status))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert members: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit members: %w", err)
	}
	return nil
}

func (s *Store) DeleteMembersByEmail(ctx context.Context, emails []string) error {
	if len(emails) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM members WHERE email = ANY($1)`, emails); err != nil {
		return fmt.Errorf("failed to delete members: %w", err)
	}
	return nil
}
