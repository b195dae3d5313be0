package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"keepsafeAPI/internal/streak"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StreakStore is the persistence adapter for streak records. Get returns
// (nil, nil) when the user has no stored record. Mutate runs a full
// read-compute-write cycle atomically, so two devices updating the same user
// cannot lose each other's writes.
type StreakStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*streak.Record, error)
	Set(ctx context.Context, userID uuid.UUID, rec streak.Record) error
	Mutate(ctx context.Context, userID uuid.UUID, fn func(stored *streak.Record) streak.Record) (streak.Record, error)
}

type PostgresStreakStore struct {
	db *pgxpool.Pool
}

func NewPostgresStreakStore(db *pgxpool.Pool) *PostgresStreakStore {
	return &PostgresStreakStore{db: db}
}

const streakSelectQuery = `
	SELECT current_streak, max_streak, last_entry_date, last_access_time, user_time_zone
	FROM streaks
	WHERE user_id = $1
`

func (s *PostgresStreakStore) Get(ctx context.Context, userID uuid.UUID) (*streak.Record, error) {
	rec, err := scanStreakRow(s.db.QueryRow(ctx, streakSelectQuery, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get streak record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStreakStore) Set(ctx context.Context, userID uuid.UUID, rec streak.Record) error {
	if err := upsertStreakRow(ctx, s.db, userID, rec); err != nil {
		return fmt.Errorf("failed to save streak record: %w", err)
	}
	return nil
}

// Mutate locks the user's row for the duration of the transaction. Same-day
// engine updates are idempotent, so a retried call after a commit failure is
// safe to re-run from scratch.
func (s *PostgresStreakStore) Mutate(ctx context.Context, userID uuid.UUID, fn func(stored *streak.Record) streak.Record) (streak.Record, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return streak.Record{}, fmt.Errorf("failed to begin streak update: %w", err)
	}
	defer tx.Rollback(ctx)

	var stored *streak.Record
	rec, err := scanStreakRow(tx.QueryRow(ctx, streakSelectQuery+" FOR UPDATE", userID))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return streak.Record{}, fmt.Errorf("failed to read streak record: %w", err)
		}
	} else {
		stored = rec
	}

	updated := fn(stored)

	if err := upsertStreakRow(ctx, tx, userID, updated); err != nil {
		return streak.Record{}, fmt.Errorf("failed to save streak record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return streak.Record{}, fmt.Errorf("failed to commit streak update: %w", err)
	}

	return updated, nil
}

// StaleUserIDs returns users whose streak row has not been evaluated since
// the cutoff and still shows a running streak. Used by the sweeper.
func (s *PostgresStreakStore) StaleUserIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	query := `
	SELECT user_id
	FROM streaks
	WHERE current_streak > 0
		AND (last_access_time IS NULL OR last_access_time < $1)
	LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale streaks: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// pgxpool.Pool and pgx.Tx both satisfy this, so the upsert can run inside
// or outside a transaction.
type streakExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func scanStreakRow(row pgx.Row) (*streak.Record, error) {
	var (
		rec       streak.Record
		entryDate *time.Time
		access    *time.Time
	)

	if err := row.Scan(&rec.CurrentStreak, &rec.MaxStreak, &entryDate, &access, &rec.UserTimeZone); err != nil {
		return nil, err
	}

	if entryDate != nil {
		rec.LastEntryDate = entryDate.Format(streak.DateLayout)
	}
	rec.LastAccessTime = access

	return &rec, nil
}

const streakUpsertQuery = `
	INSERT INTO streaks (user_id, current_streak, max_streak, last_entry_date, last_access_time, user_time_zone, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	ON CONFLICT (user_id)
	DO UPDATE SET
		current_streak = $2,
		max_streak = $3,
		last_entry_date = $4,
		last_access_time = $5,
		user_time_zone = $6,
		updated_at = NOW()
`

func upsertStreakRow(ctx context.Context, db streakExecer, userID uuid.UUID, rec streak.Record) error {
	var entryDate *string
	if rec.LastEntryDate != "" {
		entryDate = &rec.LastEntryDate
	}

	_, err := db.Exec(ctx, streakUpsertQuery,
		userID,
		rec.CurrentStreak,
		rec.MaxStreak,
		entryDate,
		rec.LastAccessTime,
		rec.UserTimeZone,
	)
	return err
}
