package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"keepsafeAPI/internal/types/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

const userColumns = `id, clerk_id, email, username, full_name, avatar_url, bio, email_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	var fullName, avatarURL, bio *string

	err := row.Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Username,
		&fullName, &avatarURL, &bio,
		&u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if fullName != nil {
		u.FullName = *fullName
	}
	if avatarURL != nil {
		u.AvatarURL = *avatarURL
	}
	if bio != nil {
		u.Bio = *bio
	}
	return u, nil
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	now := time.Now()

	query := `
	INSERT INTO users (id, clerk_id, email, username, full_name, avatar_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(
		ctx, query,
		uuid.New().String(), req.ClerkID, req.Email, req.Username, req.FullName, req.AvatarURL, now, now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE clerk_id = $1`

	u, err := scanUser(s.db.QueryRow(ctx, query, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users
	SET
		username = COALESCE(NULLIF($2, ''), username),
		full_name = COALESCE(NULLIF($3, ''), full_name),
		avatar_url = COALESCE(NULLIF($4, ''), avatar_url),
		bio = COALESCE(NULLIF($5, ''), bio),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, clerkID, req.Username, req.FullName, req.AvatarURL, req.Bio))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

func (s *UserService) UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET email_verified = $2, updated_at = NOW() WHERE clerk_id = $1`, clerkID, verified)
	return err
}

func (s *UserService) SearchUsers(ctx context.Context, clerkID, query string) ([]*user.Summary, error) {
	cleanQuery := strings.TrimSpace(query)
	if cleanQuery == "" {
		return []*user.Summary{}, nil
	}
	searchPattern := "%" + cleanQuery + "%"

	sqlQuery := `
	SELECT id, username, full_name, avatar_url
	FROM users
	WHERE (username ILIKE $1 OR full_name ILIKE $1 OR email ILIKE $1)
		AND clerk_id != $2
	ORDER BY
		(LOWER(username) = LOWER($3)) DESC,
		(username ILIKE $3 || '%') DESC,
		username
	LIMIT 50
	`

	rows, err := s.db.Query(ctx, sqlQuery, searchPattern, clerkID, cleanQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []*user.Summary
	for rows.Next() {
		u := &user.Summary{}
		var fullName, avatarURL *string
		if err := rows.Scan(&u.ID, &u.Username, &fullName, &avatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if fullName != nil {
			u.FullName = *fullName
		}
		if avatarURL != nil {
			u.AvatarURL = *avatarURL
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if users == nil {
		users = []*user.Summary{}
	}
	return users, nil
}
