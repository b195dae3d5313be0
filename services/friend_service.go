package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"keepsafeAPI/internal/types/friendship"
	"keepsafeAPI/internal/types/notification"
	"keepsafeAPI/internal/types/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FriendService struct {
	db                  *pgxpool.Pool
	notificationService *NotificationService
}

func NewFriendService(db *pgxpool.Pool, notificationService *NotificationService) *FriendService {
	return &FriendService{
		db:                  db,
		notificationService: notificationService,
	}
}

func (s *FriendService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found: %w", err)
	}
	return userID, nil
}

// SendRequest creates a pending friendship from the caller to friendID.
// A declined request can be re-sent; an existing pending or accepted
// friendship in either direction is an error.
func (s *FriendService) SendRequest(ctx context.Context, clerkID string, friendID uuid.UUID) (*friendship.Friendship, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if userID == friendID {
		return nil, fmt.Errorf("cannot friend yourself")
	}

	var exists bool
	err = s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM friendships
			WHERE ((user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1))
				AND status IN ('pending', 'accepted')
		)
	`, userID, friendID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check friendship: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("friendship already exists")
	}

	f := &friendship.Friendship{}
	query := `
	INSERT INTO friendships (id, user_id, friend_id, status, created_at, updated_at)
	VALUES ($1, $2, $3, 'pending', NOW(), NOW())
	ON CONFLICT (user_id, friend_id)
	DO UPDATE SET status = 'pending', updated_at = NOW()
	RETURNING id, user_id, friend_id, status, created_at, updated_at
	`
	err = s.db.QueryRow(ctx, query, uuid.New(), userID, friendID).Scan(
		&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create friend request: %w", err)
	}

	s.notifyFriendEvent(ctx, friendID, userID, notification.TypeFriendRequest, "New friend request", "%s wants to be your friend")

	return f, nil
}

// AcceptRequest accepts a pending request addressed to the caller.
func (s *FriendService) AcceptRequest(ctx context.Context, clerkID string, requestID uuid.UUID) (*friendship.Friendship, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	f := &friendship.Friendship{}
	query := `
	UPDATE friendships
	SET status = 'accepted', updated_at = NOW()
	WHERE id = $1 AND friend_id = $2 AND status = 'pending'
	RETURNING id, user_id, friend_id, status, created_at, updated_at
	`
	err = s.db.QueryRow(ctx, query, requestID, userID).Scan(
		&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("friend request not found")
		}
		return nil, fmt.Errorf("failed to accept friend request: %w", err)
	}

	s.notifyFriendEvent(ctx, f.UserID, userID, notification.TypeFriendAccept, "Friend request accepted", "%s accepted your friend request")

	return f, nil
}

// DeclineRequest marks a pending request addressed to the caller as declined.
func (s *FriendService) DeclineRequest(ctx context.Context, clerkID string, requestID uuid.UUID) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, `
		UPDATE friendships
		SET status = 'declined', updated_at = NOW()
		WHERE id = $1 AND friend_id = $2 AND status = 'pending'
	`, requestID, userID)
	if err != nil {
		return fmt.Errorf("failed to decline friend request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("friend request not found")
	}
	return nil
}

// RemoveFriend deletes an accepted friendship in either direction.
func (s *FriendService) RemoveFriend(ctx context.Context, clerkID string, friendID uuid.UUID) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, `
		DELETE FROM friendships
		WHERE ((user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1))
			AND status = 'accepted'
	`, userID, friendID)
	if err != nil {
		return fmt.Errorf("failed to remove friend: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("friendship not found")
	}
	return nil
}

func (s *FriendService) GetFriends(ctx context.Context, clerkID string) ([]*user.Summary, error) {
	query := `
	SELECT DISTINCT u.id, u.username, u.full_name, u.avatar_url
	FROM users u
	INNER JOIN friendships f ON (
		(f.user_id = u.id AND f.friend_id = (SELECT id FROM users WHERE clerk_id = $1))
		OR
		(f.friend_id = u.id AND f.user_id = (SELECT id FROM users WHERE clerk_id = $1))
	)
	WHERE f.status = 'accepted'
		AND u.clerk_id != $1
	ORDER BY u.username
	`

	rows, err := s.db.Query(ctx, query, clerkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get friends: %w", err)
	}
	defer rows.Close()

	var friends []*user.Summary
	for rows.Next() {
		u := &user.Summary{}
		var fullName, avatarURL *string
		if err := rows.Scan(&u.ID, &u.Username, &fullName, &avatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		if fullName != nil {
			u.FullName = *fullName
		}
		if avatarURL != nil {
			u.AvatarURL = *avatarURL
		}
		friends = append(friends, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if friends == nil {
		friends = []*user.Summary{}
	}
	return friends, nil
}

func (s *FriendService) GetPendingRequests(ctx context.Context, clerkID string) ([]*friendship.PendingRequest, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT f.id, u.id, u.username, u.full_name, u.avatar_url, f.created_at
	FROM friendships f
	INNER JOIN users u ON u.id = f.user_id
	WHERE f.friend_id = $1 AND f.status = 'pending'
	ORDER BY f.created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*friendship.PendingRequest
	for rows.Next() {
		r := &friendship.PendingRequest{}
		var fullName, avatarURL *string
		if err := rows.Scan(&r.ID, &r.SenderID, &r.SenderUsername, &fullName, &avatarURL, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending request: %w", err)
		}
		if fullName != nil {
			r.SenderFullName = *fullName
		}
		if avatarURL != nil {
			r.SenderAvatarURL = *avatarURL
		}
		requests = append(requests, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if requests == nil {
		requests = []*friendship.PendingRequest{}
	}
	return requests, nil
}

func (s *FriendService) notifyFriendEvent(ctx context.Context, recipientID, actorID uuid.UUID, notifType notification.NotificationType, title, bodyFormat string) {
	if s.notificationService == nil {
		return
	}

	var actorUsername string
	if err := s.db.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, actorID).Scan(&actorUsername); err != nil {
		log.Printf("Failed to look up actor %s for friend notification: %v", actorID, err)
		return
	}

	req := &notification.CreateNotificationRequest{
		UserID: recipientID,
		Type:   notifType,
		Title:  title,
		Body:   fmt.Sprintf(bodyFormat, actorUsername),
		Data:   map[string]any{"actor_id": actorID.String()},
	}
	if _, err := s.notificationService.CreateNotification(ctx, req); err != nil {
		log.Printf("Failed to create %s notification: %v", notifType, err)
	}
}
