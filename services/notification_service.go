package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"keepsafeAPI/internal/types/notification"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PushNotificationProvider delivers a push to a set of device tokens.
// FCMService implements it; MockPushProvider stands in when FCM is not
// configured.
type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

type NotificationService struct {
	db           *pgxpool.Pool
	pushProvider PushNotificationProvider
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	return &NotificationService{
		db:           db,
		pushProvider: &MockPushProvider{},
	}
}

func (s *NotificationService) SetPushProvider(provider PushNotificationProvider) {
	s.pushProvider = provider
}

func (s *NotificationService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found: %w", err)
	}
	return userID, nil
}

// CreateNotification stores the notification row and, when the recipient's
// preferences allow it, pushes it to their devices. A push failure never
// fails the create: the in-app notification is the source of truth.
func (s *NotificationService) CreateNotification(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error) {
	notif := &notification.Notification{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Body:      req.Body,
		Data:      req.Data,
		CreatedAt: time.Now(),
	}

	query := `
	INSERT INTO notifications (id, user_id, type, title, body, data, is_read, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, false, $7)
	`

	_, err := s.db.Exec(ctx, query, notif.ID, notif.UserID, notif.Type, notif.Title, notif.Body, notif.Data, notif.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if s.shouldPush(ctx, req.UserID, req.Type) {
		go s.push(notif)
	}

	return notif, nil
}

func (s *NotificationService) shouldPush(ctx context.Context, userID uuid.UUID, notifType notification.NotificationType) bool {
	prefs, err := s.getPreferencesByUserID(ctx, userID)
	if err != nil {
		log.Printf("Failed to load notification preferences for %s: %v", userID, err)
		return false
	}

	if !prefs.PushEnabled {
		return false
	}

	switch notifType {
	case notification.TypeFriendRequest, notification.TypeFriendAccept, notification.TypeEntryShared:
		return prefs.FriendActivity
	case notification.TypeStreakMilestone:
		return prefs.StreakReminders
	}
	return true
}

func (s *NotificationService) push(notif *notification.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := s.getDeviceTokens(ctx, notif.UserID)
	if err != nil {
		log.Printf("Failed to load device tokens for %s: %v", notif.UserID, err)
		return
	}

	if err := s.pushProvider.SendPush(ctx, tokens, notif.Title, notif.Body, notif.Data); err != nil {
		log.Printf("Push delivery failed for notification %s: %v", notif.ID, err)
	}
}

func (s *NotificationService) getDeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT token, platform FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}

	return tokens, rows.Err()
}

func (s *NotificationService) GetNotifications(ctx context.Context, clerkID string, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := `
	SELECT id, user_id, type, title, body, data, is_read, created_at
	FROM notifications
	WHERE user_id = $1 AND ($2 = false OR is_read = false)
	ORDER BY created_at DESC
	LIMIT $3 OFFSET $4
	`

	rows, err := s.db.Query(ctx, query, userID, unreadOnly, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*notification.Notification
	for rows.Next() {
		n := &notification.Notification{}
		err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Data, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if notifications == nil {
		notifications = []*notification.Notification{}
	}

	var total, unread int
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_read = false)
		FROM notifications WHERE user_id = $1
	`, userID).Scan(&total, &unread)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	return &notification.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
		TotalCount:    total,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, clerkID string) (int, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID uuid.UUID, clerkID string) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, clerkID string) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return nil
}

func (s *NotificationService) DeleteNotification(ctx context.Context, notificationID uuid.UUID, clerkID string) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

func (s *NotificationService) GetPreferences(ctx context.Context, clerkID string) (*notification.Preferences, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	return s.getPreferencesByUserID(ctx, userID)
}

func (s *NotificationService) getPreferencesByUserID(ctx context.Context, userID uuid.UUID) (*notification.Preferences, error) {
	prefs := &notification.Preferences{}
	query := `
	SELECT user_id, push_enabled, friend_activity, streak_reminders, updated_at
	FROM notification_preferences
	WHERE user_id = $1
	`

	err := s.db.QueryRow(ctx, query, userID).Scan(
		&prefs.UserID, &prefs.PushEnabled, &prefs.FriendActivity, &prefs.StreakReminders, &prefs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.createDefaultPreferences(ctx, userID)
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return prefs, nil
}

func (s *NotificationService) createDefaultPreferences(ctx context.Context, userID uuid.UUID) (*notification.Preferences, error) {
	prefs := &notification.Preferences{
		UserID:          userID,
		PushEnabled:     true,
		FriendActivity:  true,
		StreakReminders: true,
		UpdatedAt:       time.Now(),
	}

	query := `
	INSERT INTO notification_preferences (user_id, push_enabled, friend_activity, streak_reminders, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id) DO NOTHING
	`

	_, err := s.db.Exec(ctx, query, prefs.UserID, prefs.PushEnabled, prefs.FriendActivity, prefs.StreakReminders, prefs.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create default preferences: %w", err)
	}
	return prefs, nil
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, clerkID string, req *notification.UpdatePreferencesRequest) (*notification.Preferences, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	// Ensure a row exists before the partial update.
	if _, err := s.getPreferencesByUserID(ctx, userID); err != nil {
		return nil, err
	}

	query := `
	UPDATE notification_preferences
	SET
		push_enabled = COALESCE($2, push_enabled),
		friend_activity = COALESCE($3, friend_activity),
		streak_reminders = COALESCE($4, streak_reminders),
		updated_at = NOW()
	WHERE user_id = $1
	RETURNING user_id, push_enabled, friend_activity, streak_reminders, updated_at
	`

	prefs := &notification.Preferences{}
	err = s.db.QueryRow(ctx, query, userID, req.PushEnabled, req.FriendActivity, req.StreakReminders).Scan(
		&prefs.UserID, &prefs.PushEnabled, &prefs.FriendActivity, &prefs.StreakReminders, &prefs.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}
	return prefs, nil
}

func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req notification.RegisterDeviceRequest) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	if req.Token == "" {
		return fmt.Errorf("device token is required")
	}
	switch req.Platform {
	case "ios", "android", "web":
	default:
		return fmt.Errorf("invalid platform: %s", req.Platform)
	}

	query := `
	INSERT INTO device_tokens (user_id, token, platform, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (token)
	DO UPDATE SET user_id = $1, platform = $3, updated_at = NOW()
	`

	_, err = s.db.Exec(ctx, query, userID, req.Token, req.Platform)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// MockPushProvider logs instead of sending. Used in tests and when FCM
// credentials are absent.
type MockPushProvider struct{}

func (m *MockPushProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	log.Printf("MOCK PUSH to %d devices: %s - %s", len(tokens), title, body)
	return nil
}
