package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	TypeFriendRequest   NotificationType = "friend_request"
	TypeFriendAccept    NotificationType = "friend_accept"
	TypeEntryShared     NotificationType = "entry_shared"
	TypeStreakMilestone NotificationType = "streak_milestone"
)

type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Body      string           `json:"body" db:"body"`
	Data      map[string]any   `json:"data" db:"data"`
	IsRead    bool             `json:"is_read" db:"is_read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

type CreateNotificationRequest struct {
	UserID uuid.UUID        `json:"user_id"`
	Type   NotificationType `json:"type"`
	Title  string           `json:"title"`
	Body   string           `json:"body"`
	Data   map[string]any   `json:"data,omitempty"`
}

type NotificationListResponse struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
	TotalCount    int             `json:"total_count"`
	Page          int             `json:"page"`
	PageSize      int             `json:"page_size"`
}

type Preferences struct {
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	PushEnabled     bool      `json:"push_enabled" db:"push_enabled"`
	FriendActivity  bool      `json:"friend_activity" db:"friend_activity"`
	StreakReminders bool      `json:"streak_reminders" db:"streak_reminders"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type UpdatePreferencesRequest struct {
	PushEnabled     *bool `json:"push_enabled,omitempty"`
	FriendActivity  *bool `json:"friend_activity,omitempty"`
	StreakReminders *bool `json:"streak_reminders,omitempty"`
}

type DeviceToken struct {
	Token    string `json:"token" db:"token"`
	Platform string `json:"platform" db:"platform"` // ios | android | web
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}
