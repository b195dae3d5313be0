package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"keepsafeAPI/internal/streak"
	"keepsafeAPI/internal/types/calendar"
	"keepsafeAPI/internal/types/entry"
	"keepsafeAPI/internal/types/notification"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntryService owns diary entries. Creating an entry is the qualifying
// activity for the streak, so CreateEntry calls the streak service exactly
// once per entry and returns the updated numbers alongside the entry.
type EntryService struct {
	db                  *pgxpool.Pool
	streakService       *StreakService
	notificationService *NotificationService
}

func NewEntryService(db *pgxpool.Pool, streakService *StreakService, notificationService *NotificationService) *EntryService {
	return &EntryService{
		db:                  db,
		streakService:       streakService,
		notificationService: notificationService,
	}
}

func (s *EntryService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found: %w", err)
	}
	return userID, nil
}

type CreateEntryResponse struct {
	Entry  *entry.Entry  `json:"entry"`
	Streak streak.Record `json:"streak"`
}

func (s *EntryService) CreateEntry(ctx context.Context, clerkID string, req *entry.CreateEntryRequest, clientTZ string) (*CreateEntryResponse, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	switch req.Type {
	case entry.EntryPhoto, entry.EntryVideo, entry.EntryAudio:
	default:
		return nil, fmt.Errorf("invalid entry type: %s", req.Type)
	}

	now := time.Now()
	createdAt := now
	if req.CreatedAt != nil {
		createdAt = *req.CreatedAt
	}

	if req.Attachments == nil {
		req.Attachments = []entry.Attachment{}
	}
	attachmentsJSON, err := json.Marshal(req.Attachments)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attachments: %w", err)
	}

	e := &entry.Entry{
		ID:                 uuid.New(),
		UserID:             userID,
		Type:               req.Type,
		ContentURL:         req.ContentURL,
		TextContent:        req.TextContent,
		Attachments:        req.Attachments,
		MusicTag:           req.MusicTag,
		LocationTag:        req.LocationTag,
		IsPrivate:          req.IsPrivate,
		SharedWithEveryone: req.SharedWithEveryone,
		SharedWith:         req.SharedWith,
		CreatedAt:          createdAt,
		UpdatedAt:          now,
	}

	query := `
	INSERT INTO entries (id, user_id, type, content_url, text_content, attachments, music_tag, location_tag, is_private, shared_with_everyone, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.db.Exec(ctx, query,
		e.ID, e.UserID, e.Type, e.ContentURL, e.TextContent, attachmentsJSON,
		e.MusicTag, e.LocationTag, e.IsPrivate, e.SharedWithEveryone, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}

	for _, friendID := range req.SharedWith {
		_, err := s.db.Exec(ctx, `
			INSERT INTO entry_shares (id, entry_id, shared_with_user_id, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (entry_id, shared_with_user_id) DO NOTHING
		`, uuid.New(), e.ID, friendID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to share entry: %w", err)
		}
	}

	// One qualifying activity per entry. The entry timestamp (which may be a
	// backfill) drives the day arithmetic, not the server clock.
	rec, err := s.streakService.RecordActivity(ctx, clerkID, e.CreatedAt, clientTZ)
	if err != nil {
		// The entry exists; a streak bookkeeping failure should not undo it.
		log.Printf("Failed to record streak activity for %s: %v", clerkID, err)
		rec = streak.Record{}
	}

	s.notifySharedFriends(ctx, userID, e)

	return &CreateEntryResponse{Entry: e, Streak: rec}, nil
}

func (s *EntryService) notifySharedFriends(ctx context.Context, authorID uuid.UUID, e *entry.Entry) {
	if s.notificationService == nil || len(e.SharedWith) == 0 {
		return
	}

	var username string
	if err := s.db.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, authorID).Scan(&username); err != nil {
		log.Printf("Failed to look up author %s for share notification: %v", authorID, err)
		return
	}

	for _, friendID := range e.SharedWith {
		req := &notification.CreateNotificationRequest{
			UserID: friendID,
			Type:   notification.TypeEntryShared,
			Title:  "New diary entry",
			Body:   fmt.Sprintf("%s shared a moment with you", username),
			Data:   map[string]any{"entry_id": e.ID.String()},
		}
		if _, err := s.notificationService.CreateNotification(ctx, req); err != nil {
			log.Printf("Failed to notify %s about shared entry: %v", friendID, err)
		}
	}
}

func (s *EntryService) GetEntries(ctx context.Context, clerkID string, page, pageSize int) ([]*entry.Entry, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 30
	}

	query := `
	SELECT id, user_id, type, content_url, text_content, attachments, music_tag, location_tag, is_private, shared_with_everyone, created_at, updated_at
	FROM entries
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Query(ctx, query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *EntryService) DeleteEntry(ctx context.Context, clerkID string, entryID uuid.UUID) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, `DELETE FROM entries WHERE id = $1 AND user_id = $2`, entryID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("entry not found")
	}
	return nil
}

// GetFeed returns entries shared with the requesting user: explicit shares
// plus friends' shared-with-everyone entries. Private entries never appear.
func (s *EntryService) GetFeed(ctx context.Context, clerkID string, page, pageSize int) ([]*entry.FeedItem, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 30
	}

	query := `
	SELECT DISTINCT
		e.id, e.user_id, e.type, e.content_url, e.text_content, e.attachments,
		e.music_tag, e.location_tag, e.is_private, e.shared_with_everyone,
		e.created_at, e.updated_at,
		u.username, u.full_name, u.avatar_url
	FROM entries e
	INNER JOIN users u ON u.id = e.user_id
	LEFT JOIN entry_shares es ON es.entry_id = e.id AND es.shared_with_user_id = $1
	WHERE e.user_id != $1
		AND e.is_private = false
		AND (
			es.shared_with_user_id IS NOT NULL
			OR (
				e.shared_with_everyone = true
				AND EXISTS (
					SELECT 1 FROM friendships f
					WHERE ((f.user_id = $1 AND f.friend_id = e.user_id) OR (f.friend_id = $1 AND f.user_id = e.user_id))
						AND f.status = 'accepted'
				)
			)
		)
	ORDER BY e.created_at DESC
	LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Query(ctx, query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	defer rows.Close()

	var items []*entry.FeedItem
	for rows.Next() {
		item := &entry.FeedItem{}
		var attachmentsJSON []byte
		var fullName, avatarURL *string

		err := rows.Scan(
			&item.ID, &item.UserID, &item.Type, &item.ContentURL, &item.TextContent, &attachmentsJSON,
			&item.MusicTag, &item.LocationTag, &item.IsPrivate, &item.SharedWithEveryone,
			&item.CreatedAt, &item.UpdatedAt,
			&item.AuthorUsername, &fullName, &avatarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed item: %w", err)
		}

		item.Attachments = decodeAttachments(attachmentsJSON)
		if fullName != nil {
			item.AuthorFullName = *fullName
		}
		if avatarURL != nil {
			item.AuthorAvatarURL = *avatarURL
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if items == nil {
		items = []*entry.FeedItem{}
	}
	return items, nil
}

// GetCalendar returns the month view: one cell per local calendar day, with
// entry presence computed in the user's streak timezone so the calendar and
// the streak agree on day boundaries.
func (s *EntryService) GetCalendar(ctx context.Context, clerkID string, year, month int, clientTZ string) (*calendar.CalendarResponse, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	tz := clientTZ
	var storedTZ string
	err = s.db.QueryRow(ctx, `SELECT user_time_zone FROM streaks WHERE user_id = $1`, userID).Scan(&storedTZ)
	if err == nil && storedTZ != "" {
		tz = storedTZ
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to resolve timezone: %w", err)
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	monthEnd := monthStart.AddDate(0, 1, 0)

	rows, err := s.db.Query(ctx, `
		SELECT created_at FROM entries
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
	`, userID, monthStart, monthEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar entries: %w", err)
	}
	defer rows.Close()

	entryDays := make(map[string]bool)
	for rows.Next() {
		var createdAt time.Time
		if err := rows.Scan(&createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry date: %w", err)
		}
		entryDays[streak.LocalDate(createdAt, loc.String())] = true
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	today := streak.LocalDate(time.Now(), loc.String())

	resp := &calendar.CalendarResponse{Year: year, Month: month}
	for d := monthStart; d.Before(monthEnd); d = d.AddDate(0, 0, 1) {
		date := d.Format(streak.DateLayout)
		resp.Days = append(resp.Days, &calendar.CalendarDay{
			Date:     date,
			HasEntry: entryDays[date],
			IsToday:  date == today,
		})
	}

	return resp, nil
}

func scanEntries(rows pgx.Rows) ([]*entry.Entry, error) {
	var entries []*entry.Entry
	for rows.Next() {
		e := &entry.Entry{}
		var attachmentsJSON []byte

		err := rows.Scan(
			&e.ID, &e.UserID, &e.Type, &e.ContentURL, &e.TextContent, &attachmentsJSON,
			&e.MusicTag, &e.LocationTag, &e.IsPrivate, &e.SharedWithEveryone, &e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		e.Attachments = decodeAttachments(attachmentsJSON)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if entries == nil {
		entries = []*entry.Entry{}
	}
	return entries, nil
}

func decodeAttachments(raw []byte) []entry.Attachment {
	attachments := []entry.Attachment{}
	if len(raw) == 0 {
		return attachments
	}
	if err := json.Unmarshal(raw, &attachments); err != nil {
		log.Printf("Failed to decode entry attachments: %v", err)
		return []entry.Attachment{}
	}
	return attachments
}
