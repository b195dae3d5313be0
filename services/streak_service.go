package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"keepsafeAPI/internal/streak"
	"keepsafeAPI/internal/types/notification"
	"keepsafeAPI/middleware"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Streak milestones that trigger a celebration notification.
var streakMilestones = []int{7, 30, 100, 365}

// StreakService drives the pure streak engine: it resolves the user, runs
// the load -> compute -> save cycle through the store, and raises milestone
// notifications. All day-boundary logic lives in internal/streak.
type StreakService struct {
	db                  *pgxpool.Pool
	store               StreakStore
	notificationService *NotificationService
}

func NewStreakService(db *pgxpool.Pool, store StreakStore, notificationService *NotificationService) *StreakService {
	return &StreakService{
		db:                  db,
		store:               store,
		notificationService: notificationService,
	}
}

func (s *StreakService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found: %w", err)
	}
	return userID, nil
}

// GetStreak returns the user's record after an access-time reconcile, so a
// lapsed streak already reads zero when the profile screen loads.
func (s *StreakService) GetStreak(ctx context.Context, clerkID, clientTZ string) (streak.Record, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return streak.Record{}, err
	}
	return s.reconcileUser(ctx, userID, clientTZ)
}

// RecordActivity applies one qualifying diary entry. Called exactly once per
// created entry; repeated same-day calls are idempotent by engine contract.
func (s *StreakService) RecordActivity(ctx context.Context, clerkID string, activityAt time.Time, clientTZ string) (streak.Record, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return streak.Record{}, err
	}
	return s.recordActivity(ctx, userID, activityAt, clientTZ)
}

func (s *StreakService) recordActivity(ctx context.Context, userID uuid.UUID, activityAt time.Time, clientTZ string) (streak.Record, error) {
	var before int
	updated, err := s.store.Mutate(ctx, userID, func(stored *streak.Record) streak.Record {
		rec := streak.LoadOrDefault(stored, clientTZ)
		before = rec.CurrentStreak
		return streak.RecordActivity(rec, activityAt, time.Now())
	})
	if err != nil {
		return streak.Record{}, err
	}

	switch {
	case updated.CurrentStreak == before+1 && before > 0:
		middleware.ObserveStreakUpdate("extended")
	case updated.CurrentStreak == 1 && before != 1:
		middleware.ObserveStreakUpdate("started")
	default:
		middleware.ObserveStreakUpdate("unchanged")
	}

	s.maybeNotifyMilestone(ctx, userID, before, updated.CurrentStreak)

	return updated, nil
}

// ReconcileOnAccess is the app-foreground hook: it expires a missed streak
// without requiring new activity.
func (s *StreakService) ReconcileOnAccess(ctx context.Context, clerkID, clientTZ string) (streak.Record, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return streak.Record{}, err
	}
	return s.reconcileUser(ctx, userID, clientTZ)
}

// ReconcileUserID is the sweeper entry point; it skips the clerk lookup and
// adopts no client timezone (the stored one, or UTC, is used).
func (s *StreakService) ReconcileUserID(ctx context.Context, userID uuid.UUID) (streak.Record, error) {
	return s.reconcileUser(ctx, userID, "")
}

func (s *StreakService) reconcileUser(ctx context.Context, userID uuid.UUID, clientTZ string) (streak.Record, error) {
	var before int
	rec, err := s.store.Mutate(ctx, userID, func(stored *streak.Record) streak.Record {
		loaded := streak.LoadOrDefault(stored, clientTZ)
		before = loaded.CurrentStreak
		return streak.ReconcileOnAccess(loaded, time.Now())
	})
	if err != nil {
		return streak.Record{}, err
	}

	if before > 0 && rec.CurrentStreak == 0 {
		middleware.ObserveStreakUpdate("expired")
	}
	return rec, nil
}

// ResetStreak zeroes the running streak on explicit user request. The
// historical best survives.
func (s *StreakService) ResetStreak(ctx context.Context, clerkID string) (streak.Record, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return streak.Record{}, err
	}

	rec, err := s.store.Mutate(ctx, userID, func(stored *streak.Record) streak.Record {
		return streak.Reset(streak.LoadOrDefault(stored, ""))
	})
	if err != nil {
		return streak.Record{}, err
	}

	middleware.ObserveStreakUpdate("reset")
	return rec, nil
}

func (s *StreakService) maybeNotifyMilestone(ctx context.Context, userID uuid.UUID, before, after int) {
	if s.notificationService == nil || after <= before {
		return
	}

	for _, m := range streakMilestones {
		if before < m && after >= m {
			req := &notification.CreateNotificationRequest{
				UserID: userID,
				Type:   notification.TypeStreakMilestone,
				Title:  "Streak milestone!",
				Body:   fmt.Sprintf("You've kept your diary going for %d days in a row.", m),
				Data:   map[string]any{"days": m},
			}
			if _, err := s.notificationService.CreateNotification(ctx, req); err != nil {
				log.Printf("Failed to create streak milestone notification for %s: %v", userID, err)
			}
			return
		}
	}
}
