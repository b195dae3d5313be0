package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"keepsafeAPI/internal/streak"

	"github.com/google/uuid"
)

// memoryStreakStore keeps records in a map so the service's load -> compute
// -> save cycle can run without Postgres.
type memoryStreakStore struct {
	mu   sync.Mutex
	recs map[uuid.UUID]streak.Record
}

func newMemoryStreakStore() *memoryStreakStore {
	return &memoryStreakStore{recs: make(map[uuid.UUID]streak.Record)}
}

func (m *memoryStreakStore) Get(_ context.Context, userID uuid.UUID) (*streak.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recs[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memoryStreakStore) Set(_ context.Context, userID uuid.UUID, rec streak.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recs[userID] = rec
	return nil
}

func (m *memoryStreakStore) Mutate(_ context.Context, userID uuid.UUID, fn func(stored *streak.Record) streak.Record) (streak.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stored *streak.Record
	if rec, ok := m.recs[userID]; ok {
		stored = &rec
	}

	updated := fn(stored)
	m.recs[userID] = updated
	return updated, nil
}

type failingStreakStore struct {
	memoryStreakStore
	err error
}

func (f *failingStreakStore) Mutate(context.Context, uuid.UUID, func(stored *streak.Record) streak.Record) (streak.Record, error) {
	return streak.Record{}, f.err
}

func newTestStreakService(store StreakStore) *StreakService {
	return NewStreakService(nil, store, nil)
}

func localDateDaysAgo(days int, tz string) string {
	return streak.LocalDate(time.Now().AddDate(0, 0, -days), tz)
}

func TestRecordActivityStartsStreak(t *testing.T) {
	store := newMemoryStreakStore()
	svc := newTestStreakService(store)
	userID := uuid.New()

	rec, err := svc.recordActivity(context.Background(), userID, time.Now(), "Europe/Sofia")
	if err != nil {
		t.Fatalf("recordActivity failed: %v", err)
	}

	if rec.CurrentStreak != 1 || rec.MaxStreak != 1 {
		t.Errorf("Expected streak 1/1, got %d/%d", rec.CurrentStreak, rec.MaxStreak)
	}
	if rec.UserTimeZone != "Europe/Sofia" {
		t.Errorf("Expected client timezone to be adopted, got %q", rec.UserTimeZone)
	}
}

func TestRecordActivitySameDayIdempotent(t *testing.T) {
	store := newMemoryStreakStore()
	svc := newTestStreakService(store)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		rec, err := svc.recordActivity(context.Background(), userID, time.Now(), "UTC")
		if err != nil {
			t.Fatalf("recordActivity failed: %v", err)
		}
		if rec.CurrentStreak != 1 {
			t.Errorf("Call %d: expected streak 1, got %d", i+1, rec.CurrentStreak)
		}
	}
}

func TestRecordActivityExtendsFromYesterday(t *testing.T) {
	store := newMemoryStreakStore()
	svc := newTestStreakService(store)
	userID := uuid.New()

	store.recs[userID] = streak.Record{
		CurrentStreak: 3,
		MaxStreak:     5,
		LastEntryDate: localDateDaysAgo(1, "UTC"),
		UserTimeZone:  "UTC",
	}

	rec, err := svc.recordActivity(context.Background(), userID, time.Now(), "UTC")
	if err != nil {
		t.Fatalf("recordActivity failed: %v", err)
	}

	if rec.CurrentStreak != 4 {
		t.Errorf("Expected streak 4, got %d", rec.CurrentStreak)
	}
	if rec.MaxStreak != 5 {
		t.Errorf("Expected max streak 5, got %d", rec.MaxStreak)
	}
}

func TestRecordActivityResetsAfterGap(t *testing.T) {
	store := newMemoryStreakStore()
	svc := newTestStreakService(store)
	userID := uuid.New()

	store.recs[userID] = streak.Record{
		CurrentStreak: 10,
		MaxStreak:     10,
		LastEntryDate: localDateDaysAgo(4, "UTC"),
		UserTimeZone:  "UTC",
	}

	rec, err := svc.recordActivity(context.Background(), userID, time.Now(), "UTC")
	if err != nil {
		t.Fatalf("recordActivity failed: %v", err)
	}

	if rec.CurrentStreak != 1 {
		t.Errorf("Expected streak reset to 1, got %d", rec.CurrentStreak)
	}
	if rec.MaxStreak != 10 {
		t.Errorf("Expected max streak kept at 10, got %d", rec.MaxStreak)
	}
}

func TestRecordActivityKeepsStoredTimezone(t *testing.T) {
	store := newMemoryStreakStore()
	svc := newTestStreakService(store)
	userID := uuid.New()

	store.recs[userID] = streak.Record{
		CurrentStreak: 2,
		MaxStreak:     2,
		LastEntryDate: streak.LocalDate(time.Now(), "Europe/Sofia"),
		UserTimeZone:  "Europe/Sofia",
	}

	rec, err := svc.recordActivity(context.Background(), userID, time.Now(), "America/New_York")
	if err != nil {
		t.Fatalf("recordActivity failed: %v", err)
	}

	if rec.UserTimeZone != "Europe/Sofia" {
		t.Errorf("Stored timezone should win over client header, got %q", rec.UserTimeZone)
	}
}

func TestReconcileExpiresLapsedStreak(t *testing.T) {
	store := newMemoryStreakStore()
	svc := newTestStreakService(store)
	userID := uuid.New()

	store.recs[userID] = streak.Record{
		CurrentStreak: 5,
		MaxStreak:     9,
		LastEntryDate: localDateDaysAgo(3, "UTC"),
		UserTimeZone:  "UTC",
	}

	rec, err := svc.ReconcileUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("ReconcileUserID failed: %v", err)
	}

	if rec.CurrentStreak != 0 {
		t.Errorf("Expected expired streak 0, got %d", rec.CurrentStreak)
	}
	if rec.MaxStreak != 9 {
		t.Errorf("Expected max streak kept at 9, got %d", rec.MaxStreak)
	}
	if rec.LastAccessTime == nil {
		t.Error("Expected last access time to be stamped")
	}
}

func TestReconcileLeavesYesterdayStreak(t *testing.T) {
	store := newMemoryStreakStore()
	svc := newTestStreakService(store)
	userID := uuid.New()

	store.recs[userID] = streak.Record{
		CurrentStreak: 4,
		MaxStreak:     4,
		LastEntryDate: localDateDaysAgo(1, "UTC"),
		UserTimeZone:  "UTC",
	}

	rec, err := svc.ReconcileUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("ReconcileUserID failed: %v", err)
	}

	if rec.CurrentStreak != 4 {
		t.Errorf("Yesterday's streak is still alive, expected 4, got %d", rec.CurrentStreak)
	}
}

func TestReconcileHealsMalformedRecord(t *testing.T) {
	store := newMemoryStreakStore()
	svc := newTestStreakService(store)
	userID := uuid.New()

	store.recs[userID] = streak.Record{
		CurrentStreak: -3,
		MaxStreak:     2,
		LastEntryDate: "not-a-date",
		UserTimeZone:  "Mars/Olympus",
	}

	rec, err := svc.ReconcileUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("ReconcileUserID failed: %v", err)
	}

	if rec.CurrentStreak != 0 {
		t.Errorf("Expected malformed record to degrade to 0, got %d", rec.CurrentStreak)
	}
	if rec.MaxStreak != 2 {
		t.Errorf("Expected max streak 2 to survive, got %d", rec.MaxStreak)
	}
	if rec.LastEntryDate != "" {
		t.Errorf("Expected malformed date cleared, got %q", rec.LastEntryDate)
	}
	if rec.UserTimeZone != "UTC" {
		t.Errorf("Expected invalid zone to fall back to UTC, got %q", rec.UserTimeZone)
	}
}

func TestRecordActivityStoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	svc := newTestStreakService(&failingStreakStore{err: storeErr})

	_, err := svc.recordActivity(context.Background(), uuid.New(), time.Now(), "UTC")
	if !errors.Is(err, storeErr) {
		t.Errorf("Expected store error to propagate, got %v", err)
	}
}
