package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// StreakSweeper periodically reconciles streak rows that nobody has opened
// the app to reconcile themselves, so a lapsed streak reads zero everywhere
// (friend profiles, feeds) and not just on the owner's next launch.
type StreakSweeper struct {
	streakService *StreakService
	store         *PostgresStreakStore
	cron          *cron.Cron
	interval      time.Duration
}

const sweepBatchSize = 500

func NewStreakSweeper(streakService *StreakService, store *PostgresStreakStore, interval time.Duration) *StreakSweeper {
	return &StreakSweeper{
		streakService: streakService,
		store:         store,
		cron:          cron.New(),
		interval:      interval,
	}
}

func (s *StreakSweeper) Start() error {
	cronExpr := fmt.Sprintf("@every %s", s.interval.String())

	log.Printf("Starting streak sweeper with interval: %s", s.interval)

	_, err := s.cron.AddFunc(cronExpr, func() {
		s.sweep()
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	return nil
}

func (s *StreakSweeper) Stop() {
	log.Println("Stopping streak sweeper...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Streak sweeper stopped")
}

func (s *StreakSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Anything untouched for over a day is a candidate; the engine itself
	// decides whether the streak actually expired in the user's timezone.
	cutoff := time.Now().Add(-24 * time.Hour)

	ids, err := s.store.StaleUserIDs(ctx, cutoff, sweepBatchSize)
	if err != nil {
		log.Printf("Streak sweep: failed to list stale records: %v", err)
		return
	}

	if len(ids) == 0 {
		return
	}

	expired := 0
	for _, id := range ids {
		rec, err := s.streakService.ReconcileUserID(ctx, id)
		if err != nil {
			log.Printf("Streak sweep: reconcile failed for %s: %v", id, err)
			continue
		}
		if rec.CurrentStreak == 0 {
			expired++
		}
	}

	log.Printf("Streak sweep: checked %d records, %d expired", len(ids), expired)
}
