// Package scheduler runs the background sweeps that keep the identity
// collections tidy. Correctness never depends on a sweep having run: every
// read path checks expiry itself, and mongo's TTL index prunes abandoned
// registrations on its own. The jobs here are housekeeping.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/tradelink-app/tradelink-api/databases"
)

// resolvedErrorRetention is how long resolved social auth errors are kept for
// the support queue before being discarded.
const resolvedErrorRetention = 90 * 24 * time.Hour

// Scheduler handles periodic cleanup jobs
type Scheduler struct {
	cron *cron.Cron
	PDB  databases.PendingRegistrationDatabase
	EDB  databases.SocialAuthErrorDatabase
}

// NewScheduler creates a new scheduler instance
func NewScheduler(pDB databases.PendingRegistrationDatabase, eDB databases.SocialAuthErrorDatabase) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		PDB:  pDB,
		EDB:  eDB,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Sweep expired registrations daily at 3 AM UTC
	_, err := s.cron.AddFunc("0 3 * * *", s.sweepExpiredRegistrations)
	if err != nil {
		zap.S().Errorw("failed to register registration sweep job", "error", err)
	}

	// Discard old resolved social auth errors weekly, Sundays at 4 AM UTC
	_, err = s.cron.AddFunc("0 4 * * 0", s.sweepResolvedAuthErrors)
	if err != nil {
		zap.S().Errorw("failed to register auth error sweep job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Cleanup scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Cleanup scheduler stopped")
}

// sweepExpiredRegistrations deletes pending registrations past their absolute
// expiry. Both sweeps are idempotent, so concurrent instances need no lock.
func (s *Scheduler) sweepExpiredRegistrations() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := s.PDB.DeleteMany(ctx, bson.M{
		"expiresAt": bson.M{"$lt": time.Now().UTC()},
	})
	if err != nil {
		zap.S().Errorw("failed to sweep expired registrations", "error", err)
		return
	}

	zap.S().Infow("Expired registration sweep complete", "deleted", deleted)
}

// sweepResolvedAuthErrors discards resolved social auth errors older than the
// retention window.
func (s *Scheduler) sweepResolvedAuthErrors() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-resolvedErrorRetention)
	deleted, err := s.EDB.DeleteMany(ctx, bson.M{
		"resolved":  true,
		"createdAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		zap.S().Errorw("failed to sweep resolved auth errors", "error", err)
		return
	}

	zap.S().Infow("Resolved auth error sweep complete", "deleted", deleted)
}
