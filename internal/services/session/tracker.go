package session

import (
	"context"
	"sync"
	"time"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/middleware"
	"github.com/premium-ai-tgbot-go/internal/services/access"
	"github.com/premium-ai-tgbot-go/internal/services/conversation"
	"github.com/premium-ai-tgbot-go/internal/services/feedback"
	"github.com/sirupsen/logrus"
)

// Pruner lets the tracker expire stale per-request state without
// depending on the dispatch package.
type Pruner interface {
	PruneAnswers(maxAge time.Duration) int
}

// Tracker keeps last-activity timestamps per user and drives the
// periodic maintenance loops.
type Tracker struct {
	mu       sync.Mutex
	lastSeen map[int64]time.Time

	timeout         time.Duration
	sweepInterval   time.Duration
	saveInterval    time.Duration
	statsInterval   time.Duration
	rollupInterval  time.Duration
	activeUserAfter time.Duration

	conversations *conversation.Manager
	accessReg     *access.Registry
	ledger        *feedback.Ledger
	pruner        Pruner
	metrics       *middleware.Metrics
	logger        *logrus.Logger

	now func() time.Time
}

// NewTracker creates the tracker.
func NewTracker(
	cfg *config.Config,
	conversations *conversation.Manager,
	accessReg *access.Registry,
	ledger *feedback.Ledger,
	pruner Pruner,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *Tracker {
	return &Tracker{
		lastSeen:        make(map[int64]time.Time),
		timeout:         orDefault(cfg.Session.Timeout, time.Hour),
		sweepInterval:   orDefault(cfg.Session.SweepInterval, time.Hour),
		saveInterval:    orDefault(cfg.Session.SaveInterval, 30*time.Minute),
		statsInterval:   orDefault(cfg.Session.StatsInterval, time.Hour),
		rollupInterval:  orDefault(cfg.Session.RollupInterval, 24*time.Hour),
		activeUserAfter: orDefault(cfg.Session.ActiveUserAfter, 24*time.Hour),
		conversations:   conversations,
		accessReg:       accessReg,
		ledger:          ledger,
		pruner:          pruner,
		metrics:         metrics,
		logger:          logger,
		now:             time.Now,
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Touch records activity for one user.
func (t *Tracker) Touch(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[userID] = t.now()
	t.metrics.SetActiveSessions(len(t.lastSeen))
}

// ActiveCount reports how many sessions are currently tracked.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastSeen)
}

// IsActive reports whether the user has an unexpired session.
func (t *Tracker) IsActive(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen, ok := t.lastSeen[userID]
	if !ok {
		return false
	}
	return t.now().Sub(seen) < t.timeout
}

// Sweep drops sessions idle past the timeout and returns how many were
// removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-t.timeout)
	removed := 0
	for userID, seen := range t.lastSeen {
		if seen.Before(cutoff) {
			delete(t.lastSeen, userID)
			removed++
		}
	}
	t.metrics.SetActiveSessions(len(t.lastSeen))
	return removed
}

// Start launches the maintenance loops. They run until ctx is
// cancelled.
func (t *Tracker) Start(ctx context.Context) {
	go t.sweepLoop(ctx)
	go t.saveLoop(ctx)
	go t.statsLoop(ctx)
	go t.rollupLoop(ctx)
}

func (t *Tracker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := t.Sweep()
			pruned := 0
			if t.pruner != nil {
				pruned = t.pruner.PruneAnswers(t.rollupInterval)
			}
			if removed > 0 || pruned > 0 {
				t.logger.WithFields(logrus.Fields{
					"sessions_removed": removed,
					"answers_pruned":   pruned,
				}).Info("Session sweep completed")
			}
		}
	}
}

func (t *Tracker) saveLoop(ctx context.Context) {
	ticker := time.NewTicker(t.saveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// Flush once more on the way out.
			t.saveAll()
			return
		case <-ticker.C:
			t.saveAll()
		}
	}
}

func (t *Tracker) saveAll() {
	t.conversations.SaveAll()
	t.accessReg.SaveAll()
	t.ledger.SaveAll()
	t.logger.Debug("Periodic state save completed")
}

func (t *Tracker) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(t.statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := t.accessReg.RecomputeActiveUsers(t.activeUserAfter)
			t.logger.WithField("active_users", active).Info("Usage stats recomputed")
		}
	}
}

func (t *Tracker) rollupLoop(ctx context.Context) {
	ticker := time.NewTicker(t.rollupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.ledger.ExportTrainingData(); err != nil {
				t.logger.WithError(err).Error("Training data export failed")
			} else {
				t.logger.Info("Training data exported")
			}
		}
	}
}
