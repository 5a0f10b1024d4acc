package access

import (
	"strconv"
	"sync"
	"time"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/models"
	"github.com/premium-ai-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// Registry owns user admission state: pending activations, the
// maintenance flag, join dates, footer preferences, per-user usage
// counters and the aggregate stats document.
type Registry struct {
	mu sync.Mutex

	userCount   int
	joinDates   map[string]time.Time
	footer      map[string]bool
	pending     map[string]models.PendingActivation
	maintenance bool
	usage       map[string]*models.UserUsage
	stats       models.BotStats

	adminIDs []int64
	store    *storage.Store
	logger   *logrus.Logger
}

// NewRegistry loads all admission documents from the store.
func NewRegistry(cfg *config.Config, store *storage.Store, logger *logrus.Logger) *Registry {
	r := &Registry{
		joinDates: make(map[string]time.Time),
		footer:    make(map[string]bool),
		pending:   make(map[string]models.PendingActivation),
		usage:     make(map[string]*models.UserUsage),
		stats:     models.BotStats{LastUpdated: time.Now()},
		adminIDs:  cfg.Bot.AdminIDs,
		store:     store,
		logger:    logger,
	}

	store.Load(storage.DocUserCount, &r.userCount)
	store.Load(storage.DocUserJoinDates, &r.joinDates)
	store.Load(storage.DocFooterSettings, &r.footer)
	store.Load(storage.DocPendingActivations, &r.pending)
	store.Load(storage.DocMaintenanceMode, &r.maintenance)
	store.Load(storage.DocUserUsage, &r.usage)
	store.Load(storage.DocBotStats, &r.stats)

	logger.WithFields(logrus.Fields{
		"users":   r.userCount,
		"pending": len(r.pending),
	}).Info("Access registry loaded")
	return r
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// IsAdmin reports whether the user is privileged. Admins bypass
// maintenance mode and registration checks.
func (r *Registry) IsAdmin(userID int64) bool {
	for _, id := range r.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// RegisterUser records a first-seen user: join date, footer default,
// usage record and the user counter. Re-registration is a no-op.
func (r *Registry) RegisterUser(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := key(userID)
	if _, ok := r.joinDates[id]; ok {
		return false
	}

	r.userCount++
	r.joinDates[id] = time.Now()
	r.footer[id] = true
	r.usage[id] = &models.UserUsage{}

	r.persist(storage.DocUserCount, r.userCount)
	r.persist(storage.DocUserJoinDates, r.joinDates)
	r.persist(storage.DocFooterSettings, r.footer)
	r.persist(storage.DocUserUsage, r.usage)
	return true
}

// IncrementUsage bumps the user's counter and the aggregate request
// total. Only accepted requests reach this path; rejected and
// maintenance-blocked ones never do.
func (r *Registry) IncrementUsage(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := key(userID)
	u, ok := r.usage[id]
	if !ok {
		u = &models.UserUsage{}
		r.usage[id] = u
	}
	now := time.Now()
	u.Count++
	u.LastUsed = &now
	r.stats.TotalRequests++

	r.persist(storage.DocUserUsage, r.usage)
}

// Usage returns a copy of the user's usage record.
func (r *Registry) Usage(userID int64) models.UserUsage {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.usage[key(userID)]; ok {
		return *u
	}
	return models.UserUsage{}
}

// JoinDate returns when the user was first registered.
func (r *Registry) JoinDate(userID int64) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.joinDates[key(userID)]
	return t, ok
}

// Maintenance reports the global maintenance flag.
func (r *Registry) Maintenance() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maintenance
}

// SetMaintenance toggles maintenance mode and persists it immediately.
func (r *Registry) SetMaintenance(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.maintenance = enabled
	r.persist(storage.DocMaintenanceMode, r.maintenance)
}

// RequestActivation files a pending activation. A duplicate request
// while one is pending is rejected and does not overwrite the record.
func (r *Registry) RequestActivation(userID int64, req models.PendingActivation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := key(userID)
	if _, ok := r.pending[id]; ok {
		return false
	}

	r.pending[id] = req
	r.persist(storage.DocPendingActivations, r.pending)
	return true
}

// CancelActivation removes the user's own pending request. Returns
// false when there is nothing to cancel.
func (r *Registry) CancelActivation(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := key(userID)
	if _, ok := r.pending[id]; !ok {
		return false
	}

	delete(r.pending, id)
	r.persist(storage.DocPendingActivations, r.pending)
	return true
}

// ResolveActivation removes a pending record on admin approval or
// rejection, returning it for the notification message. A stale
// reference yields ok=false.
func (r *Registry) ResolveActivation(userID string) (models.PendingActivation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.pending[userID]
	if !ok {
		return models.PendingActivation{}, false
	}

	delete(r.pending, userID)
	r.persist(storage.DocPendingActivations, r.pending)
	return req, true
}

// PendingActivations returns a copy of the pending map keyed by user ID.
func (r *Registry) PendingActivations() map[string]models.PendingActivation {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]models.PendingActivation, len(r.pending))
	for id, req := range r.pending {
		out[id] = req
	}
	return out
}

// FooterEnabled reports whether the user wants the footer appended.
// Unset defaults to enabled.
func (r *Registry) FooterEnabled(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	enabled, ok := r.footer[key(userID)]
	if !ok {
		return true
	}
	return enabled
}

// SetFooter stores the footer preference and persists it.
func (r *Registry) SetFooter(userID int64, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.footer[key(userID)] = enabled
	r.persist(storage.DocFooterSettings, r.footer)
}

// RecordSuccess accounts one completed provider call.
func (r *Registry) RecordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.SuccessfulRequests++
}

// RecordFailure accounts one failed provider call.
func (r *Registry) RecordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.FailedRequests++
}

// Stats returns a snapshot of the aggregate document.
func (r *Registry) Stats() models.BotStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// RecomputeActiveUsers recounts users with activity inside the window,
// updates the stats document and persists it.
func (r *Registry) RecomputeActiveUsers(window time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-window)
	active := 0
	for _, u := range r.usage {
		if u.LastUsed != nil && u.LastUsed.After(cutoff) {
			active++
		}
	}

	r.stats.ActiveUsers = active
	r.stats.LastUpdated = time.Now()
	r.persist(storage.DocBotStats, r.stats)
	return active
}

// UserCount returns the running user total.
func (r *Registry) UserCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userCount
}

// NewUsersToday counts registrations dated today.
func (r *Registry) NewUsersToday() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	y, m, d := now.Date()
	count := 0
	for _, joined := range r.joinDates {
		jy, jm, jd := joined.Date()
		if jy == y && jm == m && jd == d {
			count++
		}
	}
	return count
}

// SaveAll flushes every document this registry owns.
func (r *Registry) SaveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.persist(storage.DocUserCount, r.userCount)
	r.persist(storage.DocUserJoinDates, r.joinDates)
	r.persist(storage.DocFooterSettings, r.footer)
	r.persist(storage.DocPendingActivations, r.pending)
	r.persist(storage.DocMaintenanceMode, r.maintenance)
	r.persist(storage.DocUserUsage, r.usage)
	r.persist(storage.DocBotStats, r.stats)
}

func (r *Registry) persist(doc string, v interface{}) {
	if err := r.store.Save(doc, v); err != nil {
		r.logger.WithError(err).WithField("document", doc).Error("Failed to save document")
	}
}
