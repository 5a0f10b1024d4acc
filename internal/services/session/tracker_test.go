package session

import (
	"testing"
	"time"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/middleware"
	"github.com/premium-ai-tgbot-go/internal/services/access"
	"github.com/premium-ai-tgbot-go/internal/services/conversation"
	"github.com/premium-ai-tgbot-go/internal/services/feedback"
	"github.com/premium-ai-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{}
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.TrainingDir = t.TempDir()
	cfg.Session.Timeout = time.Hour

	store, err := storage.NewStore(cfg.Storage.DataDir, cfg.Storage.TrainingDir, logger)
	require.NoError(t, err)

	conversations := conversation.NewManager(cfg, store, logger)
	accessReg := access.NewRegistry(cfg, store, logger)
	ledger := feedback.NewLedger(store, logger)

	return NewTracker(cfg, conversations, accessReg, ledger, nil, middleware.NewMetrics(), logger)
}

func TestTouchAndActive(t *testing.T) {
	tracker := newTestTracker(t)
	assert.False(t, tracker.IsActive(1))

	tracker.Touch(1)
	assert.True(t, tracker.IsActive(1))
	assert.Equal(t, 1, tracker.ActiveCount())
}

func TestSessionExpiresAfterTimeout(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.Touch(1)

	current := time.Now()
	tracker.now = func() time.Time { return current.Add(61 * time.Minute) }
	assert.False(t, tracker.IsActive(1))
}

func TestSweepRemovesOnlyStale(t *testing.T) {
	tracker := newTestTracker(t)
	base := time.Now()

	tracker.now = func() time.Time { return base }
	tracker.Touch(1)
	tracker.now = func() time.Time { return base.Add(30 * time.Minute) }
	tracker.Touch(2)

	tracker.now = func() time.Time { return base.Add(70 * time.Minute) }
	removed := tracker.Sweep()

	assert.Equal(t, 1, removed)
	assert.False(t, tracker.IsActive(1))
	assert.True(t, tracker.IsActive(2))
	assert.Equal(t, 1, tracker.ActiveCount())
}

func TestTouchRefreshesSession(t *testing.T) {
	tracker := newTestTracker(t)
	base := time.Now()

	tracker.now = func() time.Time { return base }
	tracker.Touch(1)
	tracker.now = func() time.Time { return base.Add(50 * time.Minute) }
	tracker.Touch(1)

	tracker.now = func() time.Time { return base.Add(70 * time.Minute) }
	assert.Equal(t, 0, tracker.Sweep())
	assert.True(t, tracker.IsActive(1))
}
