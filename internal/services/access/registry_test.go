package access

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/models"
	"github.com/premium-ai-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *storage.Store) {
	t.Helper()
	dir := t.TempDir()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	store, err := storage.NewStore(filepath.Join(dir, "data"), filepath.Join(dir, "training"), logger)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Bot.AdminIDs = []int64{42}

	return NewRegistry(cfg, store, logger), store
}

func TestDuplicateActivationRejected(t *testing.T) {
	r, _ := newTestRegistry(t)

	first := models.PendingActivation{Name: "Ali", RequestedAt: time.Now()}
	require.True(t, r.RequestActivation(100, first))

	second := models.PendingActivation{Name: "Someone Else"}
	require.False(t, r.RequestActivation(100, second))

	// The original record survives the duplicate attempt.
	pending := r.PendingActivations()
	require.Len(t, pending, 1)
	require.Equal(t, "Ali", pending["100"].Name)
}

func TestCancelNonExistentActivation(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.False(t, r.CancelActivation(999))

	require.True(t, r.RequestActivation(999, models.PendingActivation{Name: "X"}))
	require.True(t, r.CancelActivation(999))
	require.False(t, r.CancelActivation(999))
}

func TestResolveActivationStaleReference(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.True(t, r.RequestActivation(5, models.PendingActivation{Name: "Y"}))

	req, ok := r.ResolveActivation("5")
	require.True(t, ok)
	require.Equal(t, "Y", req.Name)

	// Resolving again hits a stale reference.
	_, ok = r.ResolveActivation("5")
	require.False(t, ok)
}

func TestRegisterUserOnce(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.True(t, r.RegisterUser(7))
	require.False(t, r.RegisterUser(7))
	require.Equal(t, 1, r.UserCount())
	require.Equal(t, 1, r.NewUsersToday())
	require.True(t, r.FooterEnabled(7))
}

func TestUsageCounting(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.RegisterUser(3)

	r.IncrementUsage(3)
	r.IncrementUsage(3)

	u := r.Usage(3)
	require.Equal(t, 2, u.Count)
	require.NotNil(t, u.LastUsed)
	require.Equal(t, 2, r.Stats().TotalRequests)
}

func TestRecomputeActiveUsers(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.RegisterUser(1)
	r.RegisterUser(2)
	r.IncrementUsage(1)

	require.Equal(t, 1, r.RecomputeActiveUsers(24*time.Hour))
	require.Equal(t, 1, r.Stats().ActiveUsers)
}

func TestMaintenancePersists(t *testing.T) {
	r, store := newTestRegistry(t)

	r.SetMaintenance(true)
	require.True(t, r.Maintenance())

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	cfg := &config.Config{}
	cfg.Bot.AdminIDs = []int64{42}

	reloaded := NewRegistry(cfg, store, logger)
	require.True(t, reloaded.Maintenance())
}

func TestIsAdmin(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.True(t, r.IsAdmin(42))
	require.False(t, r.IsAdmin(41))
}
