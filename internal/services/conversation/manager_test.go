package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *storage.Store) {
	t.Helper()
	dir := t.TempDir()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	store, err := storage.NewStore(filepath.Join(dir, "data"), filepath.Join(dir, "training"), logger)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Context.MaxMessages = 10
	cfg.Context.ArchiveThreshold = 50
	cfg.Providers.Default = "gpt-3.5-turbo"

	return NewManager(cfg, store, logger), store
}

func TestContextNeverExceedsBound(t *testing.T) {
	m, _ := newTestManager(t)
	m.Register(1)

	for i := 0; i < 40; i++ {
		m.AppendUserTurn(1, fmt.Sprintf("q%d", i))
		m.AppendAssistantTurn(1, fmt.Sprintf("a%d", i))
		require.LessOrEqual(t, len(m.Messages(1)), 10)
	}
}

func TestTrimDropsOldestKeepsOrder(t *testing.T) {
	m, _ := newTestManager(t)
	m.Register(1)

	for i := 0; i < 12; i++ {
		m.AppendUserTurn(1, fmt.Sprintf("m%d", i))
	}

	msgs := m.Messages(1)
	require.Len(t, msgs, 10)
	// Oldest entries fall off the front; the newest survives at the end.
	require.Equal(t, "m2", msgs[0].Content)
	require.Equal(t, "m11", msgs[9].Content)
}

func TestRegisterIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)

	require.False(t, m.IsRegistered(7))
	m.Register(7)
	require.True(t, m.IsRegistered(7))

	m.AppendUserTurn(7, "hello")
	m.Register(7)
	require.Len(t, m.Messages(7), 1)
}

func TestModelPreferenceDefaultAndOverride(t *testing.T) {
	m, _ := newTestManager(t)

	require.Equal(t, "gpt-3.5-turbo", m.ModelFor(3))
	m.SetModel(3, "claude-3-haiku")
	require.Equal(t, "claude-3-haiku", m.ModelFor(3))

	dist := m.ModelDistribution()
	require.Equal(t, 1, dist["claude-3-haiku"])
}

func TestContextsSurviveReload(t *testing.T) {
	m, store := newTestManager(t)
	m.Register(9)
	m.AppendUserTurn(9, "persisted?")
	m.SetModel(9, "deepseek-chat")

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	cfg := &config.Config{}
	cfg.Context.MaxMessages = 10
	cfg.Context.ArchiveThreshold = 50
	cfg.Providers.Default = "gpt-3.5-turbo"

	reloaded := NewManager(cfg, store, logger)
	require.True(t, reloaded.IsRegistered(9))
	require.Equal(t, "persisted?", reloaded.Messages(9)[0].Content)
	require.Equal(t, "deepseek-chat", reloaded.ModelFor(9))
}

func TestHistoryArchivesPastThreshold(t *testing.T) {
	m, store := newTestManager(t)
	m.Register(5)

	// 51 records crosses the threshold and triggers the rollup.
	for i := 0; i < 51; i++ {
		m.RecordConversation(5, fmt.Sprintf("turn %d", i), i%2 == 0)
	}

	m.mu.Lock()
	remaining := len(m.history["5"])
	m.mu.Unlock()
	require.Zero(t, remaining)

	matches, err := filepath.Glob(filepath.Join(store.TrainingDir(), "conversation_5_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}
