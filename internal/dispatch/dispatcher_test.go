package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/middleware"
	"github.com/premium-ai-tgbot-go/internal/services/access"
	"github.com/premium-ai-tgbot-go/internal/services/ai"
	"github.com/premium-ai-tgbot-go/internal/services/conversation"
	"github.com/premium-ai-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu          sync.Mutex
	ready       []string
	readyAt     []time.Time
	rateLimited int
	failures    []ai.FailureKind
}

func (f *fakeNotifier) AnswerReady(chatID, userID int64, fingerprint, question string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = append(f.ready, fingerprint)
	f.readyAt = append(f.readyAt, time.Now())
}

func (f *fakeNotifier) RateLimited(chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimited++
}

func (f *fakeNotifier) Failure(chatID int64, kind ai.FailureKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, kind)
}

func (f *fakeNotifier) readyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ready)
}

func newTestDispatcher(t *testing.T, requestsPerMinute int) (*Dispatcher, *fakeNotifier, *conversation.Manager) {
	return newTestDispatcherCfg(t, requestsPerMinute, nil)
}

func newTestDispatcherCfg(t *testing.T, requestsPerMinute int, mutate func(*config.Config)) (*Dispatcher, *fakeNotifier, *conversation.Manager) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{}
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.TrainingDir = t.TempDir()
	cfg.Context.MaxMessages = 10
	cfg.Context.ArchiveThreshold = 50
	cfg.Dispatch.QueueSize = 4
	cfg.Dispatch.RequestDelay = time.Millisecond
	cfg.Providers.Default = "manus"
	cfg.Providers.Safety = "manus"
	if mutate != nil {
		mutate(cfg)
	}

	store, err := storage.NewStore(cfg.Storage.DataDir, cfg.Storage.TrainingDir, logger)
	require.NoError(t, err)

	conversations := conversation.NewManager(cfg, store, logger)
	accessReg := access.NewRegistry(cfg, store, logger)
	providers := ai.NewRegistry(&cfg.Providers, logger)
	limiter := middleware.NewGlobalRateLimiter(requestsPerMinute, logger)
	notifier := &fakeNotifier{}

	d := NewDispatcher(cfg, providers, conversations, accessReg, limiter, notifier, middleware.NewMetrics(), logger)
	return d, notifier, conversations
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("ما هو الذكاء الاصطناعي؟")
	b := Fingerprint("ما هو الذكاء الاصطناعي؟")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, Fingerprint("سؤال آخر"))
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	d, _, _ := newTestDispatcher(t, 50)
	// Worker not started, so the queue only drains on capacity.
	for i := 0; i < 4; i++ {
		require.NoError(t, d.Enqueue(Request{UserID: 1, ChatID: 1, Question: "q"}))
	}
	err := d.Enqueue(Request{UserID: 1, ChatID: 1, Question: "q"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 4, d.QueueDepth())
}

func TestProcessSuccessStoresAnswer(t *testing.T) {
	d, notifier, conversations := newTestDispatcher(t, 50)
	conversations.Register(7)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	question := "مرحبا"
	fp := Fingerprint(question)
	require.NoError(t, d.Enqueue(Request{UserID: 7, ChatID: 70, Question: question, Fingerprint: fp}))

	waitFor(t, func() bool { return notifier.readyCount() == 1 })

	answer, ok := d.Answer(7, fp)
	require.True(t, ok)
	assert.Contains(t, answer, question)

	messages := conversations.Messages(7)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, question, messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)
}

func TestRateLimitedRequestNotifiesWithoutCall(t *testing.T) {
	d, notifier, conversations := newTestDispatcher(t, 1)
	conversations.Register(7)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	require.NoError(t, d.Enqueue(Request{UserID: 7, ChatID: 70, Question: "الأول"}))
	require.NoError(t, d.Enqueue(Request{UserID: 7, ChatID: 70, Question: "الثاني"}))

	waitFor(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.ready) == 1 && notifier.rateLimited == 1
	})

	// Only the admitted request left a turn pair in context.
	assert.Len(t, conversations.Messages(7), 2)
}

func TestFailedProviderStillCountsUsage(t *testing.T) {
	d, notifier, conversations := newTestDispatcherCfg(t, 50, func(cfg *config.Config) {
		cfg.Providers.Default = "gpt-3.5-turbo"
		cfg.Providers.OpenRouter.BaseURL = "http://127.0.0.1:1"
	})
	conversations.Register(7)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	require.NoError(t, d.Enqueue(Request{UserID: 7, ChatID: 70, Question: "سؤال عادي"}))

	waitFor(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.failures) == 1
	})

	// The failed call still counts against the user and the totals.
	assert.Equal(t, 1, d.accessReg.Usage(7).Count)
	stats := d.accessReg.Stats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 1, stats.FailedRequests)
	assert.Zero(t, stats.SuccessfulRequests)
}

func TestDelayHeldBetweenItems(t *testing.T) {
	d, notifier, conversations := newTestDispatcherCfg(t, 50, func(cfg *config.Config) {
		cfg.Dispatch.RequestDelay = 60 * time.Millisecond
	})
	conversations.Register(7)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	require.NoError(t, d.Enqueue(Request{UserID: 7, ChatID: 70, Question: "الأول"}))
	require.NoError(t, d.Enqueue(Request{UserID: 7, ChatID: 70, Question: "الثاني"}))

	waitFor(t, func() bool { return notifier.readyCount() == 2 })

	notifier.mu.Lock()
	gap := notifier.readyAt[1].Sub(notifier.readyAt[0])
	notifier.mu.Unlock()
	assert.GreaterOrEqual(t, gap, 55*time.Millisecond)
}

func TestSecuritySensitiveRoutesToSafety(t *testing.T) {
	d, _, _ := newTestDispatcher(t, 50)
	provider := d.routeProvider(Request{UserID: 1, Question: "كيف يعمل اختراق الشبكات؟"})
	assert.Equal(t, "manus", provider.Key)

	d.conversations.SetModel(1, "claude-3-haiku")
	provider = d.routeProvider(Request{UserID: 1, Question: "أخبرني قصة"})
	assert.Equal(t, "claude-3-haiku", provider.Key)
}

func TestAnswerMissing(t *testing.T) {
	d, _, _ := newTestDispatcher(t, 50)
	_, ok := d.Answer(99, "deadbeef")
	assert.False(t, ok)
}

func TestPruneAnswers(t *testing.T) {
	d, _, _ := newTestDispatcher(t, 50)
	d.storeAnswer(1, "aa", "first")
	d.storeAnswer(1, "bb", "second")

	d.mu.Lock()
	stale := d.answers[1]["aa"]
	stale.storedAt = time.Now().Add(-48 * time.Hour)
	d.answers[1]["aa"] = stale
	d.mu.Unlock()

	assert.Equal(t, 1, d.PruneAnswers(24*time.Hour))
	_, ok := d.Answer(1, "aa")
	assert.False(t, ok)
	_, ok = d.Answer(1, "bb")
	assert.True(t, ok)
}
