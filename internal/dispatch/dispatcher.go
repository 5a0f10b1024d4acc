package dispatch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/middleware"
	"github.com/premium-ai-tgbot-go/internal/services/access"
	"github.com/premium-ai-tgbot-go/internal/services/ai"
	"github.com/premium-ai-tgbot-go/internal/services/conversation"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Enqueue when the request queue is at
// capacity.
var ErrQueueFull = errors.New("request queue is full")

// Request is one question waiting for a provider answer. The
// fingerprint travels with the request so the answer can be addressed
// later without inspecting conversation position.
type Request struct {
	UserID      int64
	ChatID      int64
	Question    string
	Fingerprint string
	EnqueuedAt  time.Time
}

// Notifier receives dispatch outcomes. Handlers implement it with the
// Telegram API; tests implement it with fakes.
type Notifier interface {
	AnswerReady(chatID, userID int64, fingerprint, question string)
	RateLimited(chatID int64)
	Failure(chatID int64, kind ai.FailureKind)
}

type storedAnswer struct {
	text     string
	storedAt time.Time
}

// Dispatcher serializes provider calls through a bounded queue and a
// single worker goroutine.
type Dispatcher struct {
	queue         chan Request
	providers     *ai.Registry
	conversations *conversation.Manager
	accessReg     *access.Registry
	limiter       *middleware.GlobalRateLimiter
	delay         time.Duration
	notifier      Notifier
	metrics       *middleware.Metrics
	logger        *logrus.Logger

	mu      sync.Mutex
	answers map[int64]map[string]storedAnswer
}

// NewDispatcher creates the dispatcher. Start must be called before
// enqueued requests are processed.
func NewDispatcher(
	cfg *config.Config,
	providers *ai.Registry,
	conversations *conversation.Manager,
	accessReg *access.Registry,
	limiter *middleware.GlobalRateLimiter,
	notifier Notifier,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *Dispatcher {
	queueSize := cfg.Dispatch.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	delay := cfg.Dispatch.RequestDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Dispatcher{
		queue:         make(chan Request, queueSize),
		providers:     providers,
		conversations: conversations,
		accessReg:     accessReg,
		limiter:       limiter,
		delay:         delay,
		notifier:      notifier,
		metrics:       metrics,
		logger:        logger,
		answers:       make(map[int64]map[string]storedAnswer),
	}
}

// Fingerprint derives the stable identifier for one question text.
func Fingerprint(question string) string {
	sum := md5.Sum([]byte(question))
	return hex.EncodeToString(sum[:])
}

// Enqueue submits a request without blocking. A full queue rejects the
// request immediately so the caller can tell the user.
func (d *Dispatcher) Enqueue(req Request) error {
	if req.Fingerprint == "" {
		req.Fingerprint = Fingerprint(req.Question)
	}
	req.EnqueuedAt = time.Now()

	select {
	case d.queue <- req:
		d.metrics.SetQueueDepth(len(d.queue))
		return nil
	default:
		d.logger.WithField("user_id", req.UserID).Warn("Request queue full, rejecting")
		return ErrQueueFull
	}
}

// Start runs the worker loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Dispatcher) run(ctx context.Context) {
	d.logger.Info("Dispatch worker started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatch worker stopped")
			return
		case req := <-d.queue:
			d.metrics.SetQueueDepth(len(d.queue))
			d.process(ctx, req)
			// Hold the full inter-request gap after every handled
			// item, regardless of how long the provider call took.
			select {
			case <-ctx.Done():
				d.logger.Info("Dispatch worker stopped")
				return
			case <-time.After(d.delay):
			}
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, req Request) {
	if !d.limiter.Allow() {
		d.metrics.RecordRequest("rate_limited")
		d.notifier.RateLimited(req.ChatID)
		return
	}

	// The usage counter tracks every admitted request, not just the
	// ones a provider managed to answer.
	d.accessReg.IncrementUsage(req.UserID)

	provider := d.routeProvider(req)
	d.conversations.AppendUserTurn(req.UserID, req.Question)
	d.conversations.RecordConversation(req.UserID, req.Question, true)

	start := time.Now()
	answer, err := provider.Adapter.Respond(ctx, d.conversations.Messages(req.UserID))
	elapsed := time.Since(start)

	if err != nil {
		kind := ai.Classify(err)
		d.metrics.RecordProviderRequest(provider.Key, "error", elapsed)
		d.metrics.RecordRequest("failure")
		d.accessReg.RecordFailure()
		d.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":  req.UserID,
			"provider": provider.Key,
		}).Error("Provider request failed")
		d.notifier.Failure(req.ChatID, kind)
		return
	}

	d.metrics.RecordProviderRequest(provider.Key, "success", elapsed)
	d.metrics.RecordRequest("success")

	d.conversations.AppendAssistantTurn(req.UserID, answer)
	d.conversations.RecordConversation(req.UserID, answer, false)
	d.accessReg.RecordSuccess()
	d.storeAnswer(req.UserID, req.Fingerprint, answer)

	d.notifier.AnswerReady(req.ChatID, req.UserID, req.Fingerprint, req.Question)
}

// routeProvider picks the provider for one request. Security-sensitive
// questions always go to the safety provider.
func (d *Dispatcher) routeProvider(req Request) *ai.Provider {
	if middleware.IsSecuritySensitive(req.Question) {
		d.logger.WithField("user_id", req.UserID).Info("Routing security-sensitive question to safety provider")
		return d.providers.Safety()
	}
	return d.providers.Get(d.conversations.ModelFor(req.UserID))
}

func (d *Dispatcher) storeAnswer(userID int64, fingerprint, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byFP, ok := d.answers[userID]
	if !ok {
		byFP = make(map[string]storedAnswer)
		d.answers[userID] = byFP
	}
	byFP[fingerprint] = storedAnswer{text: text, storedAt: time.Now()}
}

// Answer returns the stored answer for a (user, fingerprint) pair.
func (d *Dispatcher) Answer(userID int64, fingerprint string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byFP, ok := d.answers[userID]
	if !ok {
		return "", false
	}
	stored, ok := byFP[fingerprint]
	return stored.text, ok
}

// PruneAnswers drops stored answers older than maxAge.
func (d *Dispatcher) PruneAnswers(maxAge time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for userID, byFP := range d.answers {
		for fp, stored := range byFP {
			if stored.storedAt.Before(cutoff) {
				delete(byFP, fp)
				pruned++
			}
		}
		if len(byFP) == 0 {
			delete(d.answers, userID)
		}
	}
	return pruned
}

// QueueDepth reports how many requests are waiting.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}
