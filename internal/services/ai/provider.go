package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// FailureKind classifies why a provider call failed.
type FailureKind int

const (
	FailureConnection FailureKind = iota
	FailureTimeout
	FailureBadPayload
	FailureUnknown
)

// ProviderError carries a typed failure reason out of an adapter.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Classify extracts the failure kind from an adapter error.
func Classify(err error) FailureKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return FailureUnknown
}

// Adapter is the uniform contract every LLM backend satisfies. The
// conversation is the caller's full bounded context; adapters that only
// accept a single prompt use the last user turn.
type Adapter interface {
	Respond(ctx context.Context, messages []models.Message) (string, error)
}

// Provider pairs an adapter with its user-facing name.
type Provider struct {
	Key         string
	DisplayName string
	Adapter     Adapter
}

// Registry holds the closed set of known providers.
type Registry struct {
	providers  map[string]*Provider
	order      []string
	defaultKey string
	safetyKey  string
	logger     *logrus.Logger
}

// NewRegistry builds the provider set from configuration.
func NewRegistry(cfg *config.ProvidersConfig, logger *logrus.Logger) *Registry {
	httpClient := &http.Client{Timeout: 2 * time.Minute}

	r := &Registry{
		providers:  make(map[string]*Provider),
		defaultKey: cfg.Default,
		safetyKey:  cfg.Safety,
		logger:     logger,
	}

	r.register("gpt-3.5-turbo", "🚀 GPT-3.5 Turbo", newOpenRouterAdapter(&cfg.OpenRouter, httpClient, logger))
	r.register("gemini-1.5-flash", "✨ Gemini 1.5 Flash", newGeminiAdapter(&cfg.Gemini, httpClient, logger))
	r.register("claude-3-haiku", "🧠 Claude 3 Haiku", newClaudeAdapter(&cfg.Claude, httpClient, logger))
	r.register("mistral-medium", "🌬️ Mistral Medium", newMistralAdapter(&cfg.Mistral, httpClient, logger))
	r.register("deepseek-chat", "🔍 DeepSeek Chat", newDeepSeekAdapter(&cfg.DeepSeek, httpClient, logger))
	r.register("manus", "🤖 Manus (Internal)", newManusAdapter(logger))

	logger.WithField("providers", len(r.providers)).Info("Provider registry initialized")
	return r
}

func (r *Registry) register(key, displayName string, adapter Adapter) {
	r.providers[key] = &Provider{Key: key, DisplayName: displayName, Adapter: adapter}
	r.order = append(r.order, key)
}

// Get returns the provider for a stored preference, falling back to the
// default provider when the key is unknown.
func (r *Registry) Get(key string) *Provider {
	if p, ok := r.providers[key]; ok {
		return p
	}
	return r.providers[r.defaultKey]
}

// Safety returns the designated provider for security-sensitive questions.
func (r *Registry) Safety() *Provider {
	return r.providers[r.safetyKey]
}

// Default returns the baseline provider key.
func (r *Registry) Default() string { return r.defaultKey }

// Known reports whether a model key names a registered provider.
func (r *Registry) Known(key string) bool {
	_, ok := r.providers[key]
	return ok
}

// All returns the providers in registration order, for keyboard layouts.
func (r *Registry) All() []*Provider {
	out := make([]*Provider, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.providers[key])
	}
	return out
}

// callTimeout bounds every outbound provider request. Calls are never
// retried; a timeout is reported once and the user must re-ask.
const callTimeout = 30 * time.Second

// postJSON issues one request and hands the raw body to the caller's
// envelope parser, mapping transport failures to typed kinds.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Kind: FailureUnknown, Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: provider, Kind: FailureUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		kind := FailureConnection
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			kind = FailureTimeout
		}
		return nil, &ProviderError{Provider: provider, Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Kind: FailureConnection, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: provider,
			Kind:     FailureBadPayload,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(data), 200)),
		}
	}

	return data, nil
}

// lastUserContent finds the most recent user turn for single-prompt adapters.
func lastUserContent(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
