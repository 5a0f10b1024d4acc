package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	cfg := &config.ProvidersConfig{
		Default: "gpt-3.5-turbo",
		Safety:  "gemini-1.5-flash",
	}
	return NewRegistry(cfg, logger)
}

func TestRegistryFallsBackToDefault(t *testing.T) {
	registry := testRegistry(t)

	p := registry.Get("no-such-model")
	require.Equal(t, "gpt-3.5-turbo", p.Key)
}

func TestRegistryKnownKeys(t *testing.T) {
	registry := testRegistry(t)

	for _, key := range []string{"gpt-3.5-turbo", "gemini-1.5-flash", "claude-3-haiku", "mistral-medium", "deepseek-chat", "manus"} {
		require.True(t, registry.Known(key), key)
		require.Equal(t, key, registry.Get(key).Key)
	}
	require.False(t, registry.Known("gpt-5"))
}

func TestRegistrySafetyProvider(t *testing.T) {
	registry := testRegistry(t)
	require.Equal(t, "gemini-1.5-flash", registry.Safety().Key)
}

func TestClassifyProviderError(t *testing.T) {
	err := &ProviderError{Provider: "openrouter", Kind: FailureTimeout, Err: errors.New("deadline")}
	require.Equal(t, FailureTimeout, Classify(err))
	require.Equal(t, FailureTimeout, Classify(fmt.Errorf("wrapped: %w", err)))
	require.Equal(t, FailureUnknown, Classify(errors.New("plain")))
}

func TestOpenRouterAdapterParsesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.Contains(t, string(body), "\"messages\"")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello"}}]}`)
	}))
	defer server.Close()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	adapter := newOpenRouterAdapter(&config.EndpointConfig{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		Model:     "gpt-3.5-turbo",
		MaxTokens: 100,
	}, server.Client(), logger)

	answer, err := adapter.Respond(context.Background(), []models.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "hello", answer)
}

func TestOpenRouterAdapterBadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	adapter := newOpenRouterAdapter(&config.EndpointConfig{BaseURL: server.URL}, server.Client(), logger)

	_, err := adapter.Respond(context.Background(), []models.Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	require.Equal(t, FailureBadPayload, Classify(err))
}

func TestAdapterConnectionFailure(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	adapter := newOpenRouterAdapter(&config.EndpointConfig{
		BaseURL: "http://127.0.0.1:1",
	}, &http.Client{Timeout: time.Second}, logger)

	_, err := adapter.Respond(context.Background(), []models.Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	require.Equal(t, FailureConnection, Classify(err))
}

func TestManusAdapterEchoesLastUserTurn(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	adapter := newManusAdapter(logger)

	answer, err := adapter.Respond(context.Background(), []models.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "second"},
	})
	require.NoError(t, err)
	require.Contains(t, answer, "second")
}

func TestLastUserContentEmptyConversation(t *testing.T) {
	require.Equal(t, "", lastUserContent(nil))
	require.Equal(t, "", lastUserContent([]models.Message{{Role: "assistant", Content: "x"}}))
}
