package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// openRouterAdapter speaks the OpenAI-compatible chat/completions shape
// and carries the full conversation context.
type openRouterAdapter struct {
	cfg    *config.EndpointConfig
	client *http.Client
	logger *logrus.Logger
}

func newOpenRouterAdapter(cfg *config.EndpointConfig, client *http.Client, logger *logrus.Logger) *openRouterAdapter {
	return &openRouterAdapter{cfg: cfg, client: client, logger: logger}
}

func (a *openRouterAdapter) Respond(ctx context.Context, messages []models.Message) (string, error) {
	payload := map[string]interface{}{
		"model":             a.cfg.Model,
		"messages":          messages,
		"temperature":       0.7,
		"max_tokens":        a.cfg.MaxTokens,
		"frequency_penalty": 0.2,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + a.cfg.APIKey,
	}

	url := strings.TrimSuffix(a.cfg.BaseURL, "/") + "/chat/completions"
	body, err := postJSON(ctx, a.client, "openrouter", url, headers, payload)
	if err != nil {
		a.logger.WithError(err).Error("OpenRouter request failed")
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &ProviderError{Provider: "openrouter", Kind: FailureBadPayload, Err: err}
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", &ProviderError{Provider: "openrouter", Kind: FailureBadPayload, Err: fmt.Errorf("no choices in response")}
	}

	return result.Choices[0].Message.Content, nil
}
