package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// claudeAdapter sends the latest user prompt through Anthropic's
// messages API.
type claudeAdapter struct {
	cfg    *config.EndpointConfig
	client *http.Client
	logger *logrus.Logger
}

func newClaudeAdapter(cfg *config.EndpointConfig, client *http.Client, logger *logrus.Logger) *claudeAdapter {
	return &claudeAdapter{cfg: cfg, client: client, logger: logger}
}

func (a *claudeAdapter) Respond(ctx context.Context, messages []models.Message) (string, error) {
	payload := map[string]interface{}{
		"model":      a.cfg.Model,
		"max_tokens": a.cfg.MaxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": lastUserContent(messages)},
		},
	}

	headers := map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	}

	body, err := postJSON(ctx, a.client, "claude", a.cfg.BaseURL, headers, payload)
	if err != nil {
		a.logger.WithError(err).Error("Claude request failed")
		return "", err
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &ProviderError{Provider: "claude", Kind: FailureBadPayload, Err: err}
	}
	if len(result.Content) == 0 || result.Content[0].Text == "" {
		return "", &ProviderError{Provider: "claude", Kind: FailureBadPayload, Err: fmt.Errorf("empty content in response")}
	}

	return result.Content[0].Text, nil
}
