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

// deepSeekAdapter carries the full conversation context through
// DeepSeek's OpenAI-compatible endpoint.
type deepSeekAdapter struct {
	cfg    *config.EndpointConfig
	client *http.Client
	logger *logrus.Logger
}

func newDeepSeekAdapter(cfg *config.EndpointConfig, client *http.Client, logger *logrus.Logger) *deepSeekAdapter {
	return &deepSeekAdapter{cfg: cfg, client: client, logger: logger}
}

func (a *deepSeekAdapter) Respond(ctx context.Context, messages []models.Message) (string, error) {
	payload := map[string]interface{}{
		"model":       a.cfg.Model,
		"messages":    messages,
		"temperature": 0.7,
		"max_tokens":  a.cfg.MaxTokens,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + a.cfg.APIKey,
	}

	body, err := postJSON(ctx, a.client, "deepseek", a.cfg.BaseURL, headers, payload)
	if err != nil {
		a.logger.WithError(err).Error("DeepSeek request failed")
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
		return "", &ProviderError{Provider: "deepseek", Kind: FailureBadPayload, Err: err}
	}
	if len(result.Choices) == 0 {
		return "", &ProviderError{Provider: "deepseek", Kind: FailureBadPayload, Err: fmt.Errorf("no choices in response")}
	}

	return result.Choices[0].Message.Content, nil
}
