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

// mistralAdapter sends the latest user prompt through Mistral's
// chat/completions endpoint.
type mistralAdapter struct {
	cfg    *config.EndpointConfig
	client *http.Client
	logger *logrus.Logger
}

func newMistralAdapter(cfg *config.EndpointConfig, client *http.Client, logger *logrus.Logger) *mistralAdapter {
	return &mistralAdapter{cfg: cfg, client: client, logger: logger}
}

func (a *mistralAdapter) Respond(ctx context.Context, messages []models.Message) (string, error) {
	payload := map[string]interface{}{
		"model": a.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": lastUserContent(messages)},
		},
		"temperature": 0.7,
		"max_tokens":  a.cfg.MaxTokens,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + a.cfg.APIKey,
	}

	body, err := postJSON(ctx, a.client, "mistral", a.cfg.BaseURL, headers, payload)
	if err != nil {
		a.logger.WithError(err).Error("Mistral request failed")
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
		return "", &ProviderError{Provider: "mistral", Kind: FailureBadPayload, Err: err}
	}
	if len(result.Choices) == 0 {
		return "", &ProviderError{Provider: "mistral", Kind: FailureBadPayload, Err: fmt.Errorf("no choices in response")}
	}

	return result.Choices[0].Message.Content, nil
}
