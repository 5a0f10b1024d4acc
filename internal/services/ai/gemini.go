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

// geminiAdapter sends only the latest user prompt in Gemini's
// generateContent envelope, with the API key as a query parameter.
type geminiAdapter struct {
	cfg    *config.EndpointConfig
	client *http.Client
	logger *logrus.Logger
}

func newGeminiAdapter(cfg *config.EndpointConfig, client *http.Client, logger *logrus.Logger) *geminiAdapter {
	return &geminiAdapter{cfg: cfg, client: client, logger: logger}
}

func (a *geminiAdapter) Respond(ctx context.Context, messages []models.Message) (string, error) {
	prompt := lastUserContent(messages)

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}

	url := fmt.Sprintf("%s?key=%s", a.cfg.BaseURL, a.cfg.APIKey)
	body, err := postJSON(ctx, a.client, "gemini", url, nil, payload)
	if err != nil {
		a.logger.WithError(err).Error("Gemini request failed")
		return "", err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &ProviderError{Provider: "gemini", Kind: FailureBadPayload, Err: err}
	}

	for _, candidate := range result.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}

	return "", &ProviderError{Provider: "gemini", Kind: FailureBadPayload, Err: fmt.Errorf("no candidates in response")}
}
