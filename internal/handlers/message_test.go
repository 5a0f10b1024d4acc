package handlers

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/services/access"
	"github.com/premium-ai-tgbot-go/internal/services/conversation"
	"github.com/premium-ai-tgbot-go/internal/services/markets"
	"github.com/premium-ai-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMessageHandler(t *testing.T) *MessageHandler {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{}
	cfg.Bot.AdminIDs = []int64{99}
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.TrainingDir = t.TempDir()
	cfg.Context.MaxMessages = 10
	cfg.Context.ArchiveThreshold = 50

	store, err := storage.NewStore(cfg.Storage.DataDir, cfg.Storage.TrainingDir, logger)
	require.NoError(t, err)

	conversations := conversation.NewManager(cfg, store, logger)
	accessReg := access.NewRegistry(cfg, store, logger)

	return NewMessageHandler(cfg, nil, nil, nil, conversations, accessReg, nil, nil, nil, logger)
}

func TestAdminBypassesActivation(t *testing.T) {
	h := newTestMessageHandler(t)

	// Admin is allowed without ever being activated.
	assert.True(t, h.allowed(99))

	// A regular user needs activation first.
	assert.False(t, h.allowed(5))
	h.conversations.Register(5)
	assert.True(t, h.allowed(5))
}

func TestHasAttachment(t *testing.T) {
	assert.True(t, hasAttachment(&tgbotapi.Message{Document: &tgbotapi.Document{FileName: "report.pdf"}}))
	assert.True(t, hasAttachment(&tgbotapi.Message{Photo: []tgbotapi.PhotoSize{{FileID: "abc"}}}))
	assert.False(t, hasAttachment(&tgbotapi.Message{Text: "مرحبا"}))
	assert.False(t, hasAttachment(&tgbotapi.Message{}))
}

func TestFormatStockSummarySections(t *testing.T) {
	snapshot := &markets.QuoteSnapshot{
		Symbol:               "AAPL",
		Currency:             "USD",
		RegularMarketPrice:   187.5,
		ChartPreviousClose:   185.0,
		RegularMarketDayLow:  184.2,
		RegularMarketDayHigh: 188.9,
	}
	insights := &markets.Insights{ShortTermOutlook: "Bullish", Recommendation: "BUY"}
	holders := []markets.InsiderHolder{
		{Name: "Jane Roe", Relation: "Officer"},
		{Name: "John Doe", Relation: "Director"},
		{Name: "Ada L.", Relation: "Officer"},
		{Name: "Alan T.", Relation: "Director"},
	}
	reports := []markets.AnalystReport{{Title: "Q2 outlook", Provider: "Argus"}}
	filings := []markets.Filing{
		{Title: "10-K", Date: "2026-02-01"},
		{Title: "8-K", Date: "2026-05-12"},
		{Title: "10-Q", Date: "2026-07-30"},
	}

	summary := formatStockSummary(snapshot, insights, holders, reports, filings)

	assert.Contains(t, summary, "AAPL")
	assert.Contains(t, summary, "187.50")
	assert.Contains(t, summary, "Bullish")
	// Insider section shows the full count but lists at most three names.
	assert.Contains(t, summary, "المطلعون المسجلون: 4")
	assert.Contains(t, summary, "Jane Roe")
	assert.NotContains(t, summary, "Alan T.")
	assert.Contains(t, summary, "Q2 outlook")
	// Filings list is capped at two entries.
	assert.Contains(t, summary, "10-K")
	assert.Contains(t, summary, "8-K")
	assert.NotContains(t, summary, "10-Q")
}

func TestFormatStockSummaryOmitsEmptySections(t *testing.T) {
	snapshot := &markets.QuoteSnapshot{Symbol: "MSFT", Currency: "USD", RegularMarketPrice: 410.0}
	summary := formatStockSummary(snapshot, nil, nil, nil, nil)

	assert.Contains(t, summary, "MSFT")
	assert.NotContains(t, summary, "المطلعون المسجلون")
	assert.NotContains(t, summary, "الإفصاحات")
	assert.NotContains(t, summary, "تقارير المحللين")
}
