package markets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/middleware"
	"github.com/premium-ai-tgbot-go/internal/services/cache"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	cacheService, err := cache.NewService(cfg, logrus.New())
	require.NoError(t, err)

	return NewClient(&config.MarketsConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, cacheService, middleware.NewMetrics(), logrus.New())
}

func TestQuoteSnapshot(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/YahooFinance/get_stock_chart", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"chart":{"result":[{"meta":{"currency":"USD","symbol":"AAPL","regularMarketPrice":195.5,"chartPreviousClose":193.2}}]}}`))
	}))

	snapshot := client.QuoteSnapshot(context.Background(), "AAPL")
	require.NotNil(t, snapshot)
	assert.Equal(t, "AAPL", snapshot.Symbol)
	assert.Equal(t, "USD", snapshot.Currency)
	assert.InDelta(t, 195.5, snapshot.RegularMarketPrice, 0.001)
}

func TestQuoteSnapshotEmptyResult(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[]}}`))
	}))

	assert.Nil(t, client.QuoteSnapshot(context.Background(), "NOPE"))
}

func TestLookupSwallowsTransportFailure(t *testing.T) {
	cfg := &config.Config{}
	cacheService, err := cache.NewService(cfg, logrus.New())
	require.NoError(t, err)

	client := NewClient(&config.MarketsConfig{
		BaseURL: "http://127.0.0.1:1",
		Timeout: 500 * time.Millisecond,
	}, cacheService, middleware.NewMetrics(), logrus.New())

	assert.Nil(t, client.QuoteSnapshot(context.Background(), "AAPL"))
	assert.Nil(t, client.Insights(context.Background(), "AAPL"))
	assert.Nil(t, client.InsiderHolders(context.Background(), "AAPL"))
	assert.Nil(t, client.Filings(context.Background(), "AAPL"))
	assert.Nil(t, client.AnalystReports(context.Background(), "AAPL"))
	assert.Nil(t, client.ProfileByHandle(context.Background(), "someone"))
}

func TestLookupSwallowsBadStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	assert.Nil(t, client.Insights(context.Background(), "AAPL"))
}

func TestProfileByHandle(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/LinkedIn/get_user_profile_by_username", r.URL.Path)
		assert.Equal(t, "jdoe", r.URL.Query().Get("username"))
		w.Write([]byte(`{"success":true,"data":{"full_name":"J. Doe","headline":"Engineer","location":"Riyadh"}}`))
	}))

	profile := client.ProfileByHandle(context.Background(), "jdoe")
	require.NotNil(t, profile)
	assert.Equal(t, "J. Doe", profile.FullName)
	assert.Equal(t, "Engineer", profile.Headline)
}

func TestProfileByHandleUpstreamRejection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"profile not found"}`))
	}))

	assert.Nil(t, client.ProfileByHandle(context.Background(), "ghost"))
}

func TestInsiderHolders(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary":{"result":[{"insiderHolders":{"holders":[{"name":"COOK TIMOTHY","relation":"Chief Executive Officer"}]}}]}}`))
	}))

	holders := client.InsiderHolders(context.Background(), "AAPL")
	require.Len(t, holders, 1)
	assert.Equal(t, "COOK TIMOTHY", holders[0].Name)
}
