package markets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/middleware"
	"github.com/premium-ai-tgbot-go/internal/services/cache"
	"github.com/sirupsen/logrus"
)

// QuoteSnapshot is the chart metadata for one symbol.
type QuoteSnapshot struct {
	Currency             string  `json:"currency"`
	Symbol               string  `json:"symbol"`
	RegularMarketPrice   float64 `json:"regularMarketPrice"`
	ChartPreviousClose   float64 `json:"chartPreviousClose"`
	RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
	RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
}

// Insights carries the technical-outlook section for one symbol.
type Insights struct {
	Symbol           string `json:"symbol"`
	ShortTermOutlook string `json:"shortTermOutlook"`
	LongTermOutlook  string `json:"longTermOutlook"`
	Recommendation   string `json:"recommendation"`
}

// InsiderHolder is one entry of the insider-holders list.
type InsiderHolder struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
	Position string `json:"positionDirect"`
}

// Filing is one regulatory filing entry.
type Filing struct {
	Date  string `json:"date"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"edgarUrl"`
}

// AnalystReport is one analyst-report hit.
type AnalystReport struct {
	Title    string `json:"report_title"`
	Provider string `json:"provider"`
	Date     string `json:"report_date"`
}

// Profile is a professional-profile lookup result.
type Profile struct {
	FullName string `json:"full_name"`
	Headline string `json:"headline"`
	Location string `json:"location"`
	Summary  string `json:"summary"`
	Company  string `json:"company"`
}

// Client wraps the read-only data API. Every lookup is non-throwing
// from the caller's perspective: failures are logged and surfaced as a
// nil payload, never as an error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Service
	metrics    *middleware.Metrics
	logger     *logrus.Logger
}

// NewClient creates the data API client.
func NewClient(cfg *config.MarketsConfig, cacheService cache.Service, metrics *middleware.Metrics, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheService,
		metrics:    metrics,
		logger:     logger,
	}
}

// QuoteSnapshot fetches chart metadata for a symbol.
func (c *Client) QuoteSnapshot(ctx context.Context, symbol string) *QuoteSnapshot {
	var envelope struct {
		Chart struct {
			Result []struct {
				Meta QuoteSnapshot `json:"meta"`
			} `json:"result"`
		} `json:"chart"`
	}

	query := url.Values{"symbol": {symbol}, "range": {"1mo"}, "interval": {"1d"}}
	if !c.call(ctx, "YahooFinance/get_stock_chart", query, &envelope) {
		return nil
	}
	if len(envelope.Chart.Result) == 0 {
		c.logger.WithField("symbol", symbol).Warn("No chart result for symbol")
		return nil
	}
	meta := envelope.Chart.Result[0].Meta
	return &meta
}

// Insights fetches the technical outlook for a symbol.
func (c *Client) Insights(ctx context.Context, symbol string) *Insights {
	var envelope struct {
		Finance struct {
			Result Insights `json:"result"`
		} `json:"finance"`
	}

	if !c.call(ctx, "YahooFinance/get_stock_insights", url.Values{"symbol": {symbol}}, &envelope) {
		return nil
	}
	if envelope.Finance.Result.Symbol == "" {
		return nil
	}
	result := envelope.Finance.Result
	return &result
}

// InsiderHolders fetches the insider-holder list for a symbol.
func (c *Client) InsiderHolders(ctx context.Context, symbol string) []InsiderHolder {
	var envelope struct {
		QuoteSummary struct {
			Result []struct {
				InsiderHolders struct {
					Holders []InsiderHolder `json:"holders"`
				} `json:"insiderHolders"`
			} `json:"result"`
		} `json:"quoteSummary"`
	}

	query := url.Values{"symbol": {symbol}, "region": {"US"}}
	if !c.call(ctx, "YahooFinance/get_stock_holders", query, &envelope) {
		return nil
	}
	if len(envelope.QuoteSummary.Result) == 0 {
		return nil
	}
	return envelope.QuoteSummary.Result[0].InsiderHolders.Holders
}

// Filings fetches regulatory filings for a symbol.
func (c *Client) Filings(ctx context.Context, symbol string) []Filing {
	var envelope struct {
		QuoteSummary struct {
			Result []struct {
				SecFilings struct {
					Filings []Filing `json:"filings"`
				} `json:"secFilings"`
			} `json:"result"`
		} `json:"quoteSummary"`
	}

	query := url.Values{"symbol": {symbol}, "region": {"US"}}
	if !c.call(ctx, "YahooFinance/get_stock_sec_filing", query, &envelope) {
		return nil
	}
	if len(envelope.QuoteSummary.Result) == 0 {
		return nil
	}
	return envelope.QuoteSummary.Result[0].SecFilings.Filings
}

// AnalystReports fetches analyst-report hits for a symbol.
func (c *Client) AnalystReports(ctx context.Context, symbol string) []AnalystReport {
	var envelope struct {
		Result []struct {
			Hits []AnalystReport `json:"hits"`
		} `json:"result"`
	}

	query := url.Values{"symbol": {symbol}, "region": {"US"}}
	if !c.call(ctx, "YahooFinance/get_stock_what_analyst_are_saying", query, &envelope) {
		return nil
	}
	if len(envelope.Result) == 0 {
		return nil
	}
	return envelope.Result[0].Hits
}

// ProfileByHandle fetches a professional profile by its public handle.
func (c *Client) ProfileByHandle(ctx context.Context, handle string) *Profile {
	var envelope struct {
		Success bool    `json:"success"`
		Message string  `json:"message"`
		Data    Profile `json:"data"`
	}

	if !c.call(ctx, "LinkedIn/get_user_profile_by_username", url.Values{"username": {handle}}, &envelope) {
		return nil
	}
	if !envelope.Success {
		c.logger.WithFields(logrus.Fields{
			"handle":  handle,
			"message": envelope.Message,
		}).Warn("Profile lookup rejected by upstream")
		return nil
	}
	data := envelope.Data
	return &data
}

// call performs one cached GET and decodes the envelope. It returns
// false on any failure after logging it.
func (c *Client) call(ctx context.Context, endpoint string, query url.Values, out interface{}) bool {
	cacheKey := endpoint + "?" + query.Encode()
	if data, found := c.cache.Get(ctx, cacheKey); found {
		c.metrics.RecordCacheHit()
		if err := json.Unmarshal(data, out); err == nil {
			return true
		}
	}
	c.metrics.RecordCacheMiss()

	fullURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Error("Failed to build data API request")
		c.metrics.RecordMarketLookup(endpoint, "error")
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Error("Data API request failed")
		c.metrics.RecordMarketLookup(endpoint, "error")
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Error("Data API returned unexpected response")
		c.metrics.RecordMarketLookup(endpoint, "error")
		return false
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Error("Failed to decode data API response")
		c.metrics.RecordMarketLookup(endpoint, "error")
		return false
	}

	if err := c.cache.Set(ctx, cacheKey, body); err != nil {
		c.logger.WithError(err).Warn("Failed to cache data API response")
	}

	c.metrics.RecordMarketLookup(endpoint, "success")
	return true
}
