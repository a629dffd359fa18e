package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"tradebench/internal/config"
	"tradebench/internal/domain"
	"tradebench/internal/util"
)

// Compile-time interface check.
var _ BarProvider = (*HTTPProvider)(nil)

// HTTPProvider fetches bars from a JSON-over-HTTP historical-data endpoint.
//
// Request:  GET <base_url>/bars?symbol=X&start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
// Response: {"data": [{"timestamp": RFC3339, "open": ..., "high": ...,
//
//	"low": ..., "close": ..., "volume": ..., "name": "..."}]}
//
// A non-2xx status or a malformed body is returned as an error; the caller
// treats it as a zero-result batch.
type HTTPProvider struct {
	baseURL    string
	timeframe  domain.Timeframe
	client     *http.Client
	limiter    *util.RateLimiter
	maxRetries int
	log        *slog.Logger
}

// NewHTTPProvider creates an HTTPProvider from the provider configuration.
func NewHTTPProvider(cfg config.Provider, timeframe domain.Timeframe) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    cfg.BaseURL,
		timeframe:  timeframe,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    util.NewRateLimiter(cfg.RateLimitPerMin),
		maxRetries: cfg.MaxRetries,
		log:        slog.Default().With("provider", "http"),
	}
}

// barPayload mirrors one element of the provider's "data" array.
type barPayload struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Name      string  `json:"name,omitempty"`
}

// barsResponse is the provider's top-level response shape.
type barsResponse struct {
	Data []barPayload `json:"data"`
}

// FetchBars requests one date window of bars for the symbol, retrying
// transient failures with backoff and respecting the provider rate limit.
func (p *HTTPProvider) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bars []domain.Bar
	err := util.Retry(ctx, p.maxRetries, 500*time.Millisecond, func() error {
		var ferr error
		bars, ferr = p.fetchOnce(ctx, symbol, start, end)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s [%s..%s]: %w",
			symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), err)
	}
	return bars, nil
}

func (p *HTTPProvider) fetchOnce(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	u := p.baseURL + "/bars?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body barsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	bars := make([]domain.Bar, 0, len(body.Data))
	for _, bp := range body.Data {
		ts, err := time.Parse(time.RFC3339, bp.Timestamp)
		if err != nil {
			// Some providers emit bare dates for daily bars.
			ts, err = time.Parse("2006-01-02", bp.Timestamp)
			if err != nil {
				p.log.Warn("skipping bar with unparseable timestamp",
					"symbol", symbol, "timestamp", bp.Timestamp)
				continue
			}
		}
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: ts.UTC(),
			Timeframe: p.timeframe,
			Open:      bp.Open,
			High:      bp.High,
			Low:       bp.Low,
			Close:     bp.Close,
			Volume:    bp.Volume,
			Name:      bp.Name,
		})
	}
	return bars, nil
}
