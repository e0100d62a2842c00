package bridge

import (
	"context"
	"fmt"
	"strings"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
	"ChartPulse/internal/service/ratelimit"
	xhttp "ChartPulse/pkg/http"
)

// Client fetches OHLC history from the broker bridge over HTTP.
type Client struct {
	baseURL   string
	brokerID  string
	accountID string
	http      *xhttp.Client
	limiter   *ratelimit.Limiter
}

// NewClient creates a bridge history client.
func NewClient(baseURL, brokerID, accountID string, httpClient *xhttp.Client) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		brokerID:  brokerID,
		accountID: accountID,
		http:      httpClient,
		limiter:   ratelimit.New(5, 2),
	}
}

type seriesRequest struct {
	Symbol     string `json:"symbol"`
	Resolution string `json:"resolution"`
	FromMs     int64  `json:"fromMs,omitempty"`
	ToMs       int64  `json:"toMs,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type seriesResponse struct {
	OK          bool         `json:"ok"`
	Error       string       `json:"error,omitempty"`
	Bars        []models.Bar `json:"bars"`
	FetchedAtMs int64        `json:"fetchedAtMs"`
}

// GetHistorySeries requests a bar series from the bridge. The caller's ctx
// carries the fetch deadline.
func (c *Client) GetHistorySeries(ctx context.Context, symbol, resolution string, fromMs, toMs int64, limit int) (*models.HistoryResult, error) {
	sym := drepo.NormalizeSymbol(symbol)
	if !c.limiter.Allow(sym) {
		return nil, fmt.Errorf("bridge fetch rate limited for %s", sym)
	}

	req := seriesRequest{
		Symbol:     sym,
		Resolution: string(drepo.NormalizeTimeframe(resolution)),
		FromMs:     fromMs,
		ToMs:       toMs,
		Limit:      limit,
	}

	var resp seriesResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/history/series",
		Body:   req,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("bridge history fetch: %w", err)
	}

	return &models.HistoryResult{
		OK:          resp.OK,
		Error:       resp.Error,
		Bars:        resp.Bars,
		FetchedAtMs: resp.FetchedAtMs,
		BrokerID:    c.brokerID,
		AccountID:   c.accountID,
	}, nil
}

// Identity reports the broker account this client is bound to.
func (c *Client) Identity() (string, string) {
	return c.brokerID, c.accountID
}
