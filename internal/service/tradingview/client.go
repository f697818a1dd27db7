package tradingview

import (
	"context"
	"fmt"
	"time"

	"MarketRelay/internal/service/normalize"
	apphttp "MarketRelay/pkg/http"
)

const DefaultURL = "https://scanner.tradingview.com/global/scan"

// Filter is one scanner filter clause.
type Filter struct {
	Left      string   `json:"left"`
	Operation string   `json:"operation"`
	Right     []string `json:"right"`
}

type Sort struct {
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

type Options struct {
	Lang string `json:"lang"`
}

// ScanRequest is the scanner POST body.
type ScanRequest struct {
	Filter  []Filter `json:"filter"`
	Options Options  `json:"options"`
	Range   [2]int   `json:"range"`
	Sort    Sort     `json:"sort"`
	Columns []string `json:"columns"`
}

type scanRow struct {
	S string        `json:"s"`
	D []interface{} `json:"d"`
}

type scanResponse struct {
	TotalCount int       `json:"totalCount"`
	Data       []scanRow `json:"data"`
}

// Client talks to the TradingView screener endpoint.
type Client struct {
	http *apphttp.Client
	url  string
}

// NewClient builds a scanner client. A non-empty session is forwarded as the
// Cookie header.
func NewClient(url, session string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url: url,
		http: apphttp.NewClient(
			apphttp.WithTimeout(timeout),
			apphttp.WithHeader("User-Agent", "Mozilla/5.0"),
			apphttp.WithHeader("Accept", "application/json, text/plain, */*"),
			apphttp.WithHeader("Accept-Language", "tr-TR,tr;q=0.9,en-US;q=0.8"),
			apphttp.WithHeader("Cookie", session),
		),
	}
}

// Scan posts req and returns one map per row: the request columns keyed by
// name plus "symbol" holding the scanner ticker.
func (c *Client) Scan(ctx context.Context, req ScanRequest) ([]map[string]interface{}, error) {
	var resp scanResponse
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodPost,
		URL:    c.url,
		Body:   req,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("tradingview scan: %w", err)
	}

	rows := make([]map[string]interface{}, 0, len(resp.Data))
	for _, r := range resp.Data {
		row := normalize.Columns(req.Columns, r.D)
		row["symbol"] = r.S
		rows = append(rows, row)
	}
	return rows, nil
}
