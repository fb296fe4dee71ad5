// Package markets fetches auxiliary finance data from external providers and
// decides, per query, which providers to call.
package markets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Signal names one external finance-data feed.
type Signal string

const (
	SignalNews     Signal = "news"
	SignalEquities Signal = "equities"
	SignalIntraday Signal = "intradaySeries"
	SignalMetals   Signal = "metals"
	SignalCrypto   Signal = "crypto"
)

// AllSignals fixes the reporting order of signals in prompts and logs.
var AllSignals = []Signal{SignalNews, SignalEquities, SignalIntraday, SignalMetals, SignalCrypto}

// Fetcher retrieves one signal's raw provider payload for a user query.
type Fetcher interface {
	Fetch(ctx context.Context, signal Signal, query string) (string, error)
}

type endpoint struct {
	url    string
	host   string
	params map[string]string
	// queryParam is the parameter that carries the user's query; empty means
	// the provider does not take one.
	queryParam string
}

// Client calls RapidAPI-hosted finance providers. Every call is an HTTP GET
// authenticated with the shared API key plus the provider's host header, with
// the user query attached as each provider's search parameter. The response
// body is kept as an opaque JSON string.
type Client struct {
	apiKey    string
	client    *http.Client
	endpoints map[Signal]endpoint
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		endpoints: map[Signal]endpoint{
			SignalNews: {
				url:        "https://google-news13.p.rapidapi.com/business",
				host:       "google-news13.p.rapidapi.com",
				params:     map[string]string{"lang": "en"},
				queryParam: "q",
			},
			SignalEquities: {
				url:        "https://yahoo-finance15.p.rapidapi.com/api/v1/markets/stock/quotes",
				host:       "yahoo-finance15.p.rapidapi.com",
				queryParam: "q",
			},
			SignalIntraday: {
				url:        "https://alpha-vantage.p.rapidapi.com/query",
				host:       "alpha-vantage.p.rapidapi.com",
				params:     map[string]string{"function": "TIME_SERIES_INTRADAY", "interval": "5min"},
				queryParam: "symbol",
			},
			SignalMetals: {
				url:        "https://live-metal-prices.p.rapidapi.com/v1/latest/XAU,XAG,PA,PL,GBP,EUR/EUR",
				host:       "live-metal-prices.p.rapidapi.com",
				queryParam: "metal",
			},
			SignalCrypto: {
				url:        "https://coinranking1.p.rapidapi.com/stats",
				host:       "coinranking1.p.rapidapi.com",
				queryParam: "search",
			},
		},
	}
}

// SetEndpoint overrides one provider's URL, host header, and query parameter.
func (c *Client) SetEndpoint(signal Signal, url, host, queryParam string) {
	c.endpoints[signal] = endpoint{url: url, host: host, queryParam: queryParam}
}

func (c *Client) Fetch(ctx context.Context, signal Signal, query string) (string, error) {
	ep, ok := c.endpoints[signal]
	if !ok {
		return "", fmt.Errorf("no endpoint configured for signal %s", signal)
	}

	target, err := url.Parse(ep.url)
	if err != nil {
		return "", fmt.Errorf("parse %s endpoint: %w", signal, err)
	}
	values := target.Query()
	for key, value := range ep.params {
		values.Set(key, value)
	}
	if ep.queryParam != "" {
		values.Set(ep.queryParam, query)
	}
	target.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", signal, err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", ep.host)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call %s provider: %w", signal, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s response: %w", signal, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s provider returned status %s", signal, resp.Status)
	}

	if !json.Valid(data) {
		return "", fmt.Errorf("%s provider returned malformed JSON", signal)
	}

	return string(data), nil
}

var _ Fetcher = (*Client)(nil)
