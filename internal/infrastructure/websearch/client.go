// Package websearch queries the public web through a scraping proxy and
// extracts result snippets from the returned search page HTML.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/docintel/docintel/internal/core/domain"
)

const defaultEndpoint = "https://api.scrapingant.com/v2/general"

type Client struct {
	apiKey     string
	endpoint   string
	maxResults int
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(apiKey, endpoint string, maxResults int) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Client{
		apiKey:     apiKey,
		endpoint:   strings.TrimRight(endpoint, "/"),
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// The proxy plan allows roughly one page fetch per second.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) Search(ctx context.Context, query string) ([]domain.WebResult, error) {
	if !c.Configured() {
		return nil, domain.WrapError(domain.ErrNotConfigured, "web search", fmt.Errorf("search proxy api key is empty"))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target := "https://www.google.com/search?q=" + url.QueryEscape(query)
	reqURL := fmt.Sprintf("%s?url=%s&browser=false", c.endpoint, url.QueryEscape(target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search proxy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("search proxy status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("search proxy status: %s", resp.Status)
	}

	results, err := parseResults(resp.Body, c.maxResults)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	return results, nil
}
