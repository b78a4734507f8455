// Package crawler hands crawl requests to an external crawling service
// over a webhook. The trigger is fire-and-forget: acceptance of the
// request is the only guarantee.
package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docintel/docintel/internal/core/domain"
)

type Trigger struct {
	webhookURL string
	httpClient *http.Client
}

func New(webhookURL string) *Trigger {
	return &Trigger{
		webhookURL: strings.TrimSpace(webhookURL),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *Trigger) Configured() bool {
	return t.webhookURL != ""
}

func (t *Trigger) Trigger(ctx context.Context, url string, depth int) error {
	if !t.Configured() {
		return domain.WrapError(domain.ErrNotConfigured, "site crawl", fmt.Errorf("crawler webhook url is empty"))
	}
	if strings.TrimSpace(url) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "site crawl", fmt.Errorf("url is empty"))
	}
	if depth <= 0 {
		depth = 1
	}

	body, err := json.Marshal(map[string]any{
		"url":   url,
		"depth": depth,
	})
	if err != nil {
		return fmt.Errorf("marshal crawl request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create crawl request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crawl webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(respBody)); msg != "" {
			return fmt.Errorf("crawl webhook status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("crawl webhook status: %s", resp.Status)
	}
	return nil
}
