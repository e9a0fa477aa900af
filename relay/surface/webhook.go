package surface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

// WebhookPoster delivers text as {"text": ...} to an incoming-webhook URL
// (the format Slack and most chat webhooks accept).
type WebhookPoster struct {
	url        string
	httpClient *http.Client
}

var _ contractx.Poster = (*WebhookPoster)(nil)

func NewWebhookPoster(rawURL string, timeout time.Duration) (*WebhookPoster, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("webhook url is required")
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookPoster{
		url: rawURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (p *WebhookPoster) Post(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status=%d", resp.StatusCode)
	}
	return nil
}
