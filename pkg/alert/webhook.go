package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook posts the raw notification JSON to a generic endpoint.
type Webhook struct {
	client *http.Client
	url    string
	secret string
}

// NewWebhook creates a new generic webhook notifier. When secret is set,
// requests carry an X-Signature-256 HMAC of the body.
func NewWebhook(url, secret string) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		secret: secret,
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	header := http.Header{}
	header.Set("User-Agent", "nbscore/1.0")
	if w.secret != "" {
		header.Set("X-Signature-256", Sign(w.secret, body))
	}

	if err := postJSON(ctx, w.client, w.url, json.RawMessage(body), header); err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	return nil
}

// Sign returns the "sha256=<hex>" HMAC signature of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
