package alert

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	ts := n.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	embed := map[string]any{
		"title":       n.Title,
		"description": n.Body,
		"color":       0xFF6600,
		"timestamp":   ts.UTC().Format(time.RFC3339),
		"fields": []map[string]any{
			{"name": "MAX", "value": fmt.Sprintf("%.4f", n.NBMax), "inline": true},
			{"name": "MIN", "value": fmt.Sprintf("%.4f", n.NBMin), "inline": true},
			{"name": "Difference", "value": fmt.Sprintf("%.4f", n.Difference), "inline": true},
		},
		"footer": map[string]any{"text": n.Category + " · " + n.CalculationID},
	}

	payload := map[string]any{
		"embeds": []map[string]any{embed},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload, nil); err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	return nil
}
