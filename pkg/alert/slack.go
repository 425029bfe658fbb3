package alert

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": n.Title,
			},
		},
		{
			"type": "section",
			"fields": []map[string]any{
				{"type": "mrkdwn", "text": fmt.Sprintf("*MAX:* %.4f", n.NBMax)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*MIN:* %.4f", n.NBMin)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Difference:* %.4f", n.Difference)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Category:* %s", n.Category)},
			},
		},
		{
			"type": "context",
			"elements": []map[string]any{
				{"type": "mrkdwn", "text": fmt.Sprintf("%s | id `%s`", n.Kind, n.CalculationID)},
			},
		},
	}

	if err := postJSON(ctx, s.client, s.webhookURL, map[string]any{"blocks": blocks}, nil); err != nil {
		return fmt.Errorf("send slack webhook: %w", err)
	}
	return nil
}
