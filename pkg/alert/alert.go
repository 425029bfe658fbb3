// Package alert notifies external channels about calculations with a wide
// MAX/MIN spread.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/elonfeng/nbscore/internal/store"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	CalculationID string    `json:"calculation_id"`
	Kind          string    `json:"type"`
	Input         string    `json:"input"`
	Category      string    `json:"category"`
	Bit           float64   `json:"bit"`
	NBMax         float64   `json:"nb_max"`
	NBMin         float64   `json:"nb_min"`
	Difference    float64   `json:"difference"`
	Timestamp     time.Time `json:"timestamp"`
}

// FromCalculation builds a spread notification for c.
func FromCalculation(c *store.Calculation) *Notification {
	return &Notification{
		Title:         fmt.Sprintf("Wide N/B spread: %s", truncate(c.Input, 60)),
		Body:          fmt.Sprintf("MAX %.4f and MIN %.4f differ by %.4f (bit %g).", c.NBMax, c.NBMin, c.Difference, c.Bit),
		CalculationID: c.ID,
		Kind:          c.Kind,
		Input:         c.Input,
		Category:      c.Category,
		Bit:           c.Bit,
		NBMax:         c.NBMax,
		NBMin:         c.NBMin,
		Difference:    c.Difference,
		Timestamp:     c.CreatedAt,
	}
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers     []Notifier
	minDifference float64
}

// NewManager creates a new alert manager. Calculations whose absolute
// difference is below minDifference are not broadcast.
func NewManager(notifiers []Notifier, minDifference float64) *Manager {
	return &Manager{notifiers: notifiers, minDifference: minDifference}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// ShouldNotify reports whether c is wide enough to alert on.
func (m *Manager) ShouldNotify(c *store.Calculation) bool {
	return m.HasNotifiers() && math.Abs(c.Difference) >= m.minDifference
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, header http.Header) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
