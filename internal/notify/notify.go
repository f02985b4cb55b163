// Package notify delivers review lifecycle events to interested systems.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/ozark-survey/cavedb/internal/model"
)

// EventKind identifies the lifecycle transition an event describes.
type EventKind string

const (
	EventSubmitted EventKind = "request_submitted"
	EventApproved  EventKind = "request_approved"
	EventRejected  EventKind = "request_rejected"
)

// Event is a single review lifecycle notification.
type Event struct {
	Kind        EventKind           `json:"kind"`
	RequestID   uuid.UUID           `json:"request_id"`
	CaveID      *uuid.UUID          `json:"cave_id,omitempty"`
	AccountID   uuid.UUID           `json:"account_id"`
	ActorID     uuid.UUID           `json:"actor_id"`
	Status      model.RequestStatus `json:"status"`
	Notes       string              `json:"notes,omitempty"`
	RecordCount int                 `json:"record_count"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// Notifier delivers review events. Delivery is best-effort; callers log and
// continue on error.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Webhook posts each event as JSON to a fixed URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook builds a webhook notifier. An empty URL yields a Nop-equivalent
// notifier that drops events.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) Publish(ctx context.Context, ev Event) error {
	if w.url == "" {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
