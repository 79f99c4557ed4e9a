package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mashup/internal/config"
)

const userAgent = "mashup/0.1.0"

// Event identifies an operator alert.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventTest         Event = "test"
)

// Payload carries event fields. Known keys: jobID, query, detail, artifact.
type Payload map[string]any

// Alerts publishes operator-facing events.
type Alerts interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewAlerts builds an ntfy publisher when a topic is configured.
// When no topic is configured, a noop implementation is returned.
func NewAlerts(cfg *config.Config) Alerts {
	if cfg == nil {
		return noopAlerts{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopAlerts{}
	}
	return &ntfyAlerts{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.NtfyTimeout()},
	}
}

type alert struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyAlerts struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyAlerts) Publish(ctx context.Context, event Event, payload Payload) error {
	data, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, data)
}

func format(event Event, payload Payload) (alert, bool) {
	query := payloadString(payload, "query")
	switch event {
	case EventJobCompleted:
		message := fmt.Sprintf("Mashup ready: %s", query)
		if detail := payloadString(payload, "detail"); detail != "" {
			message = fmt.Sprintf("%s\n%s", message, detail)
		}
		return alert{
			title:   "Mashup - Complete",
			message: message,
			tags:    []string{"mashup", "job", "completed"},
		}, true
	case EventJobFailed:
		message := fmt.Sprintf("Mashup failed: %s", query)
		if detail := payloadString(payload, "detail"); detail != "" {
			message = fmt.Sprintf("%s\n%s", message, detail)
		}
		return alert{
			title:    "Mashup - Failed",
			message:  message,
			tags:     []string{"mashup", "job", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return alert{
			title:    "Mashup - Test",
			message:  "Notification system test",
			tags:     []string{"mashup", "test"},
			priority: "low",
		}, true
	default:
		return alert{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyAlerts) send(ctx context.Context, data alert) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopAlerts struct{}

func (noopAlerts) Publish(context.Context, Event, Payload) error { return nil }
