package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"submux/internal/config"
)

const userAgent = "submux/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventTest         Event = "test"
)

// Payload carries event fields such as user, mode, file, duration, and error.
type Payload map[string]string

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventJobCompleted: cfg.Notifications.JobCompleted,
			EventJobFailed:    cfg.Notifications.JobFailed,
			EventTest:         true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	if !n.enabled[event] {
		return nil
	}
	data, ok := format(event, fields)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, data)
}

func format(event Event, fields Payload) (payload, bool) {
	get := func(key string) string { return strings.TrimSpace(fields[key]) }
	switch event {
	case EventJobCompleted:
		message := fmt.Sprintf("✅ %s finished for user %s: %s", modeLabel(get("mode")), get("user"), get("file"))
		if d := get("duration"); d != "" {
			message += fmt.Sprintf(" (%s)", d)
		}
		return payload{
			title:   "submux - Job Complete",
			message: message,
			tags:    []string{"submux", get("mode"), "completed"},
		}, true
	case EventJobFailed:
		reason := get("error")
		if reason == "" {
			reason = "unknown"
		}
		return payload{
			title:    "submux - Job Failed",
			message:  fmt.Sprintf("❌ %s failed for user %s: %s", modeLabel(get("mode")), get("user"), reason),
			tags:     []string{"submux", get("mode"), "error"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "submux - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"submux", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func modeLabel(mode string) string {
	switch mode {
	case "softmux":
		return "Softmux"
	case "hardmux":
		return "Hardmux"
	case "extract":
		return "Subtitle extraction"
	default:
		return "Job"
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
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
	tags := make([]string, 0, len(data.tags))
	for _, tag := range data.tags {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
