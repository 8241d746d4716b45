package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stemsense/internal/config"
	"stemsense/internal/task"
)

const userAgent = "StemSense-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyProcessingStarted(ctx context.Context, item *task.Task) error
	NotifyProcessingCompleted(ctx context.Context, item *task.Task) error
	NotifyProcessingFailed(ctx context.Context, item *task.Task, message string) error
	TestNotification(ctx context.Context) error
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

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:        topic,
		client:          client,
		sendCompletions: cfg.Notifications.Completion,
		sendErrors:      cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint        string
	client          *http.Client
	sendCompletions bool
	sendErrors      bool
}

func (n *ntfyService) NotifyProcessingStarted(ctx context.Context, item *task.Task) error {
	if !n.sendCompletions {
		return nil
	}
	data := payload{
		title:   "StemSense - Processing",
		message: fmt.Sprintf("Started processing: %s", displayName(item)),
		tags:    []string{"stemsense", "task", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProcessingCompleted(ctx context.Context, item *task.Task) error {
	if !n.sendCompletions {
		return nil
	}
	message := fmt.Sprintf("Stems ready: %s", displayName(item))
	if item != nil && strings.TrimSpace(item.ResultFile) != "" {
		message = fmt.Sprintf("%s\nBundle: %s", message, item.ResultFile)
	}
	data := payload{
		title:    "StemSense - Complete",
		message:  message,
		tags:     []string{"stemsense", "task", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProcessingFailed(ctx context.Context, item *task.Task, message string) error {
	if !n.sendErrors {
		return nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "processing failed"
	}
	data := payload{
		title:    "StemSense - Failed",
		message:  fmt.Sprintf("%s: %s", displayName(item), message),
		tags:     []string{"stemsense", "task", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "StemSense - Test",
		message:  "Notification system test",
		tags:     []string{"stemsense", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func displayName(item *task.Task) string {
	if item == nil {
		return "unknown task"
	}
	if name := strings.TrimSpace(item.TrackName); name != "" {
		return name
	}
	if query := strings.TrimSpace(item.Query); query != "" {
		return query
	}
	return item.ID
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

type noopService struct{}

func (noopService) NotifyProcessingStarted(context.Context, *task.Task) error        { return nil }
func (noopService) NotifyProcessingCompleted(context.Context, *task.Task) error      { return nil }
func (noopService) NotifyProcessingFailed(context.Context, *task.Task, string) error { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
