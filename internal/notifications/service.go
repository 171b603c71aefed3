// Package notifications pushes pipeline progress to ntfy when a topic is
// configured and is silent otherwise.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"songreel/internal/config"
)

const userAgent = "Songreel/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifySongStarted(ctx context.Context, title, artist string) error
	NotifySongCompleted(ctx context.Context, title, artist, videoURL string) error
	NotifySongFailed(ctx context.Context, title, artist, reason string) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
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

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		songs:       cfg.Notifications.Songs,
		queue:       cfg.Notifications.Queue,
		errorAlerts: cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	songs       bool
	queue       bool
	errorAlerts bool
}

func (n *ntfyService) NotifySongStarted(ctx context.Context, title, artist string) error {
	if !n.songs {
		return nil
	}
	data := payload{
		title:   "Songreel - Started",
		message: fmt.Sprintf("🎵 Generating video: %s by %s", strings.TrimSpace(title), strings.TrimSpace(artist)),
		tags:    []string{"songreel", "song", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySongCompleted(ctx context.Context, title, artist, videoURL string) error {
	if !n.songs {
		return nil
	}
	message := fmt.Sprintf("✅ Video ready: %s by %s", strings.TrimSpace(title), strings.TrimSpace(artist))
	if videoURL = strings.TrimSpace(videoURL); videoURL != "" {
		message = fmt.Sprintf("%s\n%s", message, videoURL)
	}
	data := payload{
		title:    "Songreel - Complete",
		message:  message,
		tags:     []string{"songreel", "song", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySongFailed(ctx context.Context, title, artist, reason string) error {
	if !n.songs {
		return nil
	}
	message := fmt.Sprintf("❌ Video failed: %s by %s", strings.TrimSpace(title), strings.TrimSpace(artist))
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s\n%s", message, reason)
	}
	data := payload{
		title:    "Songreel - Failed",
		message:  message,
		tags:     []string{"songreel", "song", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.queue {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "Songreel - Cycle Complete"
		message = fmt.Sprintf("Poll cycle complete: %d songs processed in %s", processed, duration)
	} else {
		title = "Songreel - Cycle Complete (with errors)"
		message = fmt.Sprintf("Poll cycle complete: %d succeeded, %d failed in %s", processed, failed, duration)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"songreel", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errorAlerts {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Songreel - Error",
		message:  builder.String(),
		tags:     []string{"songreel", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Songreel - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"songreel", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifySongStarted(context.Context, string, string) error             { return nil }
func (noopService) NotifySongCompleted(context.Context, string, string, string) error   { return nil }
func (noopService) NotifySongFailed(context.Context, string, string, string) error      { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
