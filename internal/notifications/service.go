package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pountzas/plix/internal/config"
)

const userAgent = "Plix/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyIngestStarted(ctx context.Context, count int) error
	NotifyFileIdentified(ctx context.Context, title, mediaType string) error
	NotifyIngestCompleted(ctx context.Context, added, updated, skipped, failed int, duration time.Duration) error
	NotifyUnidentifiedMedia(ctx context.Context, filename string) error
	NotifyAuthFailure(ctx context.Context) error
	NotifyError(ctx context.Context, err error, context string) error
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
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		ingest:       cfg.Notifications.Ingest,
		errors:       cfg.Notifications.Errors,
		unidentified: cfg.Notifications.Unidentified,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	ingest       bool
	errors       bool
	unidentified bool
}

func (n *ntfyService) NotifyIngestStarted(ctx context.Context, count int) error {
	if !n.ingest {
		return nil
	}
	data := payload{
		title:   "Plix - Ingest Started",
		message: fmt.Sprintf("Started processing %d files", count),
		tags:    []string{"plix", "ingest", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFileIdentified(ctx context.Context, title, mediaType string) error {
	if !n.ingest {
		return nil
	}
	title = strings.TrimSpace(title)
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		mediaType = "unknown"
	}
	data := payload{
		title:   "Plix - Identified",
		message: fmt.Sprintf("Identified: %s (%s)", title, mediaType),
		tags:    []string{"plix", "identify", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyIngestCompleted(ctx context.Context, added, updated, skipped, failed int, duration time.Duration) error {
	if !n.ingest {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()

	var title, message string
	if failed == 0 {
		title = "Plix - Ingest Complete"
		message = fmt.Sprintf("Ingest complete: %d added, %d updated, %d skipped in %s", added, updated, skipped, durationText)
	} else {
		title = "Plix - Ingest Complete (with errors)"
		message = fmt.Sprintf("Ingest complete: %d added, %d updated, %d skipped, %d failed in %s", added, updated, skipped, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"plix", "ingest", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUnidentifiedMedia(ctx context.Context, filename string) error {
	if !n.unidentified {
		return nil
	}
	filename = strings.TrimSpace(filename)
	data := payload{
		title:   "Plix - Unidentified Media",
		message: fmt.Sprintf("Could not identify: %s\nManual review required", filename),
		tags:    []string{"plix", "unidentified", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAuthFailure(ctx context.Context) error {
	if !n.errors {
		return nil
	}
	data := payload{
		title:    "Plix - Authentication Failed",
		message:  "The metadata API rejected the configured key. Check tmdb.api_key.",
		tags:     []string{"plix", "auth", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
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
		title:    "Plix - Error",
		message:  builder.String(),
		tags:     []string{"plix", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Plix - Test",
		message:  "Notification system test",
		tags:     []string{"plix", "test"},
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

// NewNop returns a Service that drops every notification.
func NewNop() Service {
	return noopService{}
}

type noopService struct{}

func (noopService) NotifyIngestStarted(context.Context, int) error             { return nil }
func (noopService) NotifyFileIdentified(context.Context, string, string) error { return nil }
func (noopService) NotifyIngestCompleted(context.Context, int, int, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyUnidentifiedMedia(context.Context, string) error { return nil }
func (noopService) NotifyAuthFailure(context.Context) error               { return nil }
func (noopService) NotifyError(context.Context, error, string) error      { return nil }
func (noopService) TestNotification(context.Context) error                { return nil }
