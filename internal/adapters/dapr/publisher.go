// Package dapr publishes task events through a Dapr sidecar's HTTP pub/sub
// API and decodes the CloudEvents it delivers back.
package dapr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

type Config struct {
	Endpoint   string // e.g. http://localhost:3500
	PubsubName string
	MaxRetries int           // attempts per event, default 3
	Backoff    time.Duration // first retry delay, doubled each time; default 1s
	Timeout    time.Duration // per request, default 10s
}

// Publisher implements domain.EventPublisher on top of
// POST {endpoint}/v1.0/publish/{pubsub}/{topic}.
type Publisher struct {
	cfg    Config
	client *http.Client
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewPublisher(cfg Config, client *http.Client) *Publisher {
	if cfg.PubsubName == "" {
		cfg.PubsubName = "pubsub"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Publisher{cfg: cfg, client: client, sleep: sleepCtx}
}

func (p *Publisher) publishURL(topic string) string {
	return fmt.Sprintf("%s/v1.0/publish/%s/%s", p.cfg.Endpoint, url.PathEscape(p.cfg.PubsubName), url.PathEscape(topic))
}

func (p *Publisher) Publish(ctx context.Context, topic string, ev domain.TaskEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.EventID, err)
	}

	log := observability.LoggerFromContext(ctx).With(
		"topic", topic,
		"event_id", ev.EventID,
		"event_type", ev.EventType,
	)
	target := p.publishURL(topic)

	var lastErr error
	delay := p.cfg.Backoff
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		lastErr = p.post(ctx, target, body)
		if lastErr == nil {
			log.Debug("event published", "attempt", attempt)
			return nil
		}
		log.Warn("publish attempt failed", "attempt", attempt, "error", lastErr)

		if attempt == p.cfg.MaxRetries {
			break
		}
		if err := p.sleep(ctx, delay); err != nil {
			return fmt.Errorf("publish %s to %s: %w", ev.EventID, topic, err)
		}
		delay *= 2
	}
	return fmt.Errorf("publish %s to %s after %d attempts: %w", ev.EventID, topic, p.cfg.MaxRetries, lastErr)
}

func (p *Publisher) post(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("dapr returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
