package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"securedocs/logger"
	"securedocs/repositories"
)

const (
	EventFileCreated = "file.created"

	notifyPushTimeout   = 2 * time.Second
	notifyPollTimeout   = 5 * time.Second
	notifyMaxRetryDelay = time.Minute
)

// Notifier delivers best-effort events. Implementations never fail the
// caller.
type Notifier interface {
	Notify(ctx context.Context, event string, payload interface{})
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, interface{}) {}

type WebhookEvent struct {
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
	Attempt    int             `json:"attempt"`
	// NotBefore delays a retried delivery.
	NotBefore time.Time `json:"not_before,omitempty"`
}

type WebhookOptions struct {
	URL         string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

type WebhookNotifier struct {
	queue       repositories.NotificationQueue
	url         string
	client      *http.Client
	maxAttempts int
	retryDelay  time.Duration
	pollTimeout time.Duration
	now         func() time.Time
}

func NewWebhookNotifier(queue repositories.NotificationQueue, opts WebhookOptions) *WebhookNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &WebhookNotifier{
		queue:       queue,
		url:         opts.URL,
		client:      &http.Client{Timeout: opts.Timeout},
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		pollTimeout: notifyPollTimeout,
		now:         time.Now,
	}
}

// Notify enqueues the event and returns. Queue failures are logged.
func (n *WebhookNotifier) Notify(ctx context.Context, event string, payload interface{}) {
	if n == nil || n.queue == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Warnf("webhook %s: encode payload: %v", event, err)
		return
	}
	data, err := json.Marshal(WebhookEvent{Event: event, Payload: raw, OccurredAt: time.Now().UTC()})
	if err != nil {
		logger.Warnf("webhook %s: encode event: %v", event, err)
		return
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyPushTimeout)
	defer cancel()
	if err := n.queue.Push(pushCtx, data); err != nil {
		logger.Warnf("webhook %s: enqueue failed: %v", event, err)
	}
}

// Run delivers queued events until ctx is cancelled.
func (n *WebhookNotifier) Run(ctx context.Context) error {
	logger.Infof("webhook worker started")
	for {
		if ctx.Err() != nil {
			logger.Infof("webhook worker stopped")
			return nil
		}
		data, err := n.queue.Pop(ctx, n.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Warnf("webhook queue pop failed: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if data == nil {
			continue
		}
		n.handle(ctx, data)
	}
}

func (n *WebhookNotifier) handle(ctx context.Context, data []byte) {
	var evt WebhookEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		logger.Warnf("webhook: dropping malformed event: %v", err)
		return
	}
	log := logger.With("event", evt.Event)
	if n.url == "" {
		log.Debug().Msg("webhook: no endpoint configured, dropping event")
		return
	}
	if wait := evt.NotBefore.Sub(n.now()); wait > 0 {
		select {
		case <-ctx.Done():
			n.requeue(context.WithoutCancel(ctx), evt)
			return
		case <-time.After(wait):
		}
	}

	err := n.deliver(ctx, evt)
	if err == nil {
		return
	}
	evt.Attempt++
	if evt.Attempt >= n.maxAttempts {
		log.Warn().Err(err).Int("attempt", evt.Attempt).Msg("webhook: giving up")
		return
	}
	evt.NotBefore = n.now().Add(n.backoff(evt.Attempt))
	log.Debug().Err(err).Int("attempt", evt.Attempt).Time("not_before", evt.NotBefore).Msg("webhook: delivery failed, requeueing")
	n.requeue(ctx, evt)
}

// backoff doubles the retry delay per failed attempt, capped at a minute.
func (n *WebhookNotifier) backoff(attempt int) time.Duration {
	delay := n.retryDelay
	for i := 1; i < attempt && delay < notifyMaxRetryDelay; i++ {
		delay *= 2
	}
	if delay > notifyMaxRetryDelay {
		delay = notifyMaxRetryDelay
	}
	return delay
}

func (n *WebhookNotifier) requeue(ctx context.Context, evt WebhookEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, notifyPushTimeout)
	defer cancel()
	if err := n.queue.Push(pushCtx, data); err != nil {
		log := logger.With("event", evt.Event)
		log.Warn().Err(err).Msg("webhook: requeue failed")
	}
}

func (n *WebhookNotifier) deliver(ctx context.Context, evt WebhookEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", evt.Event)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
