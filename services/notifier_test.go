package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"securedocs/logger"
	"securedocs/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierDeliversQueuedEvent(t *testing.T) {
	var (
		mu       sync.Mutex
		received []WebhookEvent
	)
	done := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var evt WebhookEvent
		_ = json.Unmarshal(body, &evt)
		mu.Lock()
		received = append(received, evt)
		mu.Unlock()
		assert.Equal(t, EventFileCreated, r.Header.Get("X-Webhook-Event"))
		w.WriteHeader(http.StatusNoContent)
		done <- struct{}{}
	}))
	defer server.Close()

	queue := repositories.NewMemoryNotificationQueue(8)
	notifier := NewWebhookNotifier(queue, WebhookOptions{URL: server.URL, Timeout: time.Second, MaxAttempts: 2})
	notifier.pollTimeout = 20 * time.Millisecond

	notifier.Notify(context.Background(), EventFileCreated, map[string]interface{}{"id": 9})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = notifier.Run(ctx)
		close(stopped)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("webhook was not delivered")
	}
	cancel()
	<-stopped

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.JSONEq(t, `{"id":9}`, string(received[0].Payload))
}

func TestWebhookNotifierRequeuesFailedDelivery(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var logs bytes.Buffer
	logger.SetOutput(&logs)
	defer logger.SetOutput(os.Stderr)

	queue := repositories.NewMemoryNotificationQueue(8)
	notifier := NewWebhookNotifier(queue, WebhookOptions{
		URL:         server.URL,
		Timeout:     time.Second,
		MaxAttempts: 2,
		RetryDelay:  50 * time.Millisecond,
	})

	data, err := json.Marshal(WebhookEvent{Event: EventFileCreated, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	failedAt := time.Now()
	notifier.handle(context.Background(), data)
	require.Equal(t, 1, queue.Len(), "first failure should requeue")

	requeued, err := queue.Pop(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	var evt WebhookEvent
	require.NoError(t, json.Unmarshal(requeued, &evt))
	assert.Equal(t, 1, evt.Attempt)
	assert.False(t, evt.NotBefore.Before(failedAt.Add(50*time.Millisecond)), "retry must be delayed")

	notifier.handle(context.Background(), requeued)
	assert.False(t, time.Now().Before(evt.NotBefore), "retry delivered before its delay elapsed")
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, queue.Len(), "second failure reaches max attempts and is dropped")
	assert.Contains(t, logs.String(), `"event":"file.created"`)
}

func TestWebhookNotifierBackoffDoublesUpToCap(t *testing.T) {
	notifier := NewWebhookNotifier(repositories.NewMemoryNotificationQueue(1), WebhookOptions{RetryDelay: time.Second})

	assert.Equal(t, time.Second, notifier.backoff(1))
	assert.Equal(t, 2*time.Second, notifier.backoff(2))
	assert.Equal(t, 8*time.Second, notifier.backoff(4))
	assert.Equal(t, notifyMaxRetryDelay, notifier.backoff(30))
}

func TestWebhookNotifierKeepsDelayedEventOnShutdown(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	queue := repositories.NewMemoryNotificationQueue(8)
	notifier := NewWebhookNotifier(queue, WebhookOptions{URL: server.URL, MaxAttempts: 3})

	data, err := json.Marshal(WebhookEvent{
		Event:     EventFileCreated,
		Payload:   json.RawMessage(`{}`),
		Attempt:   1,
		NotBefore: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	notifier.handle(ctx, data)

	assert.Equal(t, int32(0), calls.Load())
	require.Equal(t, 1, queue.Len())
	kept, err := queue.Pop(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	var evt WebhookEvent
	require.NoError(t, json.Unmarshal(kept, &evt))
	assert.Equal(t, 1, evt.Attempt)
}

type failingQueue struct{}

func (failingQueue) Push(context.Context, []byte) error { return repositories.ErrQueueFull }

func (failingQueue) Pop(context.Context, time.Duration) ([]byte, error) { return nil, nil }

func TestWebhookNotifierSwallowsQueueErrors(t *testing.T) {
	notifier := NewWebhookNotifier(failingQueue{}, WebhookOptions{})
	notifier.Notify(context.Background(), EventFileCreated, map[string]int{"id": 1})

	var nilNotifier *WebhookNotifier
	nilNotifier.Notify(context.Background(), EventFileCreated, nil)
}
