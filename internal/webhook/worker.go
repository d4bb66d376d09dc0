package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const maxAttempts = 5

// Subscription is one registered terminal-state listener.
type Subscription struct {
	ID        string
	URL       string
	Secret    string
	RateLimit int
	Active    bool
}

// Event is the payload delivered when the executor moves a command to
// EXECUTED or FAILED; REJECTED transitions send no event.
type Event struct {
	DocID     string
	CmdID     string
	Status    string
	ResultText string
	ErrorText  string
	OccurredAt time.Time
}

// SubscriptionSource looks up the active subscriptions interested in an
// event; RepoSubscriptions implements this over the repository's
// WebhookSubscription table.
type SubscriptionSource interface {
	SubscriptionsFor(ctx context.Context, docID string) ([]Subscription, error)
}

type task struct {
	event      Event
	sub        Subscription
	attempt    int
	notBefore  time.Time
}

// Worker delivers Events to every matching Subscription, retrying
// transient failures with exponential backoff, mirroring
// services/escrow-gateway/webhook.go's WebhookWorker.
type Worker struct {
	subs    SubscriptionSource
	client  *http.Client
	limiter *RateLimiter
	logger  *slog.Logger
	now     func() time.Time

	queue chan task
}

func NewWorker(subs SubscriptionSource, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		subs:    subs,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: NewRateLimiter(),
		logger:  logger,
		now:     time.Now,
		queue:   make(chan task, 256),
	}
}

// Notify enqueues delivery attempts for every active subscription
// interested in event's document.
func (w *Worker) Notify(ctx context.Context, event Event) {
	subs, err := w.subs.SubscriptionsFor(ctx, event.DocID)
	if err != nil {
		w.logger.Warn("webhook: list subscriptions failed", "doc_id", event.DocID, "error", err)
		return
	}
	for _, sub := range subs {
		if !sub.Active {
			continue
		}
		select {
		case w.queue <- task{event: event, sub: sub}:
		default:
			w.logger.Warn("webhook: delivery queue full, dropping event", "doc_id", event.DocID, "cmd_id", event.CmdID, "subscription", sub.ID)
		}
	}
}

// Run drains the delivery queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			if !t.notBefore.IsZero() && w.now().Before(t.notBefore) {
				time.Sleep(t.notBefore.Sub(w.now()))
			}
			w.deliver(ctx, t)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, t task) {
	now := w.now()
	if !w.limiter.Allow(t.sub.ID, t.sub.RateLimit, now) {
		t.notBefore = w.limiter.ResetAt(t.sub.ID, now)
		w.requeue(t)
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"docId":      t.event.DocID,
		"cmdId":      t.event.CmdID,
		"status":     t.event.Status,
		"result":     t.event.ResultText,
		"error":      t.event.ErrorText,
		"occurredAt": t.event.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		w.logger.Error("webhook: marshal event failed", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.sub.URL, bytes.NewReader(payload))
	if err != nil {
		w.logger.Error("webhook: build request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signPayload(t.sub.Secret, payload))

	resp, err := w.client.Do(req)
	if err != nil {
		w.retryLater(t, err.Error())
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.retryLater(t, resp.Status)
		return
	}
}

func (w *Worker) retryLater(t task, reason string) {
	attempt := t.attempt + 1
	w.logger.Warn("webhook: delivery failed, will retry", "subscription", t.sub.ID, "attempt", attempt, "reason", reason)
	if attempt >= maxAttempts {
		w.logger.Error("webhook: delivery exhausted retries", "subscription", t.sub.ID, "cmd_id", t.event.CmdID)
		return
	}
	t.attempt = attempt
	t.notBefore = w.now().Add(backoffDuration(attempt))
	w.requeue(t)
}

func (w *Worker) requeue(t task) {
	select {
	case w.queue <- t:
	default:
		w.logger.Warn("webhook: delivery queue full on retry, dropping", "subscription", t.sub.ID, "cmd_id", t.event.CmdID)
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	d := time.Second * time.Duration(1<<uint(attempt-1))
	if d > 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
