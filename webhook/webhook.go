// Package webhook delivers signed price-change notifications.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventPriceChanged = "price.changed"

	// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
	SignatureHeader = "X-Pricewatch-Signature"
)

// Event is the payload sent to webhook endpoints.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	ProductID int64  `json:"product_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// PriceChange is the Data of a price.changed event.
type PriceChange struct {
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	OldPrice float64 `json:"old_price"`
	NewPrice float64 `json:"new_price"`
}

// NewPriceChanged builds a price.changed event with a fresh ID.
func NewPriceChanged(productID int64, change PriceChange) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      EventPriceChanged,
		ProductID: productID,
		Timestamp: time.Now().Unix(),
		Data:      change,
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notifier posts events to one endpoint. A Notifier with an empty URL
// drops every event.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	// stopping ends retry waits; abort cancels requests still in flight.
	stopping chan struct{}
	base     context.Context
	abort    context.CancelFunc
}

// NewNotifier creates a Notifier retrying after 1s, 5s and 30s.
func NewNotifier(url, secret string) *Notifier {
	base, abort := context.WithCancel(context.Background())
	return &Notifier{
		url:      url,
		secret:   secret,
		client:   &http.Client{Timeout: 10 * time.Second},
		delays:   []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second},
		stopping: make(chan struct{}),
		base:     base,
		abort:    abort,
	}
}

func (n *Notifier) Enabled() bool { return n != nil && n.url != "" }

// Deliver sends event once.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Pricewatch-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notify delivers event in the background, retrying on failure. Events
// arriving after Shutdown are dropped.
func (n *Notifier) Notify(event *Event) {
	if !n.Enabled() {
		return
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		slog.Warn("webhook dropped: notifier shutting down", "event", event.Type, "id", event.ID)
		return
	}
	n.wg.Add(1)
	n.mu.Unlock()
	go func() {
		defer n.wg.Done()
		for attempt, delay := range n.delays {
			if delay > 0 && !n.wait(delay) {
				slog.Warn("webhook retries abandoned on shutdown",
					"event", event.Type, "id", event.ID, "attempts", attempt)
				return
			}
			ctx, cancel := context.WithTimeout(n.base, 10*time.Second)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"event", event.Type, "id", event.ID, "product_id", event.ProductID, "attempt", attempt+1)
				return
			}
			slog.Warn("webhook delivery failed",
				"event", event.Type, "id", event.ID, "attempt", attempt+1, "error", err)
		}
		slog.Error("webhook delivery exhausted all retries", "event", event.Type, "id", event.ID)
	}()
}

// wait sleeps for d and reports false if shutdown began first.
func (n *Notifier) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-n.stopping:
		return false
	case <-t.C:
		return true
	}
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Shutdown stops pending retries and waits for deliveries already on the
// wire. When ctx expires first, those requests are aborted.
func (n *Notifier) Shutdown(ctx context.Context) error {
	if n == nil || n.stopping == nil {
		return nil
	}
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.stopping)
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.abort()
		return nil
	case <-ctx.Done():
		n.abort()
		<-done
		return ctx.Err()
	}
}
