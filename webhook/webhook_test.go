package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNotify_SignsAndRetries(t *testing.T) {
	var calls atomic.Int32
	got := make(chan Event, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get(SignatureHeader) != Sign("s3cret", body) {
			t.Errorf("bad signature %q", r.Header.Get(SignatureHeader))
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Errorf("decode: %v", err)
		}
		got <- ev
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "s3cret")
	n.delays = []time.Duration{0, 10 * time.Millisecond}

	ev := NewPriceChanged(7, PriceChange{URL: "https://www.flipkart.com/x/p/1", Title: "Phone", OldPrice: 999, NewPrice: 899})
	n.Notify(ev)
	n.Wait()

	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	received := <-got
	if received.ID != ev.ID || received.Type != EventPriceChanged || received.ProductID != 7 {
		t.Errorf("received %+v", received)
	}
	if _, err := uuid.Parse(received.ID); err != nil {
		t.Errorf("event id %q is not a uuid: %v", received.ID, err)
	}
}

func TestNotify_Disabled(t *testing.T) {
	var n *Notifier
	if n.Enabled() {
		t.Error("nil notifier should be disabled")
	}
	NewNotifier("", "").Notify(NewPriceChanged(1, PriceChange{}))
}

func TestSign(t *testing.T) {
	a := Sign("k", []byte("body"))
	if a != Sign("k", []byte("body")) {
		t.Error("Sign should be deterministic")
	}
	if a == Sign("other", []byte("body")) {
		t.Error("different secrets should differ")
	}
	if len(a) != len("sha256=")+64 {
		t.Errorf("unexpected signature length %d", len(a))
	}
}

func TestShutdown_AbandonsPendingRetries(t *testing.T) {
	var calls atomic.Int32
	first := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case first <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "")
	n.delays = []time.Duration{0, time.Hour}
	n.Notify(NewPriceChanged(1, PriceChange{OldPrice: 10, NewPrice: 9}))
	<-first

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	if err := n.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Shutdown took %v, want it to skip the retry wait", elapsed)
	}

	n.Notify(NewPriceChanged(2, PriceChange{OldPrice: 10, NewPrice: 9}))
	n.Wait()
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestShutdown_AbortsInFlightOnDeadline(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "")
	n.delays = []time.Duration{0}
	n.Notify(NewPriceChanged(1, PriceChange{}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := n.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() = %v, want deadline exceeded", err)
	}
}
