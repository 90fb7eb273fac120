package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/solvane/phonefleet-console/pkg/models"
	"github.com/solvane/phonefleet-console/pkg/recon"
)

// UpdateNotifier fans a "merged phone view changed" signal out to every open
// SSE stream. The feed state and the list caches both call Notify; the signal
// carries no payload, streams re-merge and re-send on wake.
type UpdateNotifier struct {
	subscribers map[chan struct{}]struct{}
	mu          sync.RWMutex
}

func NewUpdateNotifier() *UpdateNotifier {
	return &UpdateNotifier{
		subscribers: make(map[chan struct{}]struct{}),
	}
}

// Subscribe registers a stream. The returned channel holds at most one
// pending signal; consecutive changes before the stream wakes coalesce.
func (un *UpdateNotifier) Subscribe() chan struct{} {
	un.mu.Lock()
	defer un.mu.Unlock()
	ch := make(chan struct{}, 1)
	un.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe drops the stream and closes its channel.
func (un *UpdateNotifier) Unsubscribe(ch chan struct{}) {
	un.mu.Lock()
	defer un.mu.Unlock()
	delete(un.subscribers, ch)
	close(ch)
}

// Notify wakes every subscribed stream without blocking on slow ones.
func (un *UpdateNotifier) Notify() {
	un.mu.RLock()
	defer un.mu.RUnlock()
	for ch := range un.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			// a signal is already pending for this stream
		}
	}
}

// PhonesResponse is the merged phone view plus the feed link indicator so
// the UI can tell confirmed-offline apart from link-down-unknown.
type PhonesResponse struct {
	Phones        []models.PhoneWithStatus `json:"phones"`
	FeedConnected bool                     `json:"feed_connected"`
}

// mergedPhones builds the reconciled view: cached REST records merged with
// the live status snapshot.
func (wr *WebRouter) mergedPhones(ctx context.Context) (PhonesResponse, error) {
	phones, err := wr.lists.Phones(ctx)
	if err != nil {
		return PhonesResponse{}, err
	}
	live, connected := wr.feedState.Snapshot()
	return PhonesResponse{
		Phones:        recon.Merge(phones, live),
		FeedConnected: connected,
	}, nil
}

// SSE endpoint for live phone view updates
func (wr *WebRouter) phonesSSE(w http.ResponseWriter, r *http.Request) {
	if !wr.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if wr.Notifier == nil {
		slog.Warn("SSE endpoint called but UpdateNotifier is nil")
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	notifyCh := wr.Notifier.Subscribe()
	defer wr.Notifier.Unsubscribe(notifyCh)

	ctx := r.Context()

	ticker := time.NewTicker(30 * time.Second) // Heartbeat to keep connection alive
	defer ticker.Stop()

	sendPhonesUpdate := func() error {
		resp, err := wr.mergedPhones(ctx)
		if err != nil {
			return err
		}
		buf, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: phones-update\ndata: %s\n\n", buf); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// Send initial data
	if err := sendPhonesUpdate(); err != nil {
		slog.Error("error sending initial SSE data", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-notifyCh:
			if err := sendPhonesUpdate(); err != nil {
				slog.Error("error sending SSE update", "error", err)
				return
			}
		case <-ticker.C:
			// Send heartbeat comment to keep connection alive
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
