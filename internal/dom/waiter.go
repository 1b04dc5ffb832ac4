package dom

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Snapshotter provides the current page document
type Snapshotter interface {
	Snapshot(ctx context.Context) (*Document, error)
}

// Waiter resolves a selector against the live page, waking on change
// notifications, with a hard timeout. No retry policy lives here - callers
// own retries.
type Waiter struct {
	src    Snapshotter
	events *Notifier

	// pollInterval is a safety net for changes the notifier misses
	pollInterval time.Duration
}

// NewWaiter creates a waiter over a snapshot source and change notifier
func NewWaiter(src Snapshotter, events *Notifier) *Waiter {
	return &Waiter{src: src, events: events, pollInterval: 500 * time.Millisecond}
}

// WaitFor returns the first node matching selector, or nil once timeout
// elapses. Resolves immediately if the element already exists. The change
// subscription is released on every exit path.
func (w *Waiter) WaitFor(ctx context.Context, selector string, timeout time.Duration) *goquery.Selection {
	return w.WaitForChain(ctx, []string{selector}, timeout)
}

// WaitForChain is WaitFor over an ordered fallback chain
func (w *Waiter) WaitForChain(ctx context.Context, chain []string, timeout time.Duration) *goquery.Selection {
	if sel := w.check(ctx, chain); sel != nil {
		return sel
	}

	wake, cancel := w.events.Subscribe()
	defer cancel()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-wake:
		case <-poll.C:
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return nil
		}

		if sel := w.check(ctx, chain); sel != nil {
			return sel
		}
	}
}

func (w *Waiter) check(ctx context.Context, chain []string) *goquery.Selection {
	doc, err := w.src.Snapshot(ctx)
	if err != nil {
		return nil
	}
	return doc.First(chain)
}
