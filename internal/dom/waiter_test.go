package dom

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu   sync.Mutex
	html string
}

func (f *fakeSource) set(html string) {
	f.mu.Lock()
	f.html = html
	f.mu.Unlock()
}

func (f *fakeSource) Snapshot(ctx context.Context) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Parse(f.html)
}

func TestWaitForImmediateHit(t *testing.T) {
	src := &fakeSource{html: `<html><body><button id="go">Go</button></body></html>`}
	w := NewWaiter(src, NewNotifier())

	sel := w.WaitFor(context.Background(), "#go", 100*time.Millisecond)
	if sel == nil {
		t.Fatal("expected immediate hit for an existing element")
	}
}

func TestWaitForWakesOnNotify(t *testing.T) {
	src := &fakeSource{html: `<html><body></body></html>`}
	events := NewNotifier()
	w := NewWaiter(src, events)

	go func() {
		time.Sleep(20 * time.Millisecond)
		src.set(`<html><body><button id="go">Go</button></body></html>`)
		events.Notify()
	}()

	start := time.Now()
	sel := w.WaitFor(context.Background(), "#go", 5*time.Second)
	if sel == nil {
		t.Fatal("expected hit after notification")
	}
	// Woke well before the poll interval, so the notification did the work
	if time.Since(start) > 400*time.Millisecond {
		t.Errorf("took %v, expected wake from notify not poll", time.Since(start))
	}
}

func TestWaitForTimeout(t *testing.T) {
	src := &fakeSource{html: `<html><body></body></html>`}
	w := NewWaiter(src, NewNotifier())

	sel := w.WaitFor(context.Background(), "#never", 50*time.Millisecond)
	if sel != nil {
		t.Error("expected nil at timeout")
	}
}

func TestWaitForContextCancel(t *testing.T) {
	src := &fakeSource{html: `<html><body></body></html>`}
	w := NewWaiter(src, NewNotifier())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	sel := w.WaitFor(ctx, "#never", 10*time.Second)
	if sel != nil {
		t.Error("expected nil on cancellation")
	}
}

func TestWaitForChainFallback(t *testing.T) {
	src := &fakeSource{html: `<html><body><div class="backup">here</div></body></html>`}
	w := NewWaiter(src, NewNotifier())

	sel := w.WaitForChain(context.Background(), []string{"#primary", ".backup"}, 100*time.Millisecond)
	if sel == nil {
		t.Fatal("expected the fallback selector to resolve")
	}
	if sel.Text() != "here" {
		t.Errorf("resolved text = %q", sel.Text())
	}
}

func TestWaitForReleasesSubscription(t *testing.T) {
	src := &fakeSource{html: `<html><body></body></html>`}
	events := NewNotifier()
	w := NewWaiter(src, events)

	w.WaitFor(context.Background(), "#never", 20*time.Millisecond)

	events.mu.Lock()
	remaining := len(events.subs)
	events.mu.Unlock()
	if remaining != 0 {
		t.Errorf("%d subscriptions leaked after timeout", remaining)
	}
}

func TestNotifierCoalesces(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe()
	defer cancel()

	n.Notify()
	n.Notify()
	n.Notify()

	<-ch
	select {
	case <-ch:
		t.Error("notifications queued instead of coalescing")
	default:
	}
}

func TestDocumentFirstChainOrder(t *testing.T) {
	d := MustParse(`<html><body>
		<span class="a">first</span>
		<span class="b">second</span>
	</body></html>`)

	sel := d.First([]string{".b", ".a"})
	if sel == nil || sel.Text() != "second" {
		t.Errorf("chain must resolve in order, got %v", sel)
	}
	if d.First([]string{".nope", ".missing"}) != nil {
		t.Error("expected nil for an all-miss chain")
	}
}

func TestCleanText(t *testing.T) {
	if got := CleanText("  hello \n\t world  "); got != "hello world" {
		t.Errorf("CleanText = %q", got)
	}
	if got := CleanText(""); got != "" {
		t.Errorf("CleanText empty = %q", got)
	}
}
