package dom

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Page is the live browser tab. It implements Snapshotter and the raw
// pointer/keyboard surface the anti-detection engine drives.
type Page struct {
	ctx    context.Context
	events *Notifier
}

// NewPage wraps an active chromedp context
func NewPage(ctx context.Context, events *Notifier) *Page {
	return &Page{ctx: ctx, events: events}
}

// Watch pumps the change notifier on navigation and lifecycle events.
// Call once after the browser context is up.
func (p *Page) Watch() {
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		switch ev.(type) {
		case *page.EventFrameNavigated, *page.EventLifecycleEvent:
			p.events.Notify()
		}
	})
}

// Snapshot captures and parses the current page HTML
func (p *Page) Snapshot(ctx context.Context) (*Document, error) {
	var html string
	if err := chromedp.Run(p.ctx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}
	return Parse(html)
}

// Location returns the current page URL
func (p *Page) Location(ctx context.Context) (string, error) {
	var url string
	if err := chromedp.Run(p.ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Navigate loads a URL in the tab
func (p *Page) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(p.ctx, chromedp.Navigate(url))
}

type rect struct {
	Found bool    `json:"found"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Center returns the viewport center of the first element matching selector
func (p *Page) Center(ctx context.Context, selector string) (float64, float64, bool, error) {
	js := fmt.Sprintf(`(function() {
		const el = document.querySelector(%q);
		if (!el) return {found: false, x: 0, y: 0};
		const r = el.getBoundingClientRect();
		return {found: true, x: r.left + r.width / 2, y: r.top + r.height / 2};
	})()`, selector)

	var r rect
	if err := chromedp.Run(p.ctx, chromedp.Evaluate(js, &r)); err != nil {
		return 0, 0, false, err
	}
	return r.X, r.Y, r.Found, nil
}

// MouseMove dispatches a raw mousemove at viewport coordinates
func (p *Page) MouseMove(ctx context.Context, x, y float64) error {
	return chromedp.Run(p.ctx, input.DispatchMouseEvent(input.MouseMoved, x, y))
}

// MousePress dispatches a left-button mousedown
func (p *Page) MousePress(ctx context.Context, x, y float64) error {
	return chromedp.Run(p.ctx,
		input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).
			WithClickCount(1),
	)
}

// MouseRelease dispatches a left-button mouseup, completing the click
func (p *Page) MouseRelease(ctx context.Context, x, y float64) error {
	return chromedp.Run(p.ctx,
		input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).
			WithClickCount(1),
	)
}

// Focus gives keyboard focus to the first element matching selector
func (p *Page) Focus(ctx context.Context, selector string) error {
	return chromedp.Run(p.ctx, chromedp.Focus(selector, chromedp.ByQuery))
}

// Type sends keystrokes to the focused element via real key events
func (p *Page) Type(ctx context.Context, selector, text string) error {
	return chromedp.Run(p.ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// FireChange dispatches input and change events on the element, which
// framework-bound inputs need before they pick up a new value
func (p *Page) FireChange(ctx context.Context, selector string) error {
	js := fmt.Sprintf(`(function() {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, selector)

	var ok bool
	return chromedp.Run(p.ctx, chromedp.Evaluate(js, &ok))
}
