package profile

import (
	"context"
	"time"

	"github.com/mprichard/swipebot/internal/dom"
	"github.com/mprichard/swipebot/internal/selectors"
)

// Clicker performs a guarded click on a selector
type Clicker interface {
	Click(ctx context.Context, selector string) error
}

// PanelOpener drives the click-and-poll flow that brings up the detailed
// contact panel before extraction
type PanelOpener struct {
	src     dom.Snapshotter
	waiter  *dom.Waiter
	clicker Clicker
	reg     *selectors.Registry
	timeout time.Duration
}

// NewPanelOpener wires the opener. timeout bounds the wait for the panel to
// render after the click.
func NewPanelOpener(src dom.Snapshotter, waiter *dom.Waiter, clicker Clicker, reg *selectors.Registry, timeout time.Duration) *PanelOpener {
	return &PanelOpener{src: src, waiter: waiter, clicker: clicker, reg: reg, timeout: timeout}
}

// OpenAndExtract clicks the profile toggle, waits for the panel, and returns
// the extracted record. A panel that never appears yields a best-effort
// extraction of whatever is on screen rather than an error.
func (o *PanelOpener) OpenAndExtract(ctx context.Context) (*Profile, error) {
	for _, sel := range o.reg.OpenProfile {
		if err := o.clicker.Click(ctx, sel); err == nil {
			break
		}
	}

	o.waiter.WaitForChain(ctx, o.reg.PanelBio, o.timeout)

	doc, err := o.src.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractPanel(doc, o.reg), nil
}
