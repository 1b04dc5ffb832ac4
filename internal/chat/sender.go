package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mprichard/swipebot/internal/dom"
	"github.com/mprichard/swipebot/internal/selectors"
)

// Typist drives humanized input into the live page
type Typist interface {
	Click(ctx context.Context, selector string) error
	SimulateInput(ctx context.Context, selector, text string) error
}

// Navigator loads conversation pages
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
}

// Sender delivers messages through the conversation view: open the match's
// chat, type into the input, click send
type Sender struct {
	nav     Navigator
	src     dom.Snapshotter
	waiter  *dom.Waiter
	typist  Typist
	reg     *selectors.Registry
	baseURL string
	timeout time.Duration
}

// NewSender wires the DOM sender. timeout bounds each wait for the chat view
// to render.
func NewSender(nav Navigator, src dom.Snapshotter, waiter *dom.Waiter, typist Typist, reg *selectors.Registry, baseURL string) *Sender {
	return &Sender{
		nav:     nav,
		src:     src,
		waiter:  waiter,
		typist:  typist,
		reg:     reg,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 15 * time.Second,
	}
}

// SendMessage opens the conversation for matchID and submits text
func (s *Sender) SendMessage(ctx context.Context, matchID, text string) error {
	if err := s.openConversation(ctx, matchID); err != nil {
		return err
	}

	input := s.resolve(ctx, s.reg.MessageInput)
	if input == "" {
		return fmt.Errorf("message input not found for %s", matchID)
	}
	if err := s.typist.SimulateInput(ctx, input, text); err != nil {
		return fmt.Errorf("failed to type message: %w", err)
	}

	send := s.resolve(ctx, s.reg.SendButton)
	if send == "" {
		return fmt.Errorf("send button not found for %s", matchID)
	}
	if err := s.typist.Click(ctx, send); err != nil {
		return fmt.Errorf("failed to click send: %w", err)
	}
	return nil
}

// openConversation navigates to the match's chat unless it is already open
func (s *Sender) openConversation(ctx context.Context, matchID string) error {
	target := s.baseURL + "/app/messages/" + matchID

	if loc, err := s.nav.Location(ctx); err == nil && strings.HasPrefix(loc, target) {
		return nil
	}
	if err := s.nav.Navigate(ctx, target); err != nil {
		return fmt.Errorf("failed to open conversation %s: %w", matchID, err)
	}

	if s.waiter.WaitForChain(ctx, s.reg.MessageInput, s.timeout) == nil {
		return fmt.Errorf("conversation %s did not load", matchID)
	}
	return nil
}

// resolve returns the first selector in the chain present on the live page
func (s *Sender) resolve(ctx context.Context, chain []string) string {
	doc, err := s.src.Snapshot(ctx)
	if err != nil {
		return ""
	}
	for _, sel := range chain {
		if doc.Find(sel).Length() > 0 {
			return sel
		}
	}
	return ""
}
