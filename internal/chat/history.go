// Package chat reads the open conversation thread out of a page snapshot.
// Extraction runs a cascade of strategies of decreasing precision; the site's
// markup shifts often enough that a single selector set would break weekly.
package chat

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mprichard/swipebot/internal/dom"
	"github.com/mprichard/swipebot/internal/selectors"
)

// Message is one thread entry. Sender is "me" or "them".
type Message struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

const (
	SenderMe   = "me"
	SenderThem = "them"
)

// chromeStrings are UI labels the last-resort scan must never mistake for a
// message
var chromeStrings = map[string]bool{
	"Send":           true,
	"Type a message": true,
	"GIF":            true,
	"Like":           true,
	"Nope":           true,
	"Matches":        true,
	"Messages":       true,
	"You matched":    true,
}

// ExtractHistory returns the ordered thread. Each strategy runs only if the
// previous one produced zero messages; the first hit short-circuits the rest.
// The result is finite and the call is freely repeatable.
func ExtractHistory(doc *dom.Document, reg *selectors.Registry) []Message {
	strategies := []func(*dom.Document, *selectors.Registry) []Message{
		extractByBubbleClass,
		extractByTestID,
		extractByGenericClass,
		extractByTextScan,
	}

	for _, strat := range strategies {
		if msgs := strat(doc, reg); len(msgs) > 0 {
			return msgs
		}
	}
	return []Message{}
}

// Strategy 1: the site's chat-bubble class with send/receive markers
func extractByBubbleClass(doc *dom.Document, reg *selectors.Registry) []Message {
	var msgs []Message
	doc.Find(strings.Join(reg.ChatBubbles, ", ")).Each(func(_ int, s *goquery.Selection) {
		text := dom.CleanText(s.Text())
		if text == "" {
			return
		}
		msgs = append(msgs, Message{
			Sender:    senderFromClass(s.AttrOr("class", "")),
			Text:      text,
			Timestamp: s.AttrOr("data-timestamp", s.Find("time").AttrOr("datetime", "")),
		})
	})
	return msgs
}

// Strategy 2: data-testid based markup
func extractByTestID(doc *dom.Document, _ *selectors.Registry) []Message {
	var msgs []Message
	doc.Find(`[data-testid="messageText"], [data-testid="message"]`).Each(func(_ int, s *goquery.Selection) {
		text := dom.CleanText(s.Text())
		if text == "" {
			return
		}
		sender := SenderThem
		if s.AttrOr("data-sender", "") == "me" || strings.Contains(s.AttrOr("class", ""), "outgoing") {
			sender = SenderMe
		}
		msgs = append(msgs, Message{
			Sender:    sender,
			Text:      text,
			Timestamp: s.Find("time").AttrOr("datetime", ""),
		})
	})
	return msgs
}

// Strategy 3: generic .message/.chat classes
func extractByGenericClass(doc *dom.Document, _ *selectors.Registry) []Message {
	var msgs []Message
	doc.Find(".message, .chat-message, .chat .msg-text").Each(func(_ int, s *goquery.Selection) {
		text := dom.CleanText(s.Text())
		if text == "" {
			return
		}
		msgs = append(msgs, Message{
			Sender: senderFromClass(s.AttrOr("class", "")),
			Text:   text,
		})
	})
	return msgs
}

// Strategy 4: last resort - scan text-bearing leaves, filter by length bounds
// and exclusion of known UI chrome. Sender is unknowable here; default to
// them so a drafted reply never assumes we spoke last.
func extractByTextScan(doc *dom.Document, _ *selectors.Registry) []Message {
	var msgs []Message
	doc.Find("div, span, p").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		text := dom.CleanText(s.Text())
		if len(text) < 2 || len(text) > 500 {
			return
		}
		if chromeStrings[text] {
			return
		}
		msgs = append(msgs, Message{Sender: SenderThem, Text: text})
	})
	return msgs
}

func senderFromClass(class string) string {
	lower := strings.ToLower(class)
	if strings.Contains(lower, "sent") || strings.Contains(lower, "send") ||
		strings.Contains(lower, "outgoing") ||
		strings.Contains(lower, "right") || strings.Contains(lower, "mine") {
		return SenderMe
	}
	return SenderThem
}
