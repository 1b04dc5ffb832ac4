// Package queue owns conversation records and the message pipeline: new-match
// detection, FIFO generation jobs, and the human-gated approval flow that
// keeps at most one drafted message in flight at any time.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/mprichard/swipebot/internal/ai"
	"github.com/mprichard/swipebot/internal/dom"
	"github.com/mprichard/swipebot/internal/notify"
	"github.com/mprichard/swipebot/internal/selectors"
	"github.com/mprichard/swipebot/internal/store"
)

// Generator drafts message text; the AI gateway implements it
type Generator interface {
	GetResponse(ctx context.Context, prompt string) (*ai.Reply, error)
	ClearCache()
}

// Sender delivers an approved message into the open conversation
type Sender interface {
	SendMessage(ctx context.Context, matchID, text string) error
}

// Config tunes queue behavior
type Config struct {
	// AutoSend sends followup/meetup drafts without approval
	AutoSend bool
	// AutoMessageOnMatch sends opener drafts without approval
	AutoMessageOnMatch bool
	// SendDelay is how long an entry must age before it is due
	SendDelay time.Duration
	// Tone seeds the prompt's voice for new conversations
	Tone string
}

// Manager coordinates conversations, the job queue, and approvals
type Manager struct {
	store    *store.Store
	gen      Generator
	sender   Sender
	renderer notify.Renderer
	reg      *selectors.Registry
	cfg      Config

	mu            sync.Mutex
	conversations map[string]*Conversation
	queue         []Entry
	pending       *Pending
	// processingBlocked is the safety valve a cancellation sets: no
	// automatic draining until an explicit reset
	processingBlocked bool
	// draining guards against re-entrant drains when timer ticks overlap
	draining bool

	onNewMatch func(conv *Conversation)
	now        func() time.Time
}

// NewManager builds the manager and restores persisted conversations and
// queue entries
func NewManager(st *store.Store, gen Generator, sender Sender, renderer notify.Renderer, reg *selectors.Registry, cfg Config) *Manager {
	m := &Manager{
		store:         st,
		gen:           gen,
		sender:        sender,
		renderer:      renderer,
		reg:           reg,
		cfg:           cfg,
		conversations: make(map[string]*Conversation),
		now:           time.Now,
	}
	m.restore()
	return m
}

// OnNewMatch installs the hook fired for every newly observed match. The
// app uses it to pause swiping while a greeting goes out.
func (m *Manager) OnNewMatch(fn func(conv *Conversation)) {
	m.mu.Lock()
	m.onNewMatch = fn
	m.mu.Unlock()
}

func (m *Manager) restore() {
	if _, err := m.store.Get(store.KeyActiveConversations, &m.conversations); err != nil {
		log.Printf("[queue] failed to restore conversations: %v", err)
	}
	if m.conversations == nil {
		m.conversations = make(map[string]*Conversation)
	}
	if _, err := m.store.Get(store.KeyMessageQueue, &m.queue); err != nil {
		log.Printf("[queue] failed to restore queue: %v", err)
	}
}

func (m *Manager) persistLocked() {
	if err := m.store.Set(store.KeyActiveConversations, m.conversations); err != nil {
		log.Printf("[queue] failed to persist conversations: %v", err)
	}
	if err := m.store.Set(store.KeyMessageQueue, m.queue); err != nil {
		log.Printf("[queue] failed to persist queue: %v", err)
	}
}

// CheckNewMatches scans the match list in the given snapshot and enqueues an
// opener job for every match not yet tracked. Running it twice over the same
// list is a no-op the second time.
func (m *Manager) CheckNewMatches(doc *dom.Document) int {
	items := doc.First(m.reg.MatchList)
	if items == nil {
		return 0
	}

	type found struct {
		id, name, bio string
	}
	var fresh []found

	m.mu.Lock()
	items.Each(func(_ int, s *goquery.Selection) {
		id := deriveMatchID(s)
		if _, tracked := m.conversations[id]; tracked {
			return
		}
		name := dom.CleanText(s.Find("h3, .name, [data-testid=\"match-name\"]").First().Text())
		if name == "" {
			name = dom.CleanText(s.AttrOr("aria-label", ""))
		}
		bio := dom.CleanText(s.Find("p, .bio").First().Text())
		fresh = append(fresh, found{id: id, name: name, bio: bio})
	})

	var created []*Conversation
	for _, f := range fresh {
		conv := &Conversation{
			ID:       f.id,
			Name:     f.name,
			Language: DetectLanguage(f.bio + " " + f.name),
			Tone:     m.cfg.Tone,
		}
		m.conversations[f.id] = conv
		m.queue = append(m.queue, Entry{
			ID:        uuid.NewString(),
			MatchID:   f.id,
			Type:      TypeOpener,
			Context:   f.bio,
			Timestamp: m.now(),
			Status:    StatusPending,
		})
		created = append(created, conv)
	}
	if len(created) > 0 {
		m.persistLocked()
	}
	hook := m.onNewMatch
	m.mu.Unlock()

	for _, conv := range created {
		log.Printf("[queue] new match %s (%s), opener queued", conv.ID, conv.Name)
		if err := m.store.Update(store.KeyMessagingStats, bumpCounter("matches")); err != nil {
			log.Printf("[queue] failed to bump match counter: %v", err)
		}
		if hook != nil {
			hook(conv)
		}
	}
	if len(created) > 0 {
		m.renderer.RefreshStatus()
	}
	return len(created)
}

// deriveMatchID finds a stable id for a match-list item: data attribute,
// then DOM id, then link href, then the literal "manual" fallback.
func deriveMatchID(s *goquery.Selection) string {
	if id, ok := s.Attr("data-match-id"); ok && id != "" {
		return id
	}
	if id, ok := s.Attr("id"); ok && id != "" {
		return id
	}
	if href, ok := s.Attr("href"); ok && href != "" {
		parts := strings.Split(strings.Trim(href, "/"), "/")
		return parts[len(parts)-1]
	}
	return "manual"
}

// QueueMessage appends a generation job for a tracked conversation
func (m *Manager) QueueMessage(matchID string, t EntryType, contextText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[matchID]; !ok {
		return fmt.Errorf("unknown conversation: %s", matchID)
	}

	m.queue = append(m.queue, Entry{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		Type:      t,
		Context:   contextText,
		Timestamp: m.now(),
		Status:    StatusPending,
	})
	m.persistLocked()
	return nil
}

// Drain processes at most the head queue entry. It no-ops when the queue is
// empty, processing is blocked, a pending approval exists, or another drain
// is still running. Called on a fixed timer.
func (m *Manager) Drain(ctx context.Context) error {
	m.mu.Lock()
	if m.draining || m.processingBlocked || m.pending != nil || len(m.queue) == 0 {
		m.mu.Unlock()
		return nil
	}
	m.draining = true
	entry := m.queue[0]
	conv, tracked := m.conversations[entry.MatchID]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.draining = false
		m.mu.Unlock()
	}()

	// Conversation removed while the entry sat in the queue: drop the entry
	if !tracked {
		m.dequeueHead()
		return nil
	}

	// Not yet due: defer without dequeuing
	if m.now().Sub(entry.Timestamp) < m.cfg.SendDelay {
		return nil
	}

	// Force freshness: stale cached phrasing must not leak across matches
	m.gen.ClearCache()

	reply, err := m.gen.GetResponse(ctx, buildPrompt(conv, entry))
	if err != nil {
		log.Printf("[queue] generation failed for %s: %v", entry.MatchID, err)
		m.failHead()
		return err
	}

	autoSend := m.cfg.AutoSend
	if entry.Type == TypeOpener {
		autoSend = m.cfg.AutoMessageOnMatch
	}

	if autoSend {
		return m.sendHead(ctx, conv, entry, reply)
	}

	m.mu.Lock()
	m.pending = &Pending{Entry: entry, Text: reply.Text, Provider: reply.Provider}
	m.mu.Unlock()
	m.renderer.PendingApproval(entry.MatchID, reply.Text)
	return nil
}

// ApprovePending sends the pending draft as-is
func (m *Manager) ApprovePending(ctx context.Context) error {
	return m.approve(ctx, "")
}

// ApprovePendingEdited sends the pending draft with human-edited text
func (m *Manager) ApprovePendingEdited(ctx context.Context, edited string) error {
	return m.approve(ctx, edited)
}

func (m *Manager) approve(ctx context.Context, edited string) error {
	m.mu.Lock()
	p := m.pending
	if p == nil {
		m.mu.Unlock()
		return fmt.Errorf("no pending message to approve")
	}
	conv := m.conversations[p.Entry.MatchID]
	m.mu.Unlock()

	text := p.Text
	if edited != "" {
		text = edited
	}

	if err := m.sender.SendMessage(ctx, p.Entry.MatchID, text); err != nil {
		return fmt.Errorf("failed to send approved message: %w", err)
	}

	m.mu.Lock()
	m.pending = nil
	m.dequeueHeadLocked(StatusSent)
	if conv != nil {
		m.recordSentLocked(conv, text)
	}
	m.persistLocked()
	m.mu.Unlock()

	if err := m.store.Update(store.KeyMessagingStats, bumpCounter("sent")); err != nil {
		log.Printf("[queue] failed to bump sent counter: %v", err)
	}
	m.renderer.RefreshStatus()
	return nil
}

// CancelPending discards the pending draft and blocks further processing
// until ResetProcessingBlock. A human rejecting one message must not cause
// the queue to immediately present another.
func (m *Manager) CancelPending() {
	m.mu.Lock()
	if m.pending != nil {
		m.pending = nil
		m.dequeueHeadLocked(StatusFailed)
		m.processingBlocked = true
		m.persistLocked()
	}
	m.mu.Unlock()
	m.renderer.RefreshStatus()
}

// CancelAllPending empties the queue, drops any pending draft, and blocks
// processing
func (m *Manager) CancelAllPending() {
	m.mu.Lock()
	m.pending = nil
	m.queue = nil
	m.processingBlocked = true
	m.persistLocked()
	m.mu.Unlock()
	m.renderer.RefreshStatus()
}

// ResetProcessingBlock re-enables automatic draining
func (m *Manager) ResetProcessingBlock() {
	m.mu.Lock()
	m.processingBlocked = false
	m.mu.Unlock()
}

// Pending returns the current pending draft, nil when none
func (m *Manager) Pending() *Pending {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	cp := *m.pending
	return &cp
}

// QueueLen reports the number of waiting entries
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Conversations returns a snapshot of tracked conversations
func (m *Manager) Conversations() map[string]Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Conversation, len(m.conversations))
	for id, c := range m.conversations {
		out[id] = *c
	}
	return out
}

// RecordIncoming updates a conversation after an observed inbound message
func (m *Manager) RecordIncoming(matchID, text string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[matchID]
	if !ok {
		return
	}
	conv.LastMessage = text
	conv.LastMessageTime = at
	conv.MessageCount++
	conv.NoReplyCount = 0
	if lang := DetectLanguage(text); lang != "en" || conv.Language == "" {
		conv.Language = lang
	}
	m.persistLocked()
}

// RemoveConversation untracks a match. Kept for the orphaned-entry drain
// path; records are otherwise permanent.
func (m *Manager) RemoveConversation(matchID string) {
	m.mu.Lock()
	delete(m.conversations, matchID)
	m.persistLocked()
	m.mu.Unlock()
}

func (m *Manager) sendHead(ctx context.Context, conv *Conversation, entry Entry, reply *ai.Reply) error {
	if err := m.sender.SendMessage(ctx, entry.MatchID, reply.Text); err != nil {
		log.Printf("[queue] auto-send failed for %s: %v", entry.MatchID, err)
		m.failHead()
		return err
	}

	m.mu.Lock()
	m.dequeueHeadLocked(StatusSent)
	m.recordSentLocked(conv, reply.Text)
	m.persistLocked()
	m.mu.Unlock()

	if err := m.store.Update(store.KeyMessagingStats, bumpCounter("sent")); err != nil {
		log.Printf("[queue] failed to bump sent counter: %v", err)
	}
	m.renderer.RefreshStatus()
	return nil
}

func (m *Manager) recordSentLocked(conv *Conversation, text string) {
	conv.LastMessage = text
	conv.LastMessageTime = m.now()
	conv.MessageCount++
	conv.NoReplyCount++
}

func (m *Manager) dequeueHead() {
	m.mu.Lock()
	m.dequeueHeadLocked(StatusSent)
	m.persistLocked()
	m.mu.Unlock()
}

func (m *Manager) failHead() {
	m.mu.Lock()
	m.dequeueHeadLocked(StatusFailed)
	m.persistLocked()
	m.mu.Unlock()
}

func (m *Manager) dequeueHeadLocked(status EntryStatus) {
	if len(m.queue) == 0 {
		return
	}
	m.queue[0].Status = status
	m.queue = m.queue[1:]
}

// bumpCounter returns a store.Update merge func incrementing one field of
// the messaging stats map
func bumpCounter(field string) func(raw []byte) (any, error) {
	return func(raw []byte) (any, error) {
		stats := map[string]int{}
		if raw != nil {
			if err := json.Unmarshal(raw, &stats); err != nil {
				return nil, err
			}
		}
		stats[field]++
		return stats, nil
	}
}
