package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mprichard/swipebot/internal/ai"
	"github.com/mprichard/swipebot/internal/dom"
	"github.com/mprichard/swipebot/internal/selectors"
	"github.com/mprichard/swipebot/internal/store"
)

type fakeGen struct {
	mu      sync.Mutex
	calls   int
	clears  int
	text    string
	failErr error
}

func (g *fakeGen) GetResponse(ctx context.Context, prompt string) (*ai.Reply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failErr != nil {
		return nil, g.failErr
	}
	return &ai.Reply{Text: g.text, Provider: "claude"}, nil
}

func (g *fakeGen) ClearCache() {
	g.mu.Lock()
	g.clears++
	g.mu.Unlock()
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeSender) SendMessage(ctx context.Context, matchID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, matchID+":"+text)
	return nil
}

type captureRenderer struct {
	mu       sync.Mutex
	pendings []string
}

func (r *captureRenderer) RefreshStatus()    {}
func (r *captureRenderer) Banner(msg string) {}
func (r *captureRenderer) Notice(msg string) {}
func (r *captureRenderer) PendingApproval(matchID, text string) {
	r.mu.Lock()
	r.pendings = append(r.pendings, matchID)
	r.mu.Unlock()
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testManager(t *testing.T, cfg Config) (*Manager, *fakeGen, *fakeSender, *captureRenderer) {
	t.Helper()
	gen := &fakeGen{text: "hey!"}
	sender := &fakeSender{}
	renderer := &captureRenderer{}
	m := NewManager(testStore(t), gen, sender, renderer, selectors.Default(), cfg)
	return m, gen, sender, renderer
}

func matchListDoc(ids ...string) *dom.Document {
	html := `<html><body><div class="matchList">`
	for _, id := range ids {
		html += fmt.Sprintf(`<a class="matchListItem" data-match-id=%q><h3>Match %s</h3><p>hola como estas amigo</p></a>`, id, id)
	}
	html += `</div></body></html>`
	return dom.MustParse(html)
}

func TestCheckNewMatchesIdempotent(t *testing.T) {
	m, _, _, _ := testManager(t, Config{})

	doc := matchListDoc("m1", "m2")
	if got := m.CheckNewMatches(doc); got != 2 {
		t.Fatalf("first scan found %d, want 2", got)
	}
	if got := m.CheckNewMatches(doc); got != 0 {
		t.Errorf("second scan found %d, want 0", got)
	}
	if got := m.QueueLen(); got != 2 {
		t.Errorf("queue length = %d, want 2", got)
	}

	convs := m.Conversations()
	if convs["m1"].Name != "Match m1" {
		t.Errorf("conversation name = %q, want %q", convs["m1"].Name, "Match m1")
	}
	if convs["m1"].Language != "es" {
		t.Errorf("detected language = %q, want es", convs["m1"].Language)
	}
}

func TestCheckNewMatchesDerivesIDFromHref(t *testing.T) {
	m, _, _, _ := testManager(t, Config{})

	doc := dom.MustParse(`<html><body>
		<a class="matchListItem" href="/app/messages/abc123"><h3>Sam</h3></a>
	</body></html>`)
	m.CheckNewMatches(doc)

	if _, ok := m.Conversations()["abc123"]; !ok {
		t.Errorf("expected conversation keyed by href tail, got %v", m.Conversations())
	}
}

func TestDrainParksPendingForApproval(t *testing.T) {
	m, gen, sender, renderer := testManager(t, Config{})
	m.CheckNewMatches(matchListDoc("m1", "m2"))

	ctx := context.Background()
	if err := m.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	p := m.Pending()
	if p == nil {
		t.Fatal("expected a pending draft")
	}
	if p.Entry.MatchID != "m1" {
		t.Errorf("pending match = %q, want m1 (FIFO head)", p.Entry.MatchID)
	}
	if p.Text != "hey!" {
		t.Errorf("pending text = %q", p.Text)
	}
	if len(renderer.pendings) != 1 {
		t.Errorf("PendingApproval fired %d times, want 1", len(renderer.pendings))
	}
	if len(sender.sent) != 0 {
		t.Errorf("nothing should send before approval, sent %v", sender.sent)
	}

	// A second drain must not generate another draft while one is parked
	if err := m.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
}

func TestApprovePendingSends(t *testing.T) {
	m, _, sender, _ := testManager(t, Config{})
	m.CheckNewMatches(matchListDoc("m1"))

	ctx := context.Background()
	if err := m.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if err := m.ApprovePending(ctx); err != nil {
		t.Fatalf("ApprovePending failed: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0] != "m1:hey!" {
		t.Errorf("sent = %v, want [m1:hey!]", sender.sent)
	}
	if m.Pending() != nil {
		t.Error("pending should clear after approval")
	}
	if m.QueueLen() != 0 {
		t.Errorf("queue length = %d, want 0", m.QueueLen())
	}
	if got := m.Conversations()["m1"].MessageCount; got != 1 {
		t.Errorf("conversation message count = %d, want 1", got)
	}
}

func TestApprovePendingEditedUsesEditedText(t *testing.T) {
	m, _, sender, _ := testManager(t, Config{})
	m.CheckNewMatches(matchListDoc("m1"))

	ctx := context.Background()
	if err := m.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if err := m.ApprovePendingEdited(ctx, "rewritten by hand"); err != nil {
		t.Fatalf("ApprovePendingEdited failed: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0] != "m1:rewritten by hand" {
		t.Errorf("sent = %v, want the edited text", sender.sent)
	}
}

func TestApproveWithoutPendingErrors(t *testing.T) {
	m, _, _, _ := testManager(t, Config{})
	if err := m.ApprovePending(context.Background()); err == nil {
		t.Error("expected error approving with no pending draft")
	}
}

func TestCancelPendingBlocksProcessing(t *testing.T) {
	m, gen, sender, _ := testManager(t, Config{})
	m.CheckNewMatches(matchListDoc("m1", "m2"))

	ctx := context.Background()
	if err := m.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	m.CancelPending()

	if m.Pending() != nil {
		t.Error("pending should clear after cancel")
	}
	if len(sender.sent) != 0 {
		t.Errorf("cancelled draft must not send, sent %v", sender.sent)
	}

	// The remaining entry must not process until the block is reset
	if err := m.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("generator called %d times while blocked, want 1", gen.calls)
	}

	m.ResetProcessingBlock()
	if err := m.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if gen.calls != 2 {
		t.Errorf("generator called %d times after reset, want 2", gen.calls)
	}
}

func TestCancelAllPendingEmptiesQueue(t *testing.T) {
	m, gen, _, _ := testManager(t, Config{})
	m.CheckNewMatches(matchListDoc("m1", "m2", "m3"))

	m.CancelAllPending()
	if m.QueueLen() != 0 {
		t.Errorf("queue length = %d after cancel all, want 0", m.QueueLen())
	}

	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times after cancel all, want 0", gen.calls)
	}
}

func TestAutoMessageOnMatchSendsOpenerDirectly(t *testing.T) {
	m, _, sender, renderer := testManager(t, Config{AutoMessageOnMatch: true})
	m.CheckNewMatches(matchListDoc("m1"))

	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if len(renderer.pendings) != 0 {
		t.Errorf("auto-send must not ask for approval, got %d asks", len(renderer.pendings))
	}
	if m.QueueLen() != 0 {
		t.Errorf("queue length = %d, want 0", m.QueueLen())
	}
}

func TestAutoSendDoesNotCoverOpeners(t *testing.T) {
	// AutoSend alone governs followups; openers still need the dedicated flag
	m, _, sender, renderer := testManager(t, Config{AutoSend: true})
	m.CheckNewMatches(matchListDoc("m1"))

	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("opener auto-sent under AutoSend only, sent %v", sender.sent)
	}
	if len(renderer.pendings) != 1 {
		t.Errorf("expected approval ask for opener, got %d", len(renderer.pendings))
	}
}

func TestAutoSendCoversFollowups(t *testing.T) {
	m, _, sender, _ := testManager(t, Config{AutoSend: true, AutoMessageOnMatch: true})
	m.CheckNewMatches(matchListDoc("m1"))

	ctx := context.Background()
	if err := m.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	if err := m.QueueMessage("m1", TypeFollowup, "they asked about my weekend"); err != nil {
		t.Fatalf("QueueMessage failed: %v", err)
	}
	if err := m.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	if len(sender.sent) != 2 {
		t.Errorf("sent %d messages, want 2", len(sender.sent))
	}
}

func TestDrainDefersNotYetDueEntries(t *testing.T) {
	m, gen, _, _ := testManager(t, Config{SendDelay: time.Hour})
	m.CheckNewMatches(matchListDoc("m1"))

	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called for a not-yet-due entry")
	}
	if m.QueueLen() != 1 {
		t.Errorf("deferred entry must stay queued, length = %d", m.QueueLen())
	}

	// Once the entry ages past the delay it processes
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times after due, want 1", gen.calls)
	}
}

func TestDrainDropsOrphanedEntries(t *testing.T) {
	m, gen, _, _ := testManager(t, Config{})
	m.CheckNewMatches(matchListDoc("m1"))
	m.RemoveConversation("m1")

	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called for an orphaned entry")
	}
	if m.QueueLen() != 0 {
		t.Errorf("orphaned entry must dequeue, length = %d", m.QueueLen())
	}
}

func TestDrainClearsCacheBeforeGenerating(t *testing.T) {
	m, gen, _, _ := testManager(t, Config{})
	m.CheckNewMatches(matchListDoc("m1"))

	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if gen.clears != 1 {
		t.Errorf("cache cleared %d times, want 1", gen.clears)
	}
}

func TestDrainGenerationFailureDequeues(t *testing.T) {
	m, gen, _, _ := testManager(t, Config{})
	gen.failErr = errors.New("provider down")
	m.CheckNewMatches(matchListDoc("m1"))

	if err := m.Drain(context.Background()); err == nil {
		t.Fatal("expected generation error surfaced")
	}
	if m.QueueLen() != 0 {
		t.Errorf("failed entry must dequeue, length = %d", m.QueueLen())
	}
	if m.Pending() != nil {
		t.Error("no pending draft expected after failure")
	}
}

func TestQueueMessageUnknownConversation(t *testing.T) {
	m, _, _, _ := testManager(t, Config{})
	if err := m.QueueMessage("ghost", TypeFollowup, ""); err == nil {
		t.Error("expected error queueing for an unknown conversation")
	}
}

func TestStatePersistsAcrossManagers(t *testing.T) {
	st := testStore(t)
	gen := &fakeGen{text: "hi"}
	sender := &fakeSender{}
	renderer := &captureRenderer{}
	reg := selectors.Default()

	m := NewManager(st, gen, sender, renderer, reg, Config{})
	m.CheckNewMatches(matchListDoc("m1", "m2"))

	m2 := NewManager(st, gen, sender, renderer, reg, Config{})
	if m2.QueueLen() != 2 {
		t.Errorf("restored queue length = %d, want 2", m2.QueueLen())
	}
	if len(m2.Conversations()) != 2 {
		t.Errorf("restored %d conversations, want 2", len(m2.Conversations()))
	}
	// And the restored manager must not re-create the same matches
	if got := m2.CheckNewMatches(matchListDoc("m1", "m2")); got != 0 {
		t.Errorf("restored manager found %d new matches, want 0", got)
	}
}

func TestRecordIncomingResetsNoReply(t *testing.T) {
	m, _, _, _ := testManager(t, Config{AutoMessageOnMatch: true})
	m.CheckNewMatches(matchListDoc("m1"))

	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if got := m.Conversations()["m1"].NoReplyCount; got != 1 {
		t.Fatalf("no-reply count after send = %d, want 1", got)
	}

	m.RecordIncoming("m1", "hey yourself", time.Now())
	conv := m.Conversations()["m1"]
	if conv.NoReplyCount != 0 {
		t.Errorf("no-reply count after incoming = %d, want 0", conv.NoReplyCount)
	}
	if conv.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", conv.MessageCount)
	}
}
