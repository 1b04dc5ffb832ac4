package ai

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mprichard/swipebot/internal/ai/providers"
	"github.com/mprichard/swipebot/internal/notify"
	"github.com/mprichard/swipebot/internal/store"
)

type fakeProvider struct {
	name  string
	text  string
	errs  []error
	calls int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return p.text, nil
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

func TestGatewayUsesActiveProvider(t *testing.T) {
	claude := &fakeProvider{name: "claude", text: "from claude"}
	openai := &fakeProvider{name: "openai", text: "from openai"}
	g := New(testStore(t), notify.LogRenderer{}, []Provider{claude, openai}, "claude")

	r, err := g.GetResponse(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}
	if r.Provider != "claude" || r.Text != "from claude" {
		t.Errorf("got %+v, want claude's response", r)
	}
	if openai.calls != 0 {
		t.Errorf("openai called %d times, want 0", openai.calls)
	}
}

func TestGatewayFallbackSubstitution(t *testing.T) {
	// Active provider has no key, only gemini is credentialed
	gemini := &fakeProvider{name: "gemini", text: "from gemini"}
	g := New(testStore(t), notify.LogRenderer{}, []Provider{gemini}, "claude")

	r, err := g.GetResponse(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}
	if r.Provider != "gemini" {
		t.Errorf("substituted provider = %q, want gemini", r.Provider)
	}
}

func TestGatewayStoredActiveOverridesDefault(t *testing.T) {
	claude := &fakeProvider{name: "claude", text: "from claude"}
	openai := &fakeProvider{name: "openai", text: "from openai"}
	st := testStore(t)
	if err := st.Set(store.KeyActiveAI, "openai"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	g := New(st, notify.LogRenderer{}, []Provider{claude, openai}, "claude")
	r, err := g.GetResponse(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}
	if r.Provider != "openai" {
		t.Errorf("provider = %q, want the stored choice openai", r.Provider)
	}
}

func TestGatewayNoKeyAnywhere(t *testing.T) {
	g := New(testStore(t), notify.LogRenderer{}, nil, "claude")

	_, err := g.GetResponse(context.Background(), "say hi")
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gerr.Kind != KindNoKey {
		t.Errorf("kind = %s, want no_key", gerr.Kind)
	}
}

func TestGatewayRelayInvalidatedRetriesOnce(t *testing.T) {
	claude := &fakeProvider{
		name: "claude",
		text: "second try worked",
		errs: []error{providers.ErrRelayInvalidated},
	}
	g := New(testStore(t), notify.LogRenderer{}, []Provider{claude}, "claude")

	r, err := g.GetResponse(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}
	if r.Text != "second try worked" {
		t.Errorf("text = %q", r.Text)
	}
	if claude.calls != 2 {
		t.Errorf("provider called %d times, want 2", claude.calls)
	}
}

func TestGatewayRelayInvalidatedTwiceFails(t *testing.T) {
	claude := &fakeProvider{
		name: "claude",
		errs: []error{providers.ErrRelayInvalidated, providers.ErrRelayInvalidated},
	}
	g := New(testStore(t), notify.LogRenderer{}, []Provider{claude}, "claude")

	_, err := g.GetResponse(context.Background(), "say hi")
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gerr.Kind != KindProvider {
		t.Errorf("kind = %s, want provider", gerr.Kind)
	}
	if claude.calls != 2 {
		t.Errorf("provider called %d times, want exactly 2 (one retry)", claude.calls)
	}
}

func TestGatewayOrdinaryErrorNoRetry(t *testing.T) {
	claude := &fakeProvider{name: "claude", errs: []error{errors.New("500 from upstream")}}
	g := New(testStore(t), notify.LogRenderer{}, []Provider{claude}, "claude")

	if _, err := g.GetResponse(context.Background(), "say hi"); err == nil {
		t.Fatal("expected error")
	}
	if claude.calls != 1 {
		t.Errorf("provider called %d times, want 1 (no retry for ordinary errors)", claude.calls)
	}
}

func TestGatewayRejectsRefusals(t *testing.T) {
	claude := &fakeProvider{name: "claude", text: "I can't help with that request."}
	g := New(testStore(t), notify.LogRenderer{}, []Provider{claude}, "claude")

	_, err := g.GetResponse(context.Background(), "say hi")
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gerr.Kind != KindInvalidResponse {
		t.Errorf("kind = %s, want invalid_response", gerr.Kind)
	}
}

func TestGatewayCachesResponses(t *testing.T) {
	claude := &fakeProvider{name: "claude", text: "cached hello"}
	g := New(testStore(t), notify.LogRenderer{}, []Provider{claude}, "claude")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := g.GetResponse(ctx, "same prompt"); err != nil {
			t.Fatalf("GetResponse failed: %v", err)
		}
	}
	if claude.calls != 1 {
		t.Errorf("provider called %d times, want 1 with cache hits", claude.calls)
	}

	g.ClearCache()
	if _, err := g.GetResponse(ctx, "same prompt"); err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}
	if claude.calls != 2 {
		t.Errorf("provider called %d times after clear, want 2", claude.calls)
	}
}

func TestGatewayRateLimitExhaustion(t *testing.T) {
	claude := &fakeProvider{name: "claude", text: "ok"}
	g := New(testStore(t), notify.LogRenderer{}, []Provider{claude}, "claude")

	ctx := context.Background()
	// Distinct prompts so the cache can't absorb the calls; claude's
	// default budget is 30 per hour
	for i := 0; i < 30; i++ {
		if _, err := g.GetResponse(ctx, fmt.Sprintf("prompt %d", i)); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	_, err := g.GetResponse(ctx, "one over")
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gerr.Kind != KindRateLimited {
		t.Errorf("kind = %s, want rate_limited", gerr.Kind)
	}
}

func TestGatewayRateWindowResets(t *testing.T) {
	claude := &fakeProvider{name: "claude", text: "ok"}
	g := New(testStore(t), notify.LogRenderer{}, []Provider{claude}, "claude")

	base := time.Now()
	g.now = func() time.Time { return base }

	ctx := context.Background()
	for i := 0; i < 30; i++ {
		if _, err := g.GetResponse(ctx, fmt.Sprintf("prompt %d", i)); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	// Past the window the budget refills
	g.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := g.GetResponse(ctx, "after window"); err != nil {
		t.Errorf("expected fresh budget after window, got %v", err)
	}
}

func TestCacheEviction(t *testing.T) {
	c := newResponseCache()
	c.max = 3

	for i := 0; i < 5; i++ {
		c.put("claude", fmt.Sprintf("p%d", i), "text")
	}
	if c.len() != 3 {
		t.Fatalf("cache length = %d, want 3", c.len())
	}
	if _, ok := c.get("claude", "p0"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.get("claude", "p4"); !ok {
		t.Error("newest entry should survive")
	}
}

func TestCacheTTL(t *testing.T) {
	c := newResponseCache()
	base := time.Now()
	c.now = func() time.Time { return base }

	c.put("claude", "p", "text")
	if _, ok := c.get("claude", "p"); !ok {
		t.Fatal("fresh entry should hit")
	}

	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, ok := c.get("claude", "p"); ok {
		t.Error("expired entry should miss")
	}
}

func TestCacheKeyIncludesProvider(t *testing.T) {
	c := newResponseCache()
	c.put("claude", "p", "claude text")

	if _, ok := c.get("openai", "p"); ok {
		t.Error("same prompt under another provider must miss")
	}
}
