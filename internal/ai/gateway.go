// Package ai multiplexes message-drafting requests across LLM providers with
// automatic fallback to whichever backend actually has a credential.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mprichard/swipebot/internal/ai/providers"
	"github.com/mprichard/swipebot/internal/notify"
	"github.com/mprichard/swipebot/internal/store"
)

// Provider is one credentialed LLM backend
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Reply is the success arm of the gateway's result. Provider records which
// backend actually answered, which matters when fallback substituted one.
type Reply struct {
	Text     string
	Provider string
}

// fallbackOrder is the fixed priority walked when the active provider lacks
// a key
var fallbackOrder = []string{"claude", "openai", "gemini"}

// Gateway resolves the active provider, applies per-provider budgets and the
// response cache, and normalizes every outcome to a Reply or a GatewayError
type Gateway struct {
	store     *store.Store
	renderer  notify.Renderer
	providers map[string]Provider
	cache     *responseCache
	defActive string
	now       func() time.Time
}

// New builds a gateway over the constructed providers. Only providers with
// configured keys should be passed in; key presence is what fallback keys on.
func New(st *store.Store, renderer notify.Renderer, available []Provider, defaultActive string) *Gateway {
	m := make(map[string]Provider, len(available))
	for _, p := range available {
		m[p.Name()] = p
	}
	return &Gateway{
		store:     st,
		renderer:  renderer,
		providers: m,
		cache:     newResponseCache(),
		defActive: defaultActive,
		now:       time.Now,
	}
}

// GetResponse drafts a response for the prompt. Never touches the network
// when no provider has a key.
func (g *Gateway) GetResponse(ctx context.Context, prompt string) (*Reply, error) {
	p, substituted, gerr := g.resolve()
	if gerr != nil {
		return nil, gerr
	}
	if substituted {
		log.Printf("[ai] active provider lacks a key, substituting %s", p.Name())
	}

	if text, ok := g.cache.get(p.Name(), prompt); ok {
		return &Reply{Text: text, Provider: p.Name()}, nil
	}

	allowed, err := allowRequest(g.store, p.Name(), g.now())
	if err != nil {
		log.Printf("[ai] rate limit bookkeeping failed: %v", err)
	} else if !allowed {
		return nil, &GatewayError{Kind: KindRateLimited, Detail: p.Name() + " request window exhausted"}
	}

	start := g.now()
	text, err := p.Generate(ctx, prompt)
	if errors.Is(err, providers.ErrRelayInvalidated) {
		// One silent retry for the recoverable relay teardown class
		log.Printf("[ai] relay invalidated, retrying %s once", p.Name())
		text, err = p.Generate(ctx, prompt)
	}

	g.record(p.Name(), prompt, text, err, g.now().Sub(start))

	if err != nil {
		g.renderer.Banner(fmt.Sprintf("%s error: %v", p.Name(), err))
		return nil, &GatewayError{Kind: KindProvider, Detail: err.Error()}
	}

	text = strings.TrimSpace(text)
	if !validResponse(text) {
		return nil, &GatewayError{Kind: KindInvalidResponse, Detail: "provider returned an unusable draft"}
	}

	g.cache.put(p.Name(), prompt, text)
	return &Reply{Text: text, Provider: p.Name()}, nil
}

// ClearCache drops all cached responses. The queue drain calls this before
// each generation so different matches never receive recycled phrasing.
func (g *Gateway) ClearCache() {
	g.cache.clear()
}

// resolve picks the provider to call: the persisted active choice if it has
// a key, else the first credentialed provider in the fixed fallback order.
func (g *Gateway) resolve() (Provider, bool, *GatewayError) {
	active := g.defActive
	var stored string
	if ok, err := g.store.Get(store.KeyActiveAI, &stored); err == nil && ok && stored != "" {
		active = stored
	}

	if p, ok := g.providers[active]; ok {
		return p, false, nil
	}

	for _, name := range fallbackOrder {
		if p, ok := g.providers[name]; ok {
			return p, true, nil
		}
	}

	return nil, false, &GatewayError{
		Kind:   KindNoKey,
		Detail: fmt.Sprintf("no API key configured for %s or any fallback provider", active),
	}
}

// refusalPrefixes are shells a model emits instead of a usable draft
var refusalPrefixes = []string{
	"i can't",
	"i cannot",
	"i'm sorry",
	"as an ai",
}

// validResponse is the response-validity classifier: rejects empty or
// refusal-shell text before it reaches the queue
func validResponse(text string) bool {
	if len(text) < 2 {
		return false
	}
	lower := strings.ToLower(text)
	for _, prefix := range refusalPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// record tracks per-provider performance and dumps the exchange for
// after-the-fact debugging
func (g *Gateway) record(provider, prompt, response string, err error, latency time.Duration) {
	perfErr := g.store.Update(store.KeyAIPerformance, func(raw []byte) (any, error) {
		type perf struct {
			Requests int   `json:"requests"`
			Failures int   `json:"failures"`
			TotalMs  int64 `json:"total_ms"`
			LastMs   int64 `json:"last_ms"`
		}
		stats := map[string]perf{}
		if raw != nil {
			if jerr := json.Unmarshal(raw, &stats); jerr != nil {
				return nil, jerr
			}
		}
		p := stats[provider]
		p.Requests++
		if err != nil {
			p.Failures++
		}
		p.TotalMs += latency.Milliseconds()
		p.LastMs = latency.Milliseconds()
		stats[provider] = p
		return stats, nil
	})
	if perfErr != nil {
		log.Printf("[ai] failed to record performance: %v", perfErr)
	}

	exchange := store.LLMExchange{
		Timestamp: g.now(),
		Provider:  provider,
		Prompt:    prompt,
		Response:  response,
	}
	if err != nil {
		exchange.Error = err.Error()
	}
	if _, saveErr := store.SaveLLMExchange(exchange); saveErr != nil {
		log.Printf("[ai] failed to dump exchange: %v", saveErr)
	}
}
