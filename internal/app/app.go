// Package app wires the subsystems together and supervises their lifetimes.
package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mprichard/swipebot/internal/ai"
	"github.com/mprichard/swipebot/internal/ai/providers"
	"github.com/mprichard/swipebot/internal/chat"
	"github.com/mprichard/swipebot/internal/config"
	"github.com/mprichard/swipebot/internal/decision"
	"github.com/mprichard/swipebot/internal/dom"
	"github.com/mprichard/swipebot/internal/notify"
	"github.com/mprichard/swipebot/internal/queue"
	"github.com/mprichard/swipebot/internal/scheduler"
	"github.com/mprichard/swipebot/internal/selectors"
	"github.com/mprichard/swipebot/internal/stealth"
	"github.com/mprichard/swipebot/internal/store"
	"github.com/mprichard/swipebot/internal/swipe"
)

// App owns the full object graph for one running bot
type App struct {
	cfg      *config.Config
	store    *store.Store
	page     *dom.Page
	events   *dom.Notifier
	renderer notify.Renderer
	engine   *stealth.Engine
	gateway  *ai.Gateway
	queue    *queue.Manager
	swiper   *swipe.Orchestrator
	sched    *scheduler.Scheduler
}

// New builds the app over an already-authenticated chromedp context.
// Construction order matters: everything downstream of the store restores
// persisted state in its constructor.
func New(browserCtx context.Context, cfg *config.Config) (*App, error) {
	dbPath, err := config.DataPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data path: %w", err)
	}
	st, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	events := dom.NewNotifier()
	var renderer notify.Renderer = notify.LogRenderer{}

	page := dom.NewPage(browserCtx, events)
	page.Watch()
	waiter := dom.NewWaiter(page, events)
	reg := selectors.Default()

	engine := stealth.New(page, st, renderer, stealth.Config{
		MinActionGap: time.Duration(cfg.Swipe.MinActionGapMillis) * time.Millisecond,
		SessionCap:   cfg.Swipe.SessionActionCap,
	})

	gateway := ai.New(st, renderer, buildProviders(browserCtx, cfg), cfg.Providers.Active)

	sender := chat.NewSender(page, page, waiter, engine, reg, cfg.Site.BaseURL)
	qm := queue.NewManager(st, gateway, sender, renderer, reg, queue.Config{
		AutoSend:           cfg.Messaging.AutoSend,
		AutoMessageOnMatch: cfg.Messaging.AutoMessageOnMatch,
		SendDelay:          time.Duration(cfg.Messaging.SendDelaySeconds) * time.Second,
		Tone:               cfg.Messaging.Tone,
	})

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	deck := swipe.NewDeck(page, reg)
	swiper := swipe.New(deck, deck, engine, engine, page, st, renderer, swipe.Config{
		MaxSwipes: cfg.Swipe.MaxSwipes,
		MinDelay:  time.Duration(cfg.Swipe.MinDelaySeconds) * time.Second,
		MaxDelay:  time.Duration(cfg.Swipe.MaxDelaySeconds) * time.Second,
		Filters: decision.Filters{
			Keywords:  cfg.Filters.Keywords,
			MinPhotos: cfg.Filters.MinPhotos,
			LikeRatio: cfg.Filters.LikeRatio,
		},
		AllowedPath: "/app/recs",
	}, rng)

	a := &App{
		cfg:      cfg,
		store:    st,
		page:     page,
		events:   events,
		renderer: renderer,
		engine:   engine,
		gateway:  gateway,
		queue:    qm,
		swiper:   swiper,
		sched:    scheduler.New(),
	}

	qm.OnNewMatch(func(conv *queue.Conversation) {
		renderer.Banner(fmt.Sprintf("New match: %s", conv.Name))
	})

	if err := a.scheduleJobs(); err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

// buildProviders constructs a client for every credentialed provider
func buildProviders(ctx context.Context, cfg *config.Config) []ai.Provider {
	var ps []ai.Provider
	if cfg.Providers.AnthropicKey != "" {
		ps = append(ps, providers.NewAnthropicProvider(cfg.Providers.AnthropicKey, cfg.Providers.AnthropicModel))
	}
	if cfg.Providers.OpenAIKey != "" {
		ps = append(ps, providers.NewOpenAIProvider(cfg.Providers.OpenAIKey, cfg.Providers.OpenAIModel))
	}
	if cfg.Providers.GeminiKey != "" {
		p, err := providers.NewGeminiProvider(ctx, cfg.Providers.GeminiKey, cfg.Providers.GeminiModel)
		if err != nil {
			log.Printf("[app] gemini provider unavailable: %v", err)
		} else {
			ps = append(ps, p)
		}
	}
	return ps
}

func (a *App) scheduleJobs() error {
	drainEvery := time.Duration(a.cfg.Messaging.DrainIntervalSeconds) * time.Second
	if drainEvery <= 0 {
		drainEvery = 5 * time.Second
	}
	if err := a.sched.AddIntervalJob("queue-drain", drainEvery, a.queue.Drain); err != nil {
		return err
	}
	if err := a.sched.AddIntervalJob("match-scan", time.Minute, a.scanMatches); err != nil {
		return err
	}
	return a.sched.AddDailyJob("analytics-prune", func(ctx context.Context) error {
		return a.store.PruneSessionAnalytics(30)
	})
}

// scanMatches looks for new matches in the current view and checks for a bot
// challenge while it has a snapshot
func (a *App) scanMatches(ctx context.Context) error {
	doc, err := a.page.Snapshot(ctx)
	if err != nil {
		return err
	}
	if a.engine.DetectCAPTCHA(doc) {
		a.engine.AddDiagnosticLog("challenge page detected, stopping session")
		a.swiper.Stop()
		a.renderer.Notice("Verification challenge detected, stopping")
		return nil
	}
	a.queue.CheckNewMatches(doc)
	return nil
}

// Swiper exposes the session orchestrator
func (a *App) Swiper() *swipe.Orchestrator { return a.swiper }

// Queue exposes the message queue manager
func (a *App) Queue() *queue.Manager { return a.queue }

// Run starts the background jobs and the swipe session, then blocks until
// the session ends or the context is cancelled
func (a *App) Run(ctx context.Context) error {
	a.sched.Start()
	defer func() {
		<-a.sched.Stop().Done()
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.swiper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.swiper.Stop()
		return nil
	})

	return g.Wait()
}

// Close releases held resources
func (a *App) Close() error {
	return a.store.Close()
}
