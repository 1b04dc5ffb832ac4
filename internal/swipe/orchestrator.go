// Package swipe runs the automated swipe session: read the top card, decide,
// press the matching button, wait a humanized interval, repeat until a stop
// condition lands.
package swipe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/mprichard/swipebot/internal/decision"
	"github.com/mprichard/swipebot/internal/notify"
	"github.com/mprichard/swipebot/internal/store"
)

// State is the session lifecycle phase
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

const (
	profileRetries = 5
	buttonRetries  = 5
	// stopDebounce swallows repeated stop requests fired in quick succession
	stopDebounce = time.Second
)

// backoff for in-iteration retries: 1s, 2s, 4s, 8s, 16s
func retryDelay(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// ProfileSource reads the current top-of-deck profile. An error means no
// card could be found in the current view.
type ProfileSource interface {
	Current(ctx context.Context) (decision.ProfileView, error)
}

// ButtonFinder resolves the swipe button for an outcome to a live selector
type ButtonFinder interface {
	Find(ctx context.Context, o decision.Outcome) (string, error)
}

// Actor performs the guarded humanized click
type Actor interface {
	Click(ctx context.Context, selector string) error
}

// Gate enforces pacing and the session action budget
type Gate interface {
	CheckRateLimit(ctx context.Context) (bool, error)
	ResetSession()
}

// Locator reports the current page URL
type Locator interface {
	Location(ctx context.Context) (string, error)
}

// Config tunes a session
type Config struct {
	// MaxSwipes ends the session cleanly once reached; 0 means unlimited
	MaxSwipes int
	// MinDelay and MaxDelay bound the inter-swipe pause at session start;
	// both widen as the session ages
	MinDelay time.Duration
	MaxDelay time.Duration
	// Filters feed the like/nope decision
	Filters decision.Filters
	// AllowedPath is the URL fragment the deck lives under; swiping outside
	// it stops the session
	AllowedPath string
}

// Orchestrator owns one swipe session at a time
type Orchestrator struct {
	profiles ProfileSource
	buttons  ButtonFinder
	actor    Actor
	gate     Gate
	loc      Locator
	store    *store.Store
	renderer notify.Renderer
	cfg      Config

	mu         sync.Mutex
	state      State
	stopping   bool
	lastStop   time.Time
	swipeCount int

	rng       *rand.Rand
	sleep     func(ctx context.Context, d time.Duration) error
	nextBreak int
}

// New wires an orchestrator. rng is shared with the decision layer so one
// seed drives the whole session.
func New(profiles ProfileSource, buttons ButtonFinder, actor Actor, gate Gate, loc Locator, st *store.Store, renderer notify.Renderer, cfg Config, rng *rand.Rand) *Orchestrator {
	o := &Orchestrator{
		profiles: profiles,
		buttons:  buttons,
		actor:    actor,
		gate:     gate,
		loc:      loc,
		store:    st,
		renderer: renderer,
		cfg:      cfg,
		rng:      rng,
		sleep:    sleepCtx,
	}
	o.nextBreak = o.breakCadence()
	return o
}

// State reports the current lifecycle phase
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SwipeCount reports swipes performed in the current session
func (o *Orchestrator) SwipeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.swipeCount
}

// Stop requests a clean stop at the next loop boundary. Repeat calls inside
// the debounce window are ignored.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning {
		return
	}
	if time.Since(o.lastStop) < stopDebounce {
		return
	}
	o.lastStop = time.Now()
	o.stopping = true
}

// Run executes the session loop until a stop condition, a fatal error, or
// context cancellation. Only one session may run at a time.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return errors.New("session already running")
	}
	o.state = StateRunning
	o.stopping = false
	o.swipeCount = 0
	o.mu.Unlock()

	o.gate.ResetSession()
	o.renderer.RefreshStatus()
	log.Printf("[swipe] session started (max %d)", o.cfg.MaxSwipes)

	err := o.loop(ctx)

	o.mu.Lock()
	o.state = StateStopped
	o.swipeCount = 0
	o.mu.Unlock()
	o.renderer.RefreshStatus()

	if err != nil {
		log.Printf("[swipe] session ended: %v", err)
	} else {
		log.Printf("[swipe] session ended cleanly")
	}
	return err
}

func (o *Orchestrator) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.mu.Lock()
		stopping := o.stopping
		o.mu.Unlock()
		if stopping {
			return nil
		}

		if err := o.checkLocation(ctx); err != nil {
			return err
		}

		view, err := o.currentProfile(ctx)
		if err != nil {
			o.renderer.Notice("Stopping: could not read the next profile")
			return err
		}

		outcome := decision.Decide(view, o.cfg.Filters, o.rng)

		selector, err := o.findButton(ctx, outcome)
		if err != nil {
			// A deck with no actionable button usually means the daily
			// budget ran out, which is a normal end of session
			o.renderer.Banner("No likes remaining, stopping")
			return nil
		}

		ok, err := o.gate.CheckRateLimit(ctx)
		if err != nil {
			return err
		}
		if !ok {
			o.renderer.Banner("Session action cap reached, stopping")
			return nil
		}

		if err := o.actor.Click(ctx, selector); err != nil {
			return fmt.Errorf("swipe click failed: %w", err)
		}

		o.recordSwipe(outcome)

		o.mu.Lock()
		o.swipeCount++
		count := o.swipeCount
		o.mu.Unlock()

		log.Printf("[swipe] %s (%d)", outcome, count)

		if o.cfg.MaxSwipes > 0 && count >= o.cfg.MaxSwipes {
			o.announceSessionEnd()
			return nil
		}

		if err := o.pause(ctx, count); err != nil {
			return err
		}
	}
}

// checkLocation stops the session when the page has left the deck. Swiping
// on the wrong view would click whatever happens to match the selectors.
func (o *Orchestrator) checkLocation(ctx context.Context) error {
	loc, err := o.loc.Location(ctx)
	if err != nil {
		return fmt.Errorf("failed to read location: %w", err)
	}
	if !strings.Contains(loc, o.cfg.AllowedPath) {
		o.renderer.Notice("Stopping: left the swipe view")
		return fmt.Errorf("not on swipe view: %s", loc)
	}
	return nil
}

func (o *Orchestrator) currentProfile(ctx context.Context) (decision.ProfileView, error) {
	var last error
	for attempt := 0; attempt < profileRetries; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, retryDelay(attempt-1)); err != nil {
				return decision.ProfileView{}, err
			}
		}
		view, err := o.profiles.Current(ctx)
		if err == nil {
			return view, nil
		}
		last = err
	}
	return decision.ProfileView{}, fmt.Errorf("no profile after %d attempts: %w", profileRetries, last)
}

func (o *Orchestrator) findButton(ctx context.Context, outcome decision.Outcome) (string, error) {
	var last error
	for attempt := 0; attempt < buttonRetries; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, retryDelay(attempt-1)); err != nil {
				return "", err
			}
		}
		sel, err := o.buttons.Find(ctx, outcome)
		if err == nil {
			return sel, nil
		}
		last = err
	}
	return "", fmt.Errorf("no %s button after %d attempts: %w", outcome, buttonRetries, last)
}

func (o *Orchestrator) recordSwipe(outcome decision.Outcome) {
	var delta store.Analytics
	if outcome == decision.Like {
		delta.Likes = 1
	} else {
		delta.Nopes = 1
	}
	if err := o.store.AddSessionAnalytics(store.Today(), delta); err != nil {
		log.Printf("[swipe] failed to record session analytics: %v", err)
	}
	if err := o.store.AddAllTimeAnalytics(delta); err != nil {
		log.Printf("[swipe] failed to record all-time analytics: %v", err)
	}
}

func (o *Orchestrator) announceSessionEnd() {
	a, err := o.store.SessionAnalytics(store.Today())
	if err != nil {
		o.renderer.Notice("Session complete")
		return
	}
	o.renderer.Notice(fmt.Sprintf("Session complete: %d likes, %d nopes today", a.Likes, a.Nopes))
}

// pause sleeps the humanized inter-swipe interval, taking the occasional
// longer break
func (o *Orchestrator) pause(ctx context.Context, count int) error {
	if count >= o.nextBreak {
		o.nextBreak = count + o.breakCadence()
		d := time.Duration(8000+o.rng.Intn(7001)) * time.Millisecond
		log.Printf("[swipe] taking a break for %s", d.Round(time.Second))
		return o.sleep(ctx, d)
	}
	return o.sleep(ctx, o.swipeDelay(count))
}

// swipeDelay widens the pause as the session ages: the low bound grows
// linearly to twice its start value, the high bound to one and a half times
func (o *Orchestrator) swipeDelay(count int) time.Duration {
	progress := 0.0
	if o.cfg.MaxSwipes > 0 {
		progress = float64(count) / float64(o.cfg.MaxSwipes)
		if progress > 1 {
			progress = 1
		}
	}
	lo := float64(o.cfg.MinDelay) * (1 + progress)
	hi := float64(o.cfg.MaxDelay) * (1 + 0.5*progress)
	if hi <= lo {
		hi = lo + float64(time.Second)
	}
	return time.Duration(lo + o.rng.Float64()*(hi-lo))
}

// breakCadence draws how many swipes until the next long break (7 to 12)
func (o *Orchestrator) breakCadence() int {
	return 7 + o.rng.Intn(6)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
