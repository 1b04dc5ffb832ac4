// Package stealth simulates human-like input and paces every guarded action.
// The rate limiter deliberately treats each guarded call as a failure-window
// tick: every action is a signal to reassess risk, not just a throttle. That
// conservative posture is carried over intact.
package stealth

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mprichard/swipebot/internal/dom"
	"github.com/mprichard/swipebot/internal/notify"
	"github.com/mprichard/swipebot/internal/store"
)

// Pointer is the raw input surface the engine drives. dom.Page implements it
// against the live tab; tests implement it in memory.
type Pointer interface {
	Center(ctx context.Context, selector string) (x, y float64, found bool, err error)
	MouseMove(ctx context.Context, x, y float64) error
	MousePress(ctx context.Context, x, y float64) error
	MouseRelease(ctx context.Context, x, y float64) error
	Focus(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	FireChange(ctx context.Context, selector string) error
}

// Escalation thresholds for the failure-window counter
const (
	slowDownThreshold = 3
	stealthThreshold  = 5
	failureWindow     = time.Hour
	maxLogEntries     = 100
	trajectorySteps   = 10
)

// LogEntry is one diagnostic event, newest first in the persisted buffer
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// persisted anti-detection state
type state struct {
	StealthMode     bool      `json:"stealth_mode"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
}

// Config tunes the engine
type Config struct {
	// MinActionGap is the minimum interval between guarded actions
	MinActionGap time.Duration
	// SessionCap is the hard per-session action budget
	SessionCap int
}

// Engine is the process-wide anti-detection singleton. Construct exactly one
// and inject it; state persists through the store on every mutation.
type Engine struct {
	pointer  Pointer
	store    *store.Store
	renderer notify.Renderer
	limiter  *rate.Limiter
	cfg      Config

	mu          sync.Mutex
	st          state
	diagLog     []LogEntry
	actionCount int
	rng         *rand.Rand
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates the engine and restores persisted state
func New(pointer Pointer, st *store.Store, renderer notify.Renderer, cfg Config) *Engine {
	if cfg.MinActionGap <= 0 {
		cfg.MinActionGap = 2 * time.Second
	}
	if cfg.SessionCap <= 0 {
		cfg.SessionCap = 100
	}

	e := &Engine{
		pointer:  pointer,
		store:    st,
		renderer: renderer,
		limiter:  rate.NewLimiter(rate.Every(cfg.MinActionGap), 1),
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
		sleep:    sleepCtx,
	}
	e.restore()
	return e
}

func (e *Engine) restore() {
	if e.store == nil {
		return
	}
	if _, err := e.store.Get(store.KeyStealthMode, &e.st); err != nil {
		log.Printf("[stealth] failed to restore state: %v", err)
	}
	if _, err := e.store.Get(store.KeyDiagnosticLog, &e.diagLog); err != nil {
		log.Printf("[stealth] failed to restore diagnostic log: %v", err)
	}
}

func (e *Engine) persistLocked() {
	if e.store == nil {
		return
	}
	if err := e.store.Set(store.KeyStealthMode, e.st); err != nil {
		log.Printf("[stealth] failed to persist state: %v", err)
	}
}

// StealthMode reports whether the widened timing profile is active
func (e *Engine) StealthMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.StealthMode
}

// SetStealthMode forces the timing profile
func (e *Engine) SetStealthMode(on bool) {
	e.mu.Lock()
	e.st.StealthMode = on
	e.persistLocked()
	e.mu.Unlock()
	e.renderer.RefreshStatus()
}

// FailureCount exposes the current failure-window counter
func (e *Engine) FailureCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.FailureCount
}

// ResetSession zeroes the per-session action budget
func (e *Engine) ResetSession() {
	e.mu.Lock()
	e.actionCount = 0
	e.mu.Unlock()
}

// SimulateClick walks the pointer from a random screen point to the element
// center over a randomized multi-step trajectory, pauses, then dispatches the
// canonical mousedown/mouseup/click sequence with randomized gaps. Exists to
// defeat detection heuristics keyed on instantaneous, perfect pointer jumps.
func (e *Engine) SimulateClick(ctx context.Context, selector string) error {
	x, y, found, err := e.pointer.Center(ctx, selector)
	if err != nil {
		return fmt.Errorf("failed to locate %s: %w", selector, err)
	}
	if !found {
		return fmt.Errorf("element not found: %s", selector)
	}

	// Random starting point somewhere on screen
	startX := e.randFloat(0, 1280)
	startY := e.randFloat(0, 720)

	for i := 1; i <= trajectorySteps; i++ {
		t := float64(i) / float64(trajectorySteps)
		// Linear path with per-step jitter
		px := startX + (x-startX)*t + e.randFloat(-3, 3)
		py := startY + (y-startY)*t + e.randFloat(-3, 3)
		if err := e.pointer.MouseMove(ctx, px, py); err != nil {
			return err
		}
		if err := e.sleep(ctx, e.stepDelay()); err != nil {
			return err
		}
	}

	if err := e.sleep(ctx, e.preActionDelay()); err != nil {
		return err
	}

	if err := e.pointer.MousePress(ctx, x, y); err != nil {
		return err
	}
	if err := e.sleep(ctx, e.eventGap()); err != nil {
		return err
	}
	if err := e.pointer.MouseRelease(ctx, x, y); err != nil {
		return err
	}
	return nil
}

// Click satisfies the single-method clicker interfaces consumers declare
func (e *Engine) Click(ctx context.Context, selector string) error {
	return e.SimulateClick(ctx, selector)
}

// SimulateInput focuses the element and types the text in randomized chunks,
// then fires the input/change pair frameworks listen for
func (e *Engine) SimulateInput(ctx context.Context, selector, text string) error {
	if err := e.pointer.Focus(ctx, selector); err != nil {
		return fmt.Errorf("failed to focus %s: %w", selector, err)
	}
	if err := e.sleep(ctx, e.preActionDelay()); err != nil {
		return err
	}

	for _, r := range text {
		if err := e.pointer.Type(ctx, selector, string(r)); err != nil {
			return err
		}
		if err := e.sleep(ctx, e.keyDelay()); err != nil {
			return err
		}
	}

	if err := e.sleep(ctx, e.eventGap()); err != nil {
		return err
	}
	return e.pointer.FireChange(ctx, selector)
}

// CheckRateLimit gates a guarded action. It waits out the minimum
// inter-action interval, enforces the session cap (returns false when hit),
// and ticks the failure window: within the window the counter climbs and
// escalates, past it the counter resets to exactly 1.
func (e *Engine) CheckRateLimit(ctx context.Context) (bool, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return false, err
	}

	e.mu.Lock()
	e.actionCount++
	capped := e.actionCount > e.cfg.SessionCap

	now := e.now()
	if !e.st.LastFailureTime.IsZero() && now.Sub(e.st.LastFailureTime) < failureWindow {
		e.st.FailureCount++
	} else {
		e.st.FailureCount = 1
	}
	e.st.LastFailureTime = now

	escalate := !e.st.StealthMode && e.st.FailureCount >= stealthThreshold
	if escalate {
		e.st.StealthMode = true
	}
	slowDown := e.st.FailureCount >= slowDownThreshold
	e.persistLocked()
	e.mu.Unlock()

	if escalate {
		e.AddDiagnosticLog("stealth mode engaged after repeated pressure")
		e.renderer.Banner("Switching to stealth timing profile")
	} else if slowDown {
		e.AddDiagnosticLog("rate pressure rising, slowing down")
	}

	if capped {
		e.AddDiagnosticLog("session action cap reached")
		return false, nil
	}
	return true, nil
}

// captchaPhrases indicate a bot challenge somewhere on the page
var captchaPhrases = []string{
	"verify you are human",
	"unusual activity",
	"captcha",
	"are you a robot",
	"security check",
	"prove you're not a robot",
}

// DetectCAPTCHA keyword-scans the page's visible text for challenge
// indicators. Detection only - recovery is the caller's call.
func (e *Engine) DetectCAPTCHA(doc *dom.Document) bool {
	text := strings.ToLower(doc.Text())
	for _, phrase := range captchaPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// AddDiagnosticLog pushes a timestamped entry to the front of the capped
// buffer, persists it, and pokes the UI
func (e *Engine) AddDiagnosticLog(msg string) {
	e.mu.Lock()
	e.diagLog = append([]LogEntry{{Time: e.now(), Message: msg}}, e.diagLog...)
	if len(e.diagLog) > maxLogEntries {
		e.diagLog = e.diagLog[:maxLogEntries]
	}
	snapshot := make([]LogEntry, len(e.diagLog))
	copy(snapshot, e.diagLog)
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.Set(store.KeyDiagnosticLog, snapshot); err != nil {
			log.Printf("[stealth] failed to persist diagnostic log: %v", err)
		}
	}
	e.renderer.RefreshStatus()
}

// DiagnosticLog returns a copy of the buffer, newest first
func (e *Engine) DiagnosticLog() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LogEntry, len(e.diagLog))
	copy(out, e.diagLog)
	return out
}

// Timing helpers. Stealth mode widens every range.

func (e *Engine) stepDelay() time.Duration {
	if e.stealthLocked() {
		return e.randDuration(30, 120)
	}
	return e.randDuration(10, 50)
}

func (e *Engine) preActionDelay() time.Duration {
	if e.stealthLocked() {
		return e.randDuration(800, 2500)
	}
	return e.randDuration(200, 800)
}

func (e *Engine) eventGap() time.Duration {
	if e.stealthLocked() {
		return e.randDuration(80, 250)
	}
	return e.randDuration(30, 120)
}

func (e *Engine) keyDelay() time.Duration {
	if e.stealthLocked() {
		return e.randDuration(120, 350)
	}
	return e.randDuration(40, 150)
}

func (e *Engine) stealthLocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.StealthMode
}

func (e *Engine) randDuration(minMs, maxMs int) time.Duration {
	e.mu.Lock()
	n := minMs + e.rng.Intn(maxMs-minMs+1)
	e.mu.Unlock()
	return time.Duration(n) * time.Millisecond
}

func (e *Engine) randFloat(lo, hi float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo + e.rng.Float64()*(hi-lo)
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
