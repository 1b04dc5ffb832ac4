package ai

import (
	"encoding/json"
	"time"

	"github.com/mprichard/swipebot/internal/store"
)

// windowCounter is a per-provider request budget over a rolling window,
// persisted so restarts don't reset it
type windowCounter struct {
	Count     int       `json:"count"`
	LastReset time.Time `json:"last_reset"`
	Limit     int       `json:"limit"`
	WindowSec int       `json:"window_sec"`
}

// defaultLimits per provider; conservative enough to stay well under every
// backend's free-tier ceiling
var defaultLimits = map[string]windowCounter{
	"claude": {Limit: 30, WindowSec: 3600},
	"openai": {Limit: 30, WindowSec: 3600},
	"gemini": {Limit: 60, WindowSec: 3600},
}

// allowRequest consumes one slot from the provider's window. It performs a
// read-merge-write through the store so parallel callers can't double-spend.
func allowRequest(st *store.Store, provider string, now time.Time) (bool, error) {
	allowed := false
	err := st.Update(store.KeyAIRateLimits, func(raw []byte) (any, error) {
		limits := map[string]windowCounter{}
		if raw != nil {
			if err := json.Unmarshal(raw, &limits); err != nil {
				return nil, err
			}
		}

		c, ok := limits[provider]
		if !ok {
			c = defaultLimits[provider]
			if c.Limit == 0 {
				c = windowCounter{Limit: 30, WindowSec: 3600}
			}
		}

		window := time.Duration(c.WindowSec) * time.Second
		if c.LastReset.IsZero() || now.Sub(c.LastReset) >= window {
			c.Count = 0
			c.LastReset = now
		}

		if c.Count < c.Limit {
			c.Count++
			allowed = true
		} else {
			allowed = false
		}

		limits[provider] = c
		return limits, nil
	})
	return allowed, err
}
