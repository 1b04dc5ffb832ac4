// Package browser provides shared chromedp configuration with
// anti-bot-detection measures.
package browser

import (
	"math/rand"

	"github.com/chromedp/chromedp"
)

// userAgents are realistic desktop Chrome/Firefox/Safari strings; one is
// picked per process so the fingerprint stays stable within a session
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// viewports are common desktop resolutions, jittered slightly per session
var viewports = []struct{ w, h int }{
	{1920, 1080},
	{1536, 864},
	{1440, 900},
	{1366, 768},
}

// Options returns chromedp allocator options with anti-bot-detection
// measures. All browser instances should use this to ensure consistent
// stealth configuration.
func Options(headless bool) []chromedp.ExecAllocatorOption {
	ua := userAgents[rand.Intn(len(userAgents))]
	vp := viewports[rand.Intn(len(viewports))]

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),

		// Prevent navigator.webdriver = true detection; this is the first
		// thing the site checks
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(ua),
		chromedp.WindowSize(vp.w+rand.Intn(20)-10, vp.h+rand.Intn(20)-10),

		// Disable automation-related extensions and features
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}

	return opts
}
