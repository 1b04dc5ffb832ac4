// Command swipebot runs the automation daemon: it attaches to the site with
// stored session cookies, swipes the deck, and works the message queue.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chromedp/chromedp"

	"github.com/mprichard/swipebot/internal/app"
	"github.com/mprichard/swipebot/internal/auth"
	browseropts "github.com/mprichard/swipebot/internal/browser"
	"github.com/mprichard/swipebot/internal/config"
)

func main() {
	cmd := "run"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "run":
		if err := run(); err != nil {
			log.Fatalf("swipebot: %v", err)
		}
	case "login":
		if err := login(); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		log.Println("Login successful, session saved.")
	case "logout":
		if err := logout(); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		log.Println("Session cleared.")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: swipebot <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run      Start the bot (default)")
	fmt.Println("  login    Open a browser window to log in and save the session")
	fmt.Println("  logout   Delete the saved session")
}

// loadConfig reads the config file, writing defaults on first run
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = config.Default()
	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("failed to write default config: %w", err)
	}
	path, _ := config.ConfigPath()
	log.Printf("Wrote default config to %s", path)
	return cfg, nil
}

func authManager(cfg *config.Config) (*auth.Manager, error) {
	path, err := auth.DefaultCookieStorePath()
	if err != nil {
		return nil, err
	}
	cookies := auth.NewCookieStore(path, cfg.Site.Passphrase)
	return auth.NewManager(cookies, cfg.Site.BaseURL), nil
}

func login() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mgr, err := authManager(cfg)
	if err != nil {
		return err
	}
	return mgr.Login(context.Background())
}

func logout() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mgr, err := authManager(cfg)
	if err != nil {
		return err
	}
	return mgr.Logout()
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr, err := authManager(cfg)
	if err != nil {
		return err
	}
	if !mgr.IsAuthenticated() {
		return errors.New("no valid session; run `swipebot login` first")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, browseropts.Options(cfg.Site.Headless)...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// Land on the base URL first so cookie injection has an origin
	if err := chromedp.Run(browserCtx, chromedp.Navigate(cfg.Site.BaseURL)); err != nil {
		return fmt.Errorf("failed to open site: %w", err)
	}
	if err := mgr.Inject(browserCtx); err != nil {
		return fmt.Errorf("failed to inject session: %w", err)
	}
	if err := chromedp.Run(browserCtx, chromedp.Navigate(cfg.Site.BaseURL+"/app/recs")); err != nil {
		return fmt.Errorf("failed to open swipe view: %w", err)
	}

	a, err := app.New(browserCtx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Println("[swipebot] Starting")
	err = a.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}
