package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	Version   int             `toml:"version"`
	Site      SiteConfig      `toml:"site"`
	Filters   FilterConfig    `toml:"filters"`
	Swipe     SwipeConfig     `toml:"swipe"`
	Messaging MessagingConfig `toml:"messaging"`
	Providers ProvidersConfig `toml:"providers"`
}

type SiteConfig struct {
	BaseURL  string `toml:"base_url"`
	Headless bool   `toml:"headless"`
	// Passphrase encrypts the session cookie file at rest. Empty disables
	// encryption.
	Passphrase string `toml:"passphrase"`
}

type FilterConfig struct {
	Keywords  []string `toml:"keywords"`
	MinPhotos int      `toml:"min_photos"`
	LikeRatio float64  `toml:"like_ratio"`
}

type SwipeConfig struct {
	MaxSwipes          int `toml:"max_swipes"`
	MinDelaySeconds    int `toml:"min_delay_seconds"`
	MaxDelaySeconds    int `toml:"max_delay_seconds"`
	SessionActionCap   int `toml:"session_action_cap"`
	MinActionGapMillis int `toml:"min_action_gap_millis"`
}

type MessagingConfig struct {
	AutoSend             bool     `toml:"auto_send"`
	AutoMessageOnMatch   bool     `toml:"auto_message_on_match"`
	SendDelaySeconds     int      `toml:"send_delay_seconds"`
	DrainIntervalSeconds int      `toml:"drain_interval_seconds"`
	Tone                 string   `toml:"tone"`
	Languages            []string `toml:"languages"`
}

type ProvidersConfig struct {
	Active         string `toml:"active"`
	AnthropicKey   string `toml:"anthropic_key"`
	AnthropicModel string `toml:"anthropic_model"`
	OpenAIKey      string `toml:"openai_key"`
	OpenAIModel    string `toml:"openai_model"`
	GeminiKey      string `toml:"gemini_key"`
	GeminiModel    string `toml:"gemini_model"`
}

// Provider names used across the gateway and config
const (
	ProviderAnthropic = "claude"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Site: SiteConfig{
			BaseURL:  "https://tinder.com",
			Headless: false,
		},
		Filters: FilterConfig{
			Keywords:  []string{},
			MinPhotos: 0,
			LikeRatio: 0.7,
		},
		Swipe: SwipeConfig{
			MaxSwipes:          50,
			MinDelaySeconds:    3,
			MaxDelaySeconds:    8,
			SessionActionCap:   100,
			MinActionGapMillis: 2000,
		},
		Messaging: MessagingConfig{
			AutoSend:             false,
			AutoMessageOnMatch:   false,
			SendDelaySeconds:     30,
			DrainIntervalSeconds: 5,
			Tone:                 "playful",
			Languages:            []string{"en"},
		},
		Providers: ProvidersConfig{
			Active:         ProviderAnthropic,
			AnthropicModel: "claude-sonnet-4-20250514",
			OpenAIModel:    "gpt-4o-mini",
			GeminiModel:    "gemini-2.0-flash",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "swipebot"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "swipebot"), nil
}

// DataPath returns the path to the durable key-value store
func DataPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
