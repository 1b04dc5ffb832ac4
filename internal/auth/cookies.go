package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/mprichard/swipebot/internal/config"
	"github.com/mprichard/swipebot/internal/secure"
)

// sessionCookies are the cookies that carry the login session; losing either
// means we're logged out
var sessionCookies = []string{"confirmed", "exp"}

// CookieStore handles storage of site session cookies. With a passphrase set
// the file is sealed with AES-GCM; without one it falls back to plain JSON.
type CookieStore struct {
	path       string
	passphrase string
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path, passphrase string) *CookieStore {
	return &CookieStore{path: path, passphrase: passphrase}
}

// DefaultCookieStorePath returns the default path for cookie storage
func DefaultCookieStorePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.bin"), nil
}

// Save persists cookies to disk
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Earliest expiration among the session cookies bounds validity
	var earliestExpiry time.Time
	for _, c := range cookies {
		if isSessionCookie(c.Name) {
			exp := time.Unix(int64(c.Expires), 0)
			if earliestExpiry.IsZero() || exp.Before(earliestExpiry) {
				earliestExpiry = exp
			}
		}
	}

	stored := StoredCookies{
		Cookies:    cookies,
		CapturedAt: time.Now(),
		ExpiresAt:  earliestExpiry,
	}

	var data []byte
	var err error
	if cs.passphrase != "" {
		data, err = secure.EncryptJSON(stored, cs.passphrase)
	} else {
		data, err = json.MarshalIndent(stored, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(cs.path, data, 0600)
}

// Load retrieves cookies from disk
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if cs.passphrase != "" {
		err = secure.DecryptJSON(data, cs.passphrase, &stored)
	} else {
		err = json.Unmarshal(data, &stored)
	}
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

// IsValid checks if stored cookies are still usable
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}

	if !stored.ExpiresAt.IsZero() && time.Now().After(stored.ExpiresAt) {
		return false
	}

	found := 0
	for _, c := range stored.Cookies {
		if isSessionCookie(c.Name) {
			found++
		}
	}
	return found == len(sessionCookies)
}

// Clear removes stored cookies
func (cs *CookieStore) Clear() error {
	return os.Remove(cs.path)
}

// SiteCookies returns only the cookies scoped to the target site
func (cs *CookieStore) SiteCookies(domain string) ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}

	var out []*network.Cookie
	for _, c := range stored.Cookies {
		if c.Domain == domain || c.Domain == "."+domain {
			out = append(out, c)
		}
	}

	return out, nil
}

func isSessionCookie(name string) bool {
	for _, n := range sessionCookies {
		if n == name {
			return true
		}
	}
	return false
}
