// Package auth produces and maintains the login state for the notebook
// product: scripted OAuth with a TOTP second factor, cookie and CSRF
// extraction from a persistent browser profile, and on-disk mirroring for
// the API client.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"noterang/internal/browser"
	"noterang/internal/config"
	"noterang/internal/logging"
)

const (
	// ProductURL is the notebook product home.
	ProductURL = "https://notebooklm.google.com/"
	// accountsHost marks the identity-provider pages of the login flow.
	accountsHost = "accounts.google.com"

	// headlessLoginTimeout bounds the silent refresh attempt before
	// falling back to a visible window.
	headlessLoginTimeout = 30 * time.Second
)

// ClientControl is the slice of the API client lifecycle EnsureAuth drives:
// TTL inspection, teardown, and a lightweight authenticated probe.
type ClientControl interface {
	Expired() bool
	Close()
	Probe(ctx context.Context) error
}

// Session owns the persistent browser profile and the credential store for
// one worker.
type Session struct {
	cfg   *config.Config
	log   logging.Logger
	store Store

	mu      sync.Mutex
	visible *browser.Manager
}

func NewSession(cfg *config.Config, log logging.Logger) *Session {
	return &Session{
		cfg: cfg,
		log: logging.OrNop(log),
		store: Store{
			RootFile:      cfg.AuthFile(),
			CredentialDir: cfg.CredentialDir(),
		},
	}
}

// Store exposes the credential mirror locations.
func (s *Session) Store() Store { return s.store }

// Browser returns the session's browser manager, starting it lazily. The
// workflow shares this manager so the profile has exactly one live context.
func (s *Session) Browser() *browser.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visible == nil {
		s.visible = browser.NewManager(s.browserConfig(s.cfg.BrowserHeadless), s.log)
	}
	return s.visible
}

// Close terminates the session's browser. Profile and credentials on disk
// stay valid.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visible != nil {
		s.visible.Close()
		s.visible = nil
	}
}

func (s *Session) browserConfig(headless bool) browser.Config {
	return browser.Config{
		ProfileDir:     s.cfg.ProfileDir(),
		DownloadDir:    s.cfg.DownloadDir,
		Headless:       headless,
		ViewportWidth:  s.cfg.ViewportWidth,
		ViewportHeight: s.cfg.ViewportHeight,
	}
}

// Login runs the scripted OAuth flow and mirrors the resulting artifact.
// A headless login uses a short-lived browser on the same profile; the
// visible login reuses the session's browser.
func (s *Session) Login(ctx context.Context, headless bool, timeout time.Duration) (*Artifact, error) {
	if err := s.cfg.ValidateLogin(); err != nil {
		return nil, err
	}

	mgr, cleanup := s.loginManager(headless)
	defer cleanup()

	drv := browser.NewDriver(mgr, s.cfg.ScreenshotDir(), s.cfg.SaveScreenshots, s.log)
	artifact, cookies, err := s.runLogin(ctx, drv, timeout)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(artifact, cookies, time.Now()); err != nil {
		return nil, fmt.Errorf("mirror credentials: %w", err)
	}
	s.log.Info("login succeeded, %d cookies mirrored", len(artifact.Cookies))
	return artifact, nil
}

// loginManager picks the browser for a login attempt. A headless attempt
// gets its own short-lived manager. An interactive attempt must be visible
// so the user can clear challenges, even when the workflow browser is
// configured headless; only a non-headless workflow browser is reused.
// The visible browser must be down before a second context may touch the
// profile.
func (s *Session) loginManager(headless bool) (*browser.Manager, func()) {
	if !headless && !s.cfg.BrowserHeadless {
		return s.Browser(), func() {}
	}
	s.Close()
	mgr := browser.NewManager(s.browserConfig(headless), s.log)
	return mgr, mgr.Close
}

// EnsureAuth makes the client usable: TTL check, probe, headless refresh,
// then interactive login. Returns nil when a final probe succeeds.
func (s *Session) EnsureAuth(ctx context.Context, client ClientControl) error {
	if client.Expired() {
		s.log.Debug("client session past TTL, closing")
		client.Close()
	}
	if err := client.Probe(ctx); err == nil {
		return nil
	} else {
		s.log.Debug("auth probe failed: %v", err)
	}

	client.Close()
	if _, err := s.Login(ctx, true, headlessLoginTimeout); err != nil {
		s.log.Warn("headless login failed: %v", err)
		loginTimeout := time.Duration(s.cfg.TimeoutLogin) * time.Second
		if _, err := s.Login(ctx, false, loginTimeout); err != nil {
			return fmt.Errorf("interactive login failed: %w", err)
		}
	}
	if err := client.Probe(ctx); err != nil {
		return fmt.Errorf("auth probe failed after login: %w", err)
	}
	return nil
}
