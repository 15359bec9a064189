// Package browser drives a Chrome instance bound to a persistent profile
// directory and provides the coordinate-based interaction primitives the
// notebook product's overlay UI requires.
package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"noterang/internal/logging"
)

const defaultRunTimeout = 60 * time.Second

// Config describes one browser instance. ProfileDir must not be shared by
// two live managers; batch workers derive distinct directories.
type Config struct {
	ProfileDir     string
	DownloadDir    string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	ChromePath     string
}

func (c Config) viewportOrDefault() (int, int) {
	w, h := c.ViewportWidth, c.ViewportHeight
	if w <= 0 {
		w = 1920
	}
	if h <= 0 {
		h = 1080
	}
	return w, h
}

// Manager owns the Chrome process for one profile and its single automation
// tab. Call Close to terminate Chrome on shutdown.
type Manager struct {
	cfg         Config
	log         logging.Logger
	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tab         *tab
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

func NewManager(cfg Config, log logging.Logger) *Manager {
	return &Manager{cfg: cfg, log: logging.OrNop(log)}
}

func (m *Manager) Config() Config {
	if m == nil {
		return Config{}
	}
	return m.cfg
}

// ensureAllocator lazily starts Chrome on the profile. Must be called with
// m.mu held.
func (m *Manager) ensureAllocator() error {
	if m.allocCtx != nil && m.allocCtx.Err() == nil {
		return nil
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}

	w, h := m.cfg.viewportOrDefault()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
		chromedp.Flag("lang", "ko-KR"),
		chromedp.WindowSize(w, h),
	)
	if path := strings.TrimSpace(m.cfg.ChromePath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	if dir := strings.TrimSpace(m.cfg.ProfileDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create profile dir: %w", err)
		}
		opts = append(opts, chromedp.UserDataDir(dir))
	}
	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return nil
}

// resetAllocator tears Chrome down so the next call starts fresh. Must be
// called with m.mu held.
func (m *Manager) resetAllocator() {
	if m.tab != nil {
		m.tab.close()
		m.tab = nil
	}
	if m.allocCancel != nil {
		m.allocCancel()
		m.allocCancel = nil
		m.allocCtx = nil
	}
}

// Tab returns the automation tab, starting Chrome if needed. A crashed
// Chrome is restarted once.
func (m *Manager) Tab() (*tab, error) {
	if m == nil {
		return nil, fmt.Errorf("browser manager is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tab != nil && m.tab.ctx.Err() == nil {
		return m.tab, nil
	}

	t, err := m.newTab()
	if err != nil {
		m.log.Warn("browser start failed, restarting chrome: %v", err)
		m.resetAllocator()
		t, err = m.newTab()
		if err != nil {
			return nil, err
		}
	}
	m.tab = t
	return t, nil
}

// newTab opens the automation tab. Must be called with m.mu held.
func (m *Manager) newTab() (*tab, error) {
	if err := m.ensureAllocator(); err != nil {
		return nil, err
	}
	ctx, cancel := chromedp.NewContext(m.allocCtx)
	if err := chromedp.Run(ctx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, err
	}
	return &tab{ctx: ctx, cancel: cancel}, nil
}

// Close terminates the tab and the Chrome process. The profile directory on
// disk stays valid for the next run.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetAllocator()
}

func (t *tab) close() {
	if t == nil {
		return
	}
	if t.cancel != nil {
		t.cancel()
	}
}

// withRunContext runs fn against the tab under a per-call timeout, honoring
// the caller's context cancellation.
func (t *tab) withRunContext(callCtx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if t == nil {
		return fmt.Errorf("browser tab is nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	runCtx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()
	if callCtx != nil {
		if done := callCtx.Done(); done != nil {
			go func() {
				select {
				case <-done:
					cancel()
				case <-runCtx.Done():
				}
			}()
		}
	}
	return fn(runCtx)
}
