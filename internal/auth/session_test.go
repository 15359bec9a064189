package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"noterang/internal/config"
)

func testSessionConfig(t *testing.T, headless bool) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.AuthDir = t.TempDir()
	cfg.DownloadDir = t.TempDir()
	cfg.BrowserHeadless = headless
	return cfg
}

func TestLoginManagerInteractiveIsVisibleDespiteHeadlessConfig(t *testing.T) {
	s := NewSession(testSessionConfig(t, true), nil)
	defer s.Close()

	mgr, cleanup := s.loginManager(false)
	defer cleanup()
	assert.False(t, mgr.Config().Headless)
}

func TestLoginManagerHeadlessAttemptIsHeadless(t *testing.T) {
	s := NewSession(testSessionConfig(t, false), nil)
	defer s.Close()

	mgr, cleanup := s.loginManager(true)
	defer cleanup()
	assert.True(t, mgr.Config().Headless)
}

func TestLoginManagerReusesVisibleWorkflowBrowser(t *testing.T) {
	s := NewSession(testSessionConfig(t, false), nil)
	defer s.Close()

	mgr, cleanup := s.loginManager(false)
	defer cleanup()
	assert.Same(t, s.Browser(), mgr)
	assert.False(t, mgr.Config().Headless)
}
