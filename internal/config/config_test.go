package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 600, cfg.TimeoutSlides)
	assert.Equal(t, 120, cfg.TimeoutResearch)
	assert.Equal(t, 60, cfg.TimeoutDownload)
	assert.Equal(t, 120, cfg.TimeoutLogin)
	assert.False(t, cfg.BrowserHeadless)
	assert.Equal(t, 1920, cfg.ViewportWidth)
	assert.Equal(t, 1080, cfg.ViewportHeight)
	assert.Equal(t, "ko", cfg.DefaultLanguage)
	assert.True(t, cfg.SaveScreenshots)
	assert.InDelta(t, 0.5, cfg.OCRConfidenceThreshold, 1e-9)
	assert.Nil(t, cfg.WorkerID)
}

func TestProfileDirByWorker(t *testing.T) {
	cfg := Default()
	cfg.AuthDir = "/tmp/auth"

	assert.Equal(t, filepath.Join("/tmp/auth", "browser_profile"), cfg.ProfileDir())

	w0 := cfg.ForWorker(0)
	w3 := cfg.ForWorker(3)
	assert.Equal(t, filepath.Join("/tmp/auth", "browser_profile_0"), w0.ProfileDir())
	assert.Equal(t, filepath.Join("/tmp/auth", "browser_profile_3"), w3.ProfileDir())

	// the receiver is untouched
	assert.Nil(t, cfg.WorkerID)
}

func TestForWorkerCopies(t *testing.T) {
	cfg := Default()
	w := cfg.ForWorker(7)
	require.NotNil(t, w.WorkerID)
	assert.Equal(t, 7, *w.WorkerID)
	w.DownloadDir = "elsewhere"
	assert.NotEqual(t, cfg.DownloadDir, w.DownloadDir)
}

func TestValidateLogin(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ValidateLogin())

	cfg.GoogleEmail = "a@b.c"
	cfg.GooglePassword = "pw"
	assert.Error(t, cfg.ValidateLogin(), "still missing TOTP secret")

	cfg.TOTPSecret = "JBSWY3DPEHPK3PXP"
	assert.NoError(t, cfg.ValidateLogin())
}

func TestValidatePublish(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ValidatePublish())
	cfg.FirebaseProjectID = "demo-project"
	assert.Error(t, cfg.ValidatePublish())
	cfg.FirebaseBucket = "demo-project.appspot.com"
	assert.NoError(t, cfg.ValidatePublish())
}

func TestLayoutPaths(t *testing.T) {
	cfg := Default()
	cfg.AuthDir = "/a"
	cfg.DownloadDir = "/d"
	assert.Equal(t, filepath.Join("/a", "auth.json"), cfg.AuthFile())
	assert.Equal(t, filepath.Join("/a", "profiles", "default"), cfg.CredentialDir())
	assert.Equal(t, filepath.Join("/d", "debug_screenshots"), cfg.ScreenshotDir())
}
