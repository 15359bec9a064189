// Package config loads and persists noterang settings.
//
// Settings come from three layers, later layers winning: built-in defaults,
// the noterang-config.json file ($HOME/.noterang or the working directory),
// and environment variables for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configName = "noterang-config"
	configType = "json"
)

// Config holds every runtime option. Timeout values are seconds, matching
// the on-disk file shape.
type Config struct {
	DownloadDir string `mapstructure:"download_dir" json:"download_dir"`
	AuthDir     string `mapstructure:"auth_dir" json:"auth_dir"`

	// WorkerID partitions browser profiles in batch mode. Nil means the
	// default profile.
	WorkerID *int `mapstructure:"worker_id" json:"worker_id"`

	TimeoutSlides   int `mapstructure:"timeout_slides" json:"timeout_slides"`
	TimeoutResearch int `mapstructure:"timeout_research" json:"timeout_research"`
	TimeoutDownload int `mapstructure:"timeout_download" json:"timeout_download"`
	TimeoutLogin    int `mapstructure:"timeout_login" json:"timeout_login"`

	BrowserHeadless bool `mapstructure:"browser_headless" json:"browser_headless"`
	ViewportWidth   int  `mapstructure:"browser_viewport_width" json:"browser_viewport_width"`
	ViewportHeight  int  `mapstructure:"browser_viewport_height" json:"browser_viewport_height"`

	DefaultLanguage string `mapstructure:"default_language" json:"default_language"`
	SaveScreenshots bool   `mapstructure:"save_screenshots" json:"save_screenshots"`

	OCRConfidenceThreshold float64 `mapstructure:"ocr_confidence_threshold" json:"ocr_confidence_threshold"`

	// Credentials, environment only. Never written back to the config file.
	GoogleEmail        string `mapstructure:"-" json:"-"`
	GooglePassword     string `mapstructure:"-" json:"-"`
	TOTPSecret         string `mapstructure:"-" json:"-"`
	VisionAPIKey       string `mapstructure:"-" json:"-"`
	FirebaseProjectID  string `mapstructure:"-" json:"-"`
	FirebaseBucket     string `mapstructure:"-" json:"-"`
	ServiceAccountPath string `mapstructure:"-" json:"-"`
}

// Default returns the built-in settings with no file or environment applied.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".noterang")
	return &Config{
		DownloadDir:            filepath.Join(base, "downloads"),
		AuthDir:                filepath.Join(base, "auth"),
		TimeoutSlides:          600,
		TimeoutResearch:        120,
		TimeoutDownload:        60,
		TimeoutLogin:           120,
		BrowserHeadless:        false,
		ViewportWidth:          1920,
		ViewportHeight:         1080,
		DefaultLanguage:        "ko",
		SaveScreenshots:        true,
		OCRConfidenceThreshold: 0.5,
	}
}

// Load reads the config file if present, applies environment credentials,
// and returns the merged configuration. A missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	home, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(home, ".noterang"))
	v.AddConfigPath(".")

	cfg := Default()
	v.SetDefault("download_dir", cfg.DownloadDir)
	v.SetDefault("auth_dir", cfg.AuthDir)
	v.SetDefault("timeout_slides", cfg.TimeoutSlides)
	v.SetDefault("timeout_research", cfg.TimeoutResearch)
	v.SetDefault("timeout_download", cfg.TimeoutDownload)
	v.SetDefault("timeout_login", cfg.TimeoutLogin)
	v.SetDefault("browser_headless", cfg.BrowserHeadless)
	v.SetDefault("browser_viewport_width", cfg.ViewportWidth)
	v.SetDefault("browser_viewport_height", cfg.ViewportHeight)
	v.SetDefault("default_language", cfg.DefaultLanguage)
	v.SetDefault("save_screenshots", cfg.SaveScreenshots)
	v.SetDefault("ocr_confidence_threshold", cfg.OCRConfidenceThreshold)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.GoogleEmail = os.Getenv("GOOGLE_EMAIL")
	c.GooglePassword = os.Getenv("GOOGLE_PASSWORD")
	c.TOTPSecret = os.Getenv("GOOGLE_2FA_SECRET")
	c.VisionAPIKey = os.Getenv("GOOGLE_VISION_API_KEY")
	if c.VisionAPIKey == "" {
		c.VisionAPIKey = os.Getenv("GOOGLE_CLOUD_VISION_API_KEY")
	}
	c.FirebaseProjectID = os.Getenv("NEXT_PUBLIC_FIREBASE_PROJECT_ID")
	c.FirebaseBucket = os.Getenv("NEXT_PUBLIC_FIREBASE_STORAGE_BUCKET")
	c.ServiceAccountPath = os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
}

// Save writes the file-backed options to <dir>/noterang-config.json, where
// dir is $HOME/.noterang. Credentials are never persisted.
func (c *Config) Save() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home: %w", err)
	}
	dir := filepath.Join(home, ".noterang")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	v := viper.New()
	v.SetConfigType(configType)
	v.Set("download_dir", c.DownloadDir)
	v.Set("auth_dir", c.AuthDir)
	v.Set("timeout_slides", c.TimeoutSlides)
	v.Set("timeout_research", c.TimeoutResearch)
	v.Set("timeout_download", c.TimeoutDownload)
	v.Set("timeout_login", c.TimeoutLogin)
	v.Set("browser_headless", c.BrowserHeadless)
	v.Set("browser_viewport_width", c.ViewportWidth)
	v.Set("browser_viewport_height", c.ViewportHeight)
	v.Set("default_language", c.DefaultLanguage)
	v.Set("save_screenshots", c.SaveScreenshots)
	v.Set("ocr_confidence_threshold", c.OCRConfidenceThreshold)
	if c.WorkerID != nil {
		v.Set("worker_id", *c.WorkerID)
	}
	return v.WriteConfigAs(filepath.Join(dir, configName+"."+configType))
}

// ForWorker returns a copy of the configuration bound to a batch worker id.
// The copy derives its own browser profile directory.
func (c *Config) ForWorker(id int) *Config {
	cp := *c
	wid := id
	cp.WorkerID = &wid
	return &cp
}

// ProfileDir is the persistent browser profile directory for this
// configuration. Batch workers get browser_profile_<id>.
func (c *Config) ProfileDir() string {
	if c.WorkerID != nil {
		return filepath.Join(c.AuthDir, fmt.Sprintf("browser_profile_%d", *c.WorkerID))
	}
	return filepath.Join(c.AuthDir, "browser_profile")
}

// CredentialDir holds the per-profile mirror of the auth artifact.
func (c *Config) CredentialDir() string {
	return filepath.Join(c.AuthDir, "profiles", "default")
}

// AuthFile is the root credential file.
func (c *Config) AuthFile() string {
	return filepath.Join(c.AuthDir, "auth.json")
}

// ScreenshotDir is where debug screenshots are written.
func (c *Config) ScreenshotDir() string {
	return filepath.Join(c.DownloadDir, "debug_screenshots")
}

// ValidateLogin fails fast when the scripted login cannot possibly run.
func (c *Config) ValidateLogin() error {
	if c.GoogleEmail == "" || c.GooglePassword == "" {
		return fmt.Errorf("GOOGLE_EMAIL and GOOGLE_PASSWORD must be set")
	}
	if c.TOTPSecret == "" {
		return fmt.Errorf("GOOGLE_2FA_SECRET must be set for the TOTP second factor")
	}
	return nil
}

// ValidatePublish fails fast when the publish backend is not configured.
func (c *Config) ValidatePublish() error {
	if c.FirebaseProjectID == "" {
		return fmt.Errorf("NEXT_PUBLIC_FIREBASE_PROJECT_ID must be set")
	}
	if c.FirebaseBucket == "" {
		return fmt.Errorf("NEXT_PUBLIC_FIREBASE_STORAGE_BUCKET must be set")
	}
	return nil
}
