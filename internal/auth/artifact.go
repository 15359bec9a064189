package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// googleDomainSuffix scopes which cookies belong in the artifact.
const googleDomainSuffix = ".google.com"

// requiredCookies must all be present for a login to count as successful.
var requiredCookies = []string{"SID", "__Secure-1PSID", "__Secure-3PSID"}

// minCookieCount is the floor below which a cookie jar is treated as a
// failed or partial login.
const minCookieCount = 10

// Cookie is the browser-native cookie shape mirrored to cookies.json.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// Artifact records one successful login. It is sufficient to authorize the
// product RPC without a browser.
type Artifact struct {
	Cookies     map[string]string `json:"cookies"`
	CSRFToken   string            `json:"csrf_token"`
	SessionID   string            `json:"session_id"`
	ExtractedAt int64             `json:"extracted_at"`
	Email       string            `json:"email,omitempty"`
}

// metadata is the per-profile metadata.json shape.
type metadata struct {
	CSRFToken     string `json:"csrf_token"`
	SessionID     string `json:"session_id"`
	Email         string `json:"email"`
	LastValidated string `json:"last_validated"`
}

// BuildArtifact assembles an Artifact from a captured cookie jar. The CSRF
// seed is the first 16 characters of SAPISID joined with the current epoch
// milliseconds, the shape the product's RPC layer expects.
func BuildArtifact(cookies []Cookie, email, sessionID string, now time.Time) (*Artifact, error) {
	jar := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if !strings.HasSuffix(c.Domain, googleDomainSuffix) && c.Domain != strings.TrimPrefix(googleDomainSuffix, ".") {
			continue
		}
		jar[c.Name] = c.Value
	}
	if err := validateJar(jar); err != nil {
		return nil, err
	}
	return &Artifact{
		Cookies:     jar,
		CSRFToken:   deriveCSRF(jar["SAPISID"], now),
		SessionID:   sessionID,
		ExtractedAt: now.Unix(),
		Email:       email,
	}, nil
}

func validateJar(jar map[string]string) error {
	for _, name := range requiredCookies {
		if jar[name] == "" {
			return fmt.Errorf("missing required cookie %s", name)
		}
	}
	if len(jar) <= minCookieCount {
		return fmt.Errorf("cookie jar too small (%d), login likely incomplete", len(jar))
	}
	return nil
}

func deriveCSRF(sapisid string, now time.Time) string {
	seed := sapisid
	if len(seed) > 16 {
		seed = seed[:16]
	}
	return fmt.Sprintf("%s:%d", seed, now.UnixMilli())
}

// Age returns how long ago the artifact was extracted.
func (a *Artifact) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(a.ExtractedAt, 0))
}

// Store mirrors an Artifact to every location the API client consumes.
type Store struct {
	RootFile      string // <auth_dir>/auth.json
	CredentialDir string // <auth_dir>/profiles/default
}

// Save writes the artifact to the root credential file and the per-profile
// mirror in its three shapes. Each file is replaced whole so readers never
// observe a torn write.
func (s Store) Save(artifact *Artifact, cookies []Cookie, now time.Time) error {
	if err := writeJSONAtomic(s.RootFile, artifact); err != nil {
		return fmt.Errorf("write root credential: %w", err)
	}
	if err := os.MkdirAll(s.CredentialDir, 0o755); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	mirrored := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if _, ok := artifact.Cookies[c.Name]; ok {
			mirrored = append(mirrored, c)
		}
	}
	if err := writeJSONAtomic(filepath.Join(s.CredentialDir, "cookies.json"), mirrored); err != nil {
		return fmt.Errorf("write cookie list: %w", err)
	}

	meta := metadata{
		CSRFToken:     artifact.CSRFToken,
		SessionID:     artifact.SessionID,
		Email:         artifact.Email,
		LastValidated: now.UTC().Format(time.RFC3339),
	}
	if err := writeJSONAtomic(filepath.Join(s.CredentialDir, "metadata.json"), meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(s.CredentialDir, "auth.json"), artifact); err != nil {
		return fmt.Errorf("write profile credential: %w", err)
	}
	return nil
}

// Load reads the root credential file.
func (s Store) Load() (*Artifact, error) {
	data, err := os.ReadFile(s.RootFile)
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.RootFile, err)
	}
	return &artifact, nil
}

func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
