// Package nlm is a thin client for the notebook product's private RPC
// surface. Calls authorize with the cookie jar and CSRF token of the most
// recent login artifact; the client is faster and parallel-safe compared to
// driving the browser, so workflow steps prefer it and only fall back to UI
// automation when a call fails.
package nlm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"noterang/internal/auth"
	"noterang/internal/logging"
	"noterang/internal/nrerrors"
)

// SessionTTL bounds how long a client may be used before it is rebuilt from
// a fresh artifact.
const SessionTTL = 20 * time.Minute

// Notebook is the remote entity holding sources and artifacts for a topic.
type Notebook struct {
	ID      string
	Title   string
	Sources []Source
}

// Source is a reference attached to a notebook.
type Source struct {
	ID    string
	Kind  string // "url", "text" or "research_task"
	Title string
	Value string
}

// ResearchState is a polled research task.
type ResearchState struct {
	TaskID    string
	Query     string
	Status    string // pending, in_progress, completed, failed
	StartedAt time.Time
	Sources   []Source
}

// ArtifactState is one generated deck in the studio panel.
type ArtifactState struct {
	ID     string
	Status string // pending, in_progress, completed, failed
}

// Client binds one auth artifact to the RPC surface.
type Client struct {
	http      *http.Client
	baseURL   string
	cookies   map[string]string
	csrfToken string
	sessionID string
	createdAt time.Time
	log       logging.Logger
}

func newClient(artifact *auth.Artifact, log logging.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: 45 * time.Second},
		baseURL:   strings.TrimSuffix(auth.ProductURL, "/"),
		cookies:   artifact.Cookies,
		csrfToken: artifact.CSRFToken,
		sessionID: artifact.SessionID,
		createdAt: time.Now(),
		log:       logging.OrNop(log),
	}
}

// Age reports how long the client has existed.
func (c *Client) Age() time.Duration { return time.Since(c.createdAt) }

// CreatedAt exposes the construction time for TTL checks.
func (c *Client) CreatedAt() time.Time { return c.createdAt }

func (c *Client) cookieHeader() string {
	names := make([]string, 0, len(c.cookies))
	for name := range c.cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+c.cookies[name])
	}
	return strings.Join(pairs, "; ")
}

// Pool is the process-wide client lifecycle: a singleton rebuilt when its
// TTL lapses or a refresh is forced. Any caller may trigger the
// close-then-recreate; the artifact content is deterministic so the last
// writer wins harmlessly.
type Pool struct {
	store auth.Store
	log   logging.Logger

	mu     sync.Mutex
	client *Client
}

func NewPool(store auth.Store, log logging.Logger) *Pool {
	return &Pool{store: store, log: logging.OrNop(log)}
}

// Get returns the live client, rebuilding it from the on-disk artifact when
// absent, expired, or forceRefresh is set.
func (p *Pool) Get(forceRefresh bool) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && !forceRefresh && p.client.Age() <= SessionTTL {
		return p.client, nil
	}
	p.client = nil

	artifact, err := p.store.Load()
	if err != nil {
		return nil, nrerrors.AuthExpired("load_artifact", fmt.Errorf("no usable credential file: %w", err))
	}
	p.client = newClient(artifact, p.log)
	p.log.Debug("client session created (artifact age %s)", artifact.Age(time.Now()).Round(time.Second))
	return p.client, nil
}

// Close discards the singleton.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
}

// Expired reports whether the live client is past its TTL. A missing client
// is not expired, merely absent.
func (p *Pool) Expired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil && p.client.Age() > SessionTTL
}

// Probe performs the lightweight authenticated call EnsureAuth relies on.
func (p *Pool) Probe(ctx context.Context) error {
	client, err := p.Get(false)
	if err != nil {
		return err
	}
	_, err = client.ListNotebooks(ctx)
	return err
}
