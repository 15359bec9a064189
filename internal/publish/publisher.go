// Package publish delivers a finished article to the Firebase-backed
// site: attachment bytes to Cloud Storage, metadata as a Firestore
// document, both over plain REST with a browser-extracted bearer token.
// Upserts are keyed by slug so re-publishing a topic never duplicates.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"noterang/internal/config"
	"noterang/internal/logging"
	"noterang/internal/nrerrors"
)

const (
	defaultFirestoreBase = "https://firestore.googleapis.com/v1"
	defaultStorageBase   = "https://firebasestorage.googleapis.com"
	defaultCollection    = "posts"
	defaultAdminURL      = "https://noterang-admin.web.app/admin"

	publishTimeout = 60 * time.Second
)

// Request is one article to publish.
type Request struct {
	Title           string
	Slug            string
	Excerpt         string
	Category        string
	Tags            []string
	ContentMarkdown string
	AttachmentPath  string
	AttachmentName  string
	Visible         bool
	AuthorName      string
}

// Result reports how the article was delivered.
type Result struct {
	DocumentID    string
	Method        string // rest_api, rest_api_update, ui_fallback
	AttachmentURL string
}

// TokenSource yields a short-lived bearer token for the backend, or ""
// when none can be extracted.
type TokenSource interface {
	ExtractPublishToken(ctx context.Context, adminURL string) (string, error)
}

// FormPublisher drives the admin form when the REST path cannot run.
type FormPublisher interface {
	PublishViaForm(ctx context.Context, req Request) error
}

// Publisher upserts articles by slug.
type Publisher struct {
	cfg    *config.Config
	log    logging.Logger
	http   *http.Client
	tokens TokenSource
	form   FormPublisher

	firestoreBase string
	storageBase   string
	collection    string
	adminURL      string

	now func() time.Time
}

// New returns a Publisher. form may be nil when no browser is available;
// the REST path is then the only strategy.
func New(cfg *config.Config, tokens TokenSource, form FormPublisher, log logging.Logger) *Publisher {
	return &Publisher{
		cfg:           cfg,
		log:           logging.OrNop(log),
		http:          &http.Client{Timeout: publishTimeout},
		tokens:        tokens,
		form:          form,
		firestoreBase: defaultFirestoreBase,
		storageBase:   defaultStorageBase,
		collection:    defaultCollection,
		adminURL:      defaultAdminURL,
		now:           time.Now,
	}
}

// Post publishes the request, preferring REST and falling back to the
// admin form on missing tokens or auth-class REST failures.
func (p *Publisher) Post(ctx context.Context, req Request) (Result, error) {
	if err := p.cfg.ValidatePublish(); err != nil {
		return Result{}, err
	}
	if req.Slug == "" {
		return Result{}, nrerrors.ConfigError("publish", fmt.Errorf("empty slug"))
	}

	token, err := p.tokens.ExtractPublishToken(ctx, p.adminURL)
	if err != nil {
		p.log.Warn("token extraction failed: %v", err)
	}
	if token == "" {
		return p.fallback(ctx, req, fmt.Errorf("no bearer token extracted"))
	}

	res, err := p.postREST(ctx, token, req)
	if err != nil {
		if nrerrors.IsAuthFailure(err) {
			return p.fallback(ctx, req, err)
		}
		return Result{}, err
	}
	return res, nil
}

func (p *Publisher) postREST(ctx context.Context, token string, req Request) (Result, error) {
	var attachmentURL string
	if req.AttachmentPath != "" {
		u, err := p.uploadAttachment(ctx, token, req.AttachmentPath, req.AttachmentName)
		if err != nil {
			return Result{}, err
		}
		attachmentURL = u
		p.log.Info("attachment uploaded: %s", u)
	}

	existing, err := p.findBySlug(ctx, token, req.Slug)
	if err != nil {
		return Result{}, err
	}

	now := p.now()
	if existing != "" {
		if err := p.patchDocument(ctx, token, existing, updateFields(req, attachmentURL, now)); err != nil {
			return Result{}, err
		}
		p.log.Info("updated document %s for slug %q", existing, req.Slug)
		return Result{DocumentID: docID(existing), Method: "rest_api_update", AttachmentURL: attachmentURL}, nil
	}

	id, err := p.createDocument(ctx, token, createFields(req, attachmentURL, now))
	if err != nil {
		return Result{}, err
	}
	p.log.Info("created document %s for slug %q", id, req.Slug)
	return Result{DocumentID: id, Method: "rest_api", AttachmentURL: attachmentURL}, nil
}

func (p *Publisher) fallback(ctx context.Context, req Request, cause error) (Result, error) {
	if p.form == nil {
		return Result{}, fmt.Errorf("rest publish unavailable and no form fallback: %w", cause)
	}
	p.log.Warn("falling back to admin form: %v", cause)
	if err := p.form.PublishViaForm(ctx, req); err != nil {
		return Result{}, fmt.Errorf("form fallback: %w", err)
	}
	return Result{Method: "ui_fallback"}, nil
}

func (p *Publisher) documentsURL() string {
	return fmt.Sprintf("%s/projects/%s/databases/(default)/documents",
		p.firestoreBase, p.cfg.FirebaseProjectID)
}

// findBySlug returns the full resource name of the existing document
// with this slug, or "".
func (p *Publisher) findBySlug(ctx context.Context, token, slug string) (string, error) {
	body, err := json.Marshal(slugQuery(p.collection, slug))
	if err != nil {
		return "", err
	}
	respBody, err := p.doJSON(ctx, token, http.MethodPost, p.documentsURL()+":runQuery", body)
	if err != nil {
		return "", err
	}

	var rows []struct {
		Document *struct {
			Name string `json:"name"`
		} `json:"document"`
	}
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return "", fmt.Errorf("decode query response: %w", err)
	}
	for _, row := range rows {
		if row.Document != nil && row.Document.Name != "" {
			return row.Document.Name, nil
		}
	}
	return "", nil
}

func (p *Publisher) patchDocument(ctx context.Context, token, name string, fields map[string]any) error {
	q := url.Values{}
	for _, path := range fieldPaths(fields) {
		q.Add("updateMask.fieldPaths", path)
	}
	endpoint := fmt.Sprintf("%s/%s?%s", p.firestoreBase, name, q.Encode())

	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return err
	}
	_, err = p.doJSON(ctx, token, http.MethodPatch, endpoint, body)
	return err
}

func (p *Publisher) createDocument(ctx context.Context, token string, fields map[string]any) (string, error) {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return "", err
	}
	respBody, err := p.doJSON(ctx, token, http.MethodPost, p.documentsURL()+"/"+p.collection, body)
	if err != nil {
		return "", err
	}
	var out struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	return docID(out.Name), nil
}

// docID is the last segment of a full document resource name.
func docID(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func (p *Publisher) doJSON(ctx context.Context, token, method, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, nrerrors.Transient(fmt.Errorf("%s %s: %w", method, endpoint, err))
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, nrerrors.AuthExpired("firestore", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, nrerrors.TransientHTTP(
			fmt.Errorf("firestore status %d: %s", resp.StatusCode, truncateBody(respBody)), resp.StatusCode)
	}
	return respBody, nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
