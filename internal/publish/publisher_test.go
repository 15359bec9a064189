package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noterang/internal/config"
	"noterang/internal/logging"
)

type stubTokens struct {
	token string
	err   error
}

func (s stubTokens) ExtractPublishToken(ctx context.Context, adminURL string) (string, error) {
	return s.token, s.err
}

type stubForm struct {
	mu    sync.Mutex
	calls []Request
	err   error
}

func (s *stubForm) PublishViaForm(ctx context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	return s.err
}

// fakeBackend is a stateful Firestore + Storage stand-in keyed by slug.
type fakeBackend struct {
	mu      sync.Mutex
	docs    map[string]string // slug -> document id
	nextID  int
	patches int
	creates int
	uploads int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{docs: map[string]string{}, nextID: 1}
}

func (f *fakeBackend) handler(t *testing.T, projectID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case strings.HasSuffix(r.URL.Path, ":runQuery"):
			body, _ := io.ReadAll(r.Body)
			var q struct {
				StructuredQuery struct {
					Where struct {
						FieldFilter struct {
							Value struct {
								StringValue string `json:"stringValue"`
							} `json:"value"`
						} `json:"fieldFilter"`
					} `json:"where"`
				} `json:"structuredQuery"`
			}
			require.NoError(t, json.Unmarshal(body, &q))
			slug := q.StructuredQuery.Where.FieldFilter.Value.StringValue
			if id, ok := f.docs[slug]; ok {
				fmt.Fprintf(w, `[{"document":{"name":"projects/%s/databases/(default)/documents/posts/%s"}}]`, projectID, id)
			} else {
				fmt.Fprint(w, `[{"readTime":"2026-01-01T00:00:00Z"}]`)
			}

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/documents/posts"):
			body, _ := io.ReadAll(r.Body)
			slug := fieldString(t, body, "slug")
			id := fmt.Sprintf("doc%d", f.nextID)
			f.nextID++
			f.docs[slug] = id
			f.creates++
			fmt.Fprintf(w, `{"name":"projects/%s/databases/(default)/documents/posts/%s"}`, projectID, id)

		case r.Method == http.MethodPatch:
			require.NotEmpty(t, r.URL.Query()["updateMask.fieldPaths"], "PATCH must carry an update mask")
			f.patches++
			fmt.Fprint(w, `{}`)

		case strings.HasPrefix(r.URL.Path, "/v0/b/") && r.Method == http.MethodPost:
			name := r.URL.Query().Get("name")
			require.NotEmpty(t, name)
			f.uploads++
			fmt.Fprintf(w, `{"name":%q}`, name)

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func fieldString(t *testing.T, body []byte, key string) string {
	t.Helper()
	var doc struct {
		Fields map[string]struct {
			StringValue string `json:"stringValue"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(body, &doc))
	return doc.Fields[key].StringValue
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.FirebaseProjectID = "test-project"
	cfg.FirebaseBucket = "test-bucket"
	return cfg
}

func newPublisherOver(t *testing.T, backend *fakeBackend, tokens TokenSource, form FormPublisher) (*Publisher, *httptest.Server) {
	srv := httptest.NewServer(backend.handler(t, "test-project"))
	t.Cleanup(srv.Close)

	p := New(testConfig(), tokens, form, logging.Nop())
	p.firestoreBase = srv.URL + "/v1"
	p.storageBase = srv.URL
	p.now = func() time.Time { return time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC) }
	return p, srv
}

func sampleRequest() Request {
	return Request{
		Title:           "지분법 연결회계",
		Slug:            "equity-method-consolidated-accounting",
		Excerpt:         "지분법과 연결회계의 차이",
		Category:        "finance",
		Tags:            []string{"회계", "재무"},
		ContentMarkdown: "### 개요\n\n본문",
		Visible:         true,
		AuthorName:      "noterang",
	}
}

func TestPostCreatesThenUpdatesBySlug(t *testing.T) {
	backend := newFakeBackend()
	p, _ := newPublisherOver(t, backend, stubTokens{token: "tok"}, nil)

	first, err := p.Post(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "rest_api", first.Method)
	assert.NotEmpty(t, first.DocumentID)

	second, err := p.Post(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "rest_api_update", second.Method)
	assert.Equal(t, first.DocumentID, second.DocumentID)

	assert.Equal(t, 1, backend.creates)
	assert.Equal(t, 1, backend.patches)
}

func TestPostUploadsAttachment(t *testing.T) {
	backend := newFakeBackend()
	p, srv := newPublisherOver(t, backend, stubTokens{token: "tok"}, nil)

	pdf := filepath.Join(t.TempDir(), "deck.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644))

	req := sampleRequest()
	req.AttachmentPath = pdf
	req.AttachmentName = "deck.pdf"

	res, err := p.Post(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.uploads)
	assert.True(t, strings.HasPrefix(res.AttachmentURL, srv.URL+"/v0/b/test-bucket/o/"), res.AttachmentURL)
	assert.True(t, strings.HasSuffix(res.AttachmentURL, "?alt=media"))
}

func TestPostFallsBackWithoutToken(t *testing.T) {
	backend := newFakeBackend()
	form := &stubForm{}
	p, _ := newPublisherOver(t, backend, stubTokens{token: ""}, form)

	res, err := p.Post(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "ui_fallback", res.Method)
	require.Len(t, form.calls, 1)
	assert.Equal(t, "equity-method-consolidated-accounting", form.calls[0].Slug)
	assert.Equal(t, 0, backend.creates)
}

func TestPostFallsBackOnAuthStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	form := &stubForm{}
	p := New(testConfig(), stubTokens{token: "stale"}, form, logging.Nop())
	p.firestoreBase = srv.URL + "/v1"
	p.storageBase = srv.URL

	res, err := p.Post(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "ui_fallback", res.Method)
	assert.Len(t, form.calls, 1)
}

func TestPostNoTokenNoFallbackFails(t *testing.T) {
	backend := newFakeBackend()
	p, _ := newPublisherOver(t, backend, stubTokens{token: ""}, nil)
	_, err := p.Post(context.Background(), sampleRequest())
	assert.Error(t, err)
}

func TestPostRejectsEmptySlug(t *testing.T) {
	backend := newFakeBackend()
	p, _ := newPublisherOver(t, backend, stubTokens{token: "tok"}, nil)
	req := sampleRequest()
	req.Slug = ""
	_, err := p.Post(context.Background(), req)
	assert.Error(t, err)
}

func TestTypedValueEnvelope(t *testing.T) {
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	fields := createFields(sampleRequest(), "https://example.com/deck.pdf?alt=media", now)

	assert.Equal(t, map[string]any{"stringValue": "지분법 연결회계"}, fields["title"])
	assert.Equal(t, map[string]any{"booleanValue": true}, fields["published"])
	assert.Equal(t, map[string]any{"integerValue": int64(0)}, fields["viewCount"])
	assert.Equal(t, map[string]any{"timestampValue": "2026-03-07T12:00:00.000Z"}, fields["createdAt"])

	tags := fields["tags"].(map[string]any)["arrayValue"].(map[string]any)["values"].([]any)
	assert.Len(t, tags, 2)
	assert.Equal(t, map[string]any{"stringValue": "회계"}, tags[0])

	update := updateFields(sampleRequest(), "", now)
	assert.NotContains(t, update, "createdAt")
	assert.NotContains(t, update, "viewCount")
	assert.NotContains(t, update, "attachmentUrl")
	assert.Contains(t, fieldPaths(update), "publishedAt")
}
