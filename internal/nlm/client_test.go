package nlm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noterang/internal/auth"
	"noterang/internal/logging"
	"noterang/internal/nrerrors"
)

// rpcResponse builds a batch-execute envelope carrying one payload frame.
func rpcResponse(rpcID string, payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	frame, err := json.Marshal([]any{[]any{"wrb.fr", rpcID, string(data)}})
	if err != nil {
		panic(err)
	}
	return ")]}'\n\n" + string(frame) + "\n"
}

func TestExtractPayload(t *testing.T) {
	body := rpcResponse(rpcListNotebooks, []any{[]any{[]any{"제목", nil, "nb-1"}}})
	payload, err := extractPayload([]byte(body), rpcListNotebooks)
	require.NoError(t, err)

	rows, err := decodeRows(payload)
	require.NoError(t, err)
	first := arr(at(arr(at(rows, 0)), 0))
	assert.Equal(t, "제목", str(at(first, 0)))
	assert.Equal(t, "nb-1", str(at(first, 2)))
}

func TestExtractPayloadWrongID(t *testing.T) {
	body := rpcResponse(rpcListNotebooks, []any{})
	_, err := extractPayload([]byte(body), rpcCreateNotebook)
	assert.Error(t, err)
}

func TestListNotebooks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.Form.Get("f.req"))
		assert.Equal(t, "sapisid-value:1700000000000", r.Form.Get("at"))
		assert.Contains(t, r.Header.Get("Cookie"), "SID=sid-value")
		fmt.Fprint(w, rpcResponse(rpcListNotebooks, []any{[]any{
			[]any{"알츠하이머", nil, "nb-1"},
			[]any{"IRR 분석", nil, "nb-2"},
		}}))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	notebooks, err := c.ListNotebooks(context.Background())
	require.NoError(t, err)
	require.Len(t, notebooks, 2)
	assert.Equal(t, "알츠하이머", notebooks[0].Title)
	assert.Equal(t, "nb-2", notebooks[1].ID)
}

func TestCreateNotebook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rpcResponse(rpcCreateNotebook, []any{"회전근개 파열", nil, "nb-new"}))
	}))
	defer srv.Close()

	nb, err := newTestClient(srv.URL).CreateNotebook(context.Background(), "회전근개 파열")
	require.NoError(t, err)
	assert.Equal(t, "nb-new", nb.ID)
}

func TestAuthFailureClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListNotebooks(context.Background())
	require.Error(t, err)
	assert.Equal(t, nrerrors.KindAuthExpired, nrerrors.KindOf(err))
}

func TestServerErrorIsTransientRPCFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListNotebooks(context.Background())
	require.Error(t, err)
	assert.Equal(t, nrerrors.KindRPCFailure, nrerrors.KindOf(err))
	assert.True(t, nrerrors.IsTransient(err))
}

func TestMatchResearchTask(t *testing.T) {
	tasks := []ResearchState{
		{TaskID: "t1", Query: "원인 병인", StartedAt: time.Unix(100, 0)},
		{TaskID: "t2", Query: "수술 치료", StartedAt: time.Unix(200, 0)},
		{TaskID: "t3", Query: "재활 운동", StartedAt: time.Unix(150, 0)},
	}

	got, err := matchResearchTask(tasks, "t1", "")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.TaskID)

	got, err = matchResearchTask(tasks, "", "수술 치료")
	require.NoError(t, err)
	assert.Equal(t, "t2", got.TaskID)

	// no id, no query: most recently started
	got, err = matchResearchTask(tasks, "", "")
	require.NoError(t, err)
	assert.Equal(t, "t2", got.TaskID)

	// a named task or query that is absent must never silently match
	_, err = matchResearchTask(tasks, "t9", "")
	assert.Error(t, err)
	_, err = matchResearchTask(tasks, "", "다른 질의")
	assert.Error(t, err)
	_, err = matchResearchTask(nil, "", "")
	assert.Error(t, err)
}

func TestResearchStatusMapping(t *testing.T) {
	assert.Equal(t, "pending", researchStatus(float64(1)))
	assert.Equal(t, "in_progress", researchStatus(float64(2)))
	assert.Equal(t, "completed", researchStatus(float64(3)))
	assert.Equal(t, "failed", researchStatus(float64(4)))
	assert.Equal(t, "unknown", researchStatus(nil))
}

func poolWithArtifact(t *testing.T) *Pool {
	t.Helper()
	dir := t.TempDir()
	store := auth.Store{RootFile: dir + "/auth.json", CredentialDir: dir + "/profiles/default"}

	cookies := []auth.Cookie{}
	for i, name := range []string{"SID", "HSID", "SSID", "APISID", "SAPISID",
		"__Secure-1PSID", "__Secure-3PSID", "__Secure-1PAPISID", "__Secure-3PAPISID",
		"NID", "AEC", "OTZ"} {
		cookies = append(cookies, auth.Cookie{Name: name, Value: fmt.Sprintf("v%d", i), Domain: ".google.com"})
	}
	artifact, err := auth.BuildArtifact(cookies, "", "", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Save(artifact, cookies, time.Now()))
	return NewPool(store, logging.Nop())
}

func TestPoolTTLRefresh(t *testing.T) {
	pool := poolWithArtifact(t)

	first, err := pool.Get(false)
	require.NoError(t, err)
	assert.False(t, pool.Expired())

	again, err := pool.Get(false)
	require.NoError(t, err)
	assert.Same(t, first, again, "within TTL the singleton is reused")

	pool.ageClient(SessionTTL + time.Second)
	assert.True(t, pool.Expired())

	fresh, err := pool.Get(false)
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	assert.WithinDuration(t, time.Now(), fresh.CreatedAt(), 2*time.Second)
	assert.False(t, pool.Expired())
}

func TestPoolForceRefreshAndClose(t *testing.T) {
	pool := poolWithArtifact(t)

	first, err := pool.Get(false)
	require.NoError(t, err)

	forced, err := pool.Get(true)
	require.NoError(t, err)
	assert.NotSame(t, first, forced)

	pool.Close()
	assert.Nil(t, pool.current())
}

func TestPoolWithoutArtifactIsAuthExpired(t *testing.T) {
	dir := t.TempDir()
	pool := NewPool(auth.Store{RootFile: dir + "/auth.json", CredentialDir: dir}, logging.Nop())
	_, err := pool.Get(false)
	require.Error(t, err)
	assert.Equal(t, nrerrors.KindAuthExpired, nrerrors.KindOf(err))
}
