package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noterang/internal/workflow"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.Record(ctx, "첫 번째 주제", "rest_api", workflow.Result{
		OK: true, NotebookID: "nb-1", PDFPath: "/tmp/a.pdf",
		SlideCount: 10, SourcesCount: 3, DurationSeconds: 120,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := s.Record(ctx, "두 번째 주제", "", workflow.Result{
		Error: "generation: timed out",
	})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first; equal timestamps break on the monotonic id.
	assert.Equal(t, "두 번째 주제", runs[0].Title)
	assert.False(t, runs[0].Success)
	assert.Contains(t, runs[0].Error, "timed out")

	assert.Equal(t, "첫 번째 주제", runs[1].Title)
	assert.True(t, runs[1].Success)
	assert.Equal(t, "nb-1", runs[1].NotebookID)
	assert.Equal(t, 10, runs[1].SlideCount)
	assert.Equal(t, 3, runs[1].SourcesCount)
	assert.Equal(t, "rest_api", runs[1].Method)
	assert.WithinDuration(t, time.Now(), runs[1].CreatedAt, time.Minute)
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.Record(ctx, "t", "", workflow.Result{OK: true})
		require.NoError(t, err)
	}
	runs, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestPublishedFiltersFailures(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Record(ctx, "성공", "rest_api", workflow.Result{OK: true})
	require.NoError(t, err)
	_, err = s.Record(ctx, "실패", "", workflow.Result{Error: "boom"})
	require.NoError(t, err)

	runs, err := s.Published(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "성공", runs[0].Title)
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Recent(context.Background(), 1)
	assert.NoError(t, err)
}
