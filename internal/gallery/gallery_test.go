package gallery

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noterang/internal/history"
)

func TestRenderWritesIndexAndArticles(t *testing.T) {
	dir := t.TempDir()
	articles := []Article{
		{
			Run: history.Run{
				ID: "01J0TESTA", Title: "내부수익률 분석", SlideCount: 10,
				CreatedAt: time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
			},
			Markdown: "### 개요\n\nIRR은 **할인율**이다.",
		},
		{
			Run: history.Run{
				ID: "01J0TESTB", Title: "회전근개 파열", SlideCount: 8,
				CreatedAt: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
			},
			Markdown: "### 원인\n\n퇴행성 변화.",
		},
	}

	n, err := Render(articles, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	index, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "내부수익률 분석")
	assert.Contains(t, string(index), "01j0testa.html")
	assert.Contains(t, string(index), "2026.03.07")

	page, err := os.ReadFile(filepath.Join(dir, "01j0testa.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<h3>개요</h3>")
	assert.Contains(t, string(page), "<strong>할인율</strong>")
	assert.Contains(t, string(page), "슬라이드 10장")
}

func TestRenderEmpty(t *testing.T) {
	dir := t.TempDir()
	n, err := Render(nil, dir)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = os.Stat(filepath.Join(dir, "index.html"))
	assert.NoError(t, err, "index is written even with no articles")
}

func TestRenderEscapesTitle(t *testing.T) {
	dir := t.TempDir()
	_, err := Render([]Article{{
		Run:      history.Run{ID: "x", Title: "<script>alert(1)</script>", CreatedAt: time.Now()},
		Markdown: "본문",
	}}, dir)
	require.NoError(t, err)

	page, err := os.ReadFile(filepath.Join(dir, "x.html"))
	require.NoError(t, err)
	assert.NotContains(t, string(page), "<script>alert(1)</script>")
}
