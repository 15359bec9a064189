package workflow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noterang/internal/browser"
)

func TestNotebookIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://notebooklm.google.com/notebook/abc-123", "abc-123"},
		{"https://notebooklm.google.com/notebook/abc-123?tab=studio", "abc-123"},
		{"https://notebooklm.google.com/notebook/abc-123/extra", "abc-123"},
		{"https://notebooklm.google.com/", ""},
		{"https://accounts.google.com/signin", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, notebookIDFromURL(tt.url), tt.url)
	}
}

func TestStyleForCategory(t *testing.T) {
	assert.Equal(t, "메디컬 케어", StyleForCategory("medical"))
	assert.Equal(t, "메디컬 케어", StyleForCategory("Medical"))
	assert.Equal(t, "코퍼레이트", StyleForCategory("finance"))
	assert.Equal(t, "클린 모던", StyleForCategory(""))
	assert.Equal(t, "클린 모던", StyleForCategory("history"))
}

func TestStyleNamesCoverAllPresets(t *testing.T) {
	names := StyleNames()
	assert.Len(t, names, 9)
	for _, name := range names {
		p, ok := StylePrompt(name)
		require.True(t, ok)
		assert.NotEmpty(t, p)
	}
	assert.Contains(t, names, "다크 모드")
	assert.Contains(t, names, "인포그래픽")
}

func TestDesignPromptPinsDate(t *testing.T) {
	now := time.Date(2026, 3, 7, 14, 0, 0, 0, time.UTC)
	p := designPrompt("코퍼레이트", "IRR - 내부수익률 분석", "할인율, 한계", "ko", now)

	assert.Contains(t, p, "2026.03.07")
	assert.Contains(t, p, "2026년 03월 07일")
	assert.Contains(t, p, "IRR - 내부수익률 분석")
	assert.Contains(t, p, "할인율, 한계")
	assert.Contains(t, p, "코퍼레이트")
	assert.Contains(t, p, "한국어")
}

func TestDesignPromptUnknownStyleFallsBack(t *testing.T) {
	now := time.Now()
	p := designPrompt("없는 스타일", "주제", "", "ko", now)
	assert.Contains(t, p, "클린 모던")
}

func TestDesignPromptEnglish(t *testing.T) {
	p := designPrompt("미니멀 젠", "Topic", "", "en", time.Now())
	assert.Contains(t, p, "English")
	assert.NotContains(t, p, "한국어로 작성")
}

func el(tag, text, aria string, x, y, w, h float64) browser.Element {
	return browser.Element{Tag: tag, Text: text, AriaLabel: aria, Rect: browser.Rect{X: x, Y: y, W: w, H: h}}
}

func TestPageReadySignals(t *testing.T) {
	tests := []struct {
		name     string
		elements []browser.Element
		want     bool
	}{
		{
			"download button",
			[]browser.Element{el("button", "다운로드", "", 100, 100, 80, 30)},
			true,
		},
		{
			"download aria only",
			[]browser.Element{el("button", "", "Download slides", 100, 100, 40, 40)},
			true,
		},
		{
			"right panel more menu",
			[]browser.Element{el("button", "", "더보기", 1700, 400, 30, 30)},
			true,
		},
		{
			"left side more menu is not a studio signal",
			[]browser.Element{el("button", "", "더보기", 200, 400, 30, 30)},
			false,
		},
		{
			"presentation anchor",
			[]browser.Element{el("a", "docs.google.com/presentation/d/xyz", "", 900, 500, 200, 20)},
			true,
		},
		{
			"hidden download button",
			[]browser.Element{el("button", "다운로드", "", 0, 0, 0, 0)},
			false,
		},
		{
			"nothing interesting",
			[]browser.Element{el("button", "소스 추가", "", 200, 200, 100, 30)},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pageReady(tt.elements, 1920))
		})
	}
}

func TestFirstErrorPhrase(t *testing.T) {
	elements := []browser.Element{
		el("button", "소스 추가", "", 100, 100, 80, 30),
		el("div", "슬라이드를 생성할 수 없습니다", "", 400, 400, 300, 40),
	}
	assert.Equal(t, "생성할 수 없", firstErrorPhrase(elements))
	assert.Empty(t, firstErrorPhrase(elements[:1]))
}

func TestMenuCandidatesNewestFirstCapped(t *testing.T) {
	var elements []browser.Element
	for i := 0; i < 5; i++ {
		e := el("button", "", "더보기", 1700, float64(100*i), 30, 30)
		e.Index = i
		elements = append(elements, e)
	}
	// A left-panel menu and an unrelated button are excluded.
	elements = append(elements,
		el("button", "", "더보기", 100, 100, 30, 30),
		el("button", "생성", "", 1700, 600, 80, 30))

	menus := menuCandidates(elements, 1920, 3)
	require.Len(t, menus, 3)
	assert.Equal(t, 4, menus[0].Index)
	assert.Equal(t, 3, menus[1].Index)
	assert.Equal(t, 2, menus[2].Index)
}

func TestDownloadFileName(t *testing.T) {
	now := time.Date(2026, 3, 7, 9, 30, 0, 0, time.UTC)

	name := downloadFileName("IRR - 내부수익률 분석", now)
	assert.True(t, strings.HasPrefix(name, "20260307_093000_IRR_내부수익률_분석_"), name)
	assert.True(t, strings.HasSuffix(name, ".pdf"))

	other := downloadFileName("IRR - 내부수익률 분석", now)
	assert.NotEqual(t, name, other, "unique suffix avoids collisions")

	assert.Contains(t, downloadFileName("///", now), "slides")

	long := strings.Repeat("가", 100)
	assert.Less(t, len([]rune(downloadFileName(long, now))), 80)
}

func TestRightPanelThreshold(t *testing.T) {
	assert.Equal(t, 960.0, rightPanelThreshold(1920))
	assert.Equal(t, 640.0, rightPanelThreshold(1280))
	assert.Equal(t, 960.0, rightPanelThreshold(0))
}
