package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func el(tag, text string, x, y, w, h float64) Element {
	return Element{Tag: tag, Text: text, Rect: Rect{X: x, Y: y, W: w, H: h}}
}

func TestRectCenter(t *testing.T) {
	r := Rect{X: 100, Y: 200, W: 50, H: 30}
	assert.Equal(t, 125.0, r.CenterX())
	assert.Equal(t, 215.0, r.CenterY())
	assert.False(t, r.Empty())
	assert.True(t, Rect{}.Empty())
}

func TestFindByText(t *testing.T) {
	elements := []Element{
		el("button", "웹사이트", 0, 0, 0, 0), // hidden, must be skipped
		el("span", "웹사이트", 10, 10, 5, 5), // too small
		el("button", "웹사이트", 40, 40, 80, 32),
		el("button", "웹사이트", 90, 90, 80, 32), // later match, ignored
	}
	found, ok := FindByText(elements, "웹사이트")
	require.True(t, ok)
	assert.Equal(t, 40.0, found.Rect.X)

	_, ok = FindByText(elements, "복사")
	assert.False(t, ok)
}

func TestFindByTextMatchesAriaLabel(t *testing.T) {
	elements := []Element{
		{Tag: "button", AriaLabel: "다운로드", Rect: Rect{X: 1500, Y: 300, W: 40, H: 40}},
	}
	found, ok := FindByText(elements, "다운로드")
	require.True(t, ok)
	assert.Equal(t, "다운로드", found.AriaLabel)
}

func TestPrimaryAction(t *testing.T) {
	elements := []Element{
		el("a", "삽입", 10, 10, 60, 30), // not a button
		{Tag: "button", Text: "삽입", Disabled: true, Rect: Rect{X: 10, Y: 50, W: 60, H: 30}},
		el("button", "취소", 10, 90, 60, 30),
		el("button", "삽입", 10, 130, 60, 30),
	}
	action, ok := PrimaryAction(elements)
	require.True(t, ok)
	assert.Equal(t, 130.0, action.Rect.Y)

	_, ok = PrimaryAction(elements[:3])
	assert.False(t, ok)
}

func TestPrimaryActionSynonyms(t *testing.T) {
	for _, text := range []string{"Insert", "삽입", "Submit", "제출"} {
		_, ok := PrimaryAction([]Element{el("button", text, 0, 0, 60, 30)})
		assert.True(t, ok, text)
	}
}

func TestInputRects(t *testing.T) {
	elements := []Element{
		{Tag: "input", Type: "hidden", Rect: Rect{W: 10, H: 10}},
		{Tag: "input", Type: "checkbox", Rect: Rect{W: 10, H: 10}},
		{Tag: "input", Type: "radio", Rect: Rect{W: 10, H: 10}},
		{Tag: "input", Type: "text", Rect: Rect{W: 200, H: 30}},
		{Tag: "textarea", Rect: Rect{W: 400, H: 120}},
		{Tag: "textarea"}, // zero rect
		{Tag: "button", Text: "제출", Rect: Rect{W: 60, H: 30}},
	}
	inputs := InputRects(elements)
	require.Len(t, inputs, 2)
	assert.Equal(t, "input", inputs[0].Tag)
	assert.Equal(t, "textarea", inputs[1].Tag)
}

func TestLargestInput(t *testing.T) {
	elements := []Element{
		{Tag: "input", Type: "text", Rect: Rect{W: 200, H: 30}},
		{Tag: "textarea", Rect: Rect{W: 500, H: 200}},
		{Tag: "textarea", Rect: Rect{W: 300, H: 100}},
	}
	best, ok := LargestInput(elements)
	require.True(t, ok)
	assert.Equal(t, 500.0, best.Rect.W)

	_, ok = LargestInput(nil)
	assert.False(t, ok)
}

func TestScalePoint(t *testing.T) {
	x, y := ScalePoint(960, 540, 1920, 1080)
	assert.Equal(t, 960.0, x)
	assert.Equal(t, 540.0, y)

	x, y = ScalePoint(960, 540, 1280, 720)
	assert.Equal(t, 640.0, x)
	assert.Equal(t, 360.0, y)

	// degenerate viewport leaves the guess untouched
	x, y = ScalePoint(960, 540, 0, 0)
	assert.Equal(t, 960.0, x)
	assert.Equal(t, 540.0, y)
}

func TestWatchForNewFile(t *testing.T) {
	dir := t.TempDir()
	since := time.Now().Add(-time.Second)

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "deck.pdf"), []byte("%PDF-1.4"), 0o644)
	}()

	path, err := WatchForNewFile(context.Background(), dir, since, 5*time.Second, ".pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "deck.pdf"), path)
}

func TestWatchForNewFileSkipsPartialAndOld(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.pdf.crdownload"), []byte("x"), 0o644))

	since := time.Now().Add(time.Hour) // nothing can be newer
	_, err := WatchForNewFile(context.Background(), dir, since, 200*time.Millisecond, ".pdf")
	require.Error(t, err)
}
