package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"noterang/internal/browser"
	"noterang/internal/nrerrors"
)

const (
	// pollFloor guards against matching download affordances left over
	// from earlier artifacts on the same notebook.
	pollFloor    = 30 * time.Second
	pollInterval = 8 * time.Second
)

var (
	studioOpenTexts  = []string{"프레젠테이션", "슬라이드", "Slide deck", "맞춤설정", "Customize"}
	generateTexts    = []string{"생성", "만들기", "Generate"}
	readyTexts       = []string{"다운로드", "Download"}
	errorPhrases     = []string{"생성할 수 없", "오류"}
	moreMenuTexts    = []string{"더보기", "More options", "more_vert"}
	presentationHost = "docs.google.com/presentation"
)

// requestGeneration opens the studio customization overlay, injects the
// design prompt, and submits it.
func (w *Workflow) requestGeneration(ctx context.Context, notebookID string, opts Options) error {
	drv := w.driver()
	if err := drv.Navigate(ctx, notebookURL(notebookID)); err != nil {
		return err
	}
	time.Sleep(3 * time.Second)

	if err := w.openStudioOverlay(ctx); err != nil {
		drv.Screenshot(ctx, "studio_open_failed")
		return err
	}

	inputs, err := drv.OverlayInputs(ctx)
	if err != nil {
		return err
	}
	el, ok := browser.LargestInput(inputs)
	if !ok {
		drv.Screenshot(ctx, "design_prompt_not_found")
		return nrerrors.OverlayNotFound("design prompt", fmt.Errorf("no textarea in studio overlay"))
	}

	style := opts.Style
	if style == "" {
		style = StyleForCategory(opts.Category)
	}
	prompt := designPrompt(style, opts.Title, opts.Focus, opts.Language, time.Now())
	if err := drv.FocusAndType(ctx, el.Rect, prompt, 0); err != nil {
		return err
	}

	if w.clickGenerate(ctx) {
		w.log.Info("generation requested with style %q", style)
		return nil
	}
	// Keyboard fallback.
	if err := drv.PressEnter(ctx); err != nil {
		return err
	}
	w.log.Info("generation requested via Enter with style %q", style)
	return nil
}

// openStudioOverlay clicks through to the customization dialog.
func (w *Workflow) openStudioOverlay(ctx context.Context) error {
	drv := w.driver()
	if open, _ := w.overlayOpen(ctx); open {
		return nil
	}
	elements, err := drv.DumpElements(ctx, browser.ScopeDocument)
	if err != nil {
		return err
	}
	for _, needle := range studioOpenTexts {
		el, ok := browser.FindByText(elements, needle)
		if !ok {
			continue
		}
		if hit, _ := drv.CoordClick(ctx, el.Rect, "studio_open"); hit {
			time.Sleep(2 * time.Second)
			if open, _ := w.overlayOpen(ctx); open {
				return nil
			}
		}
	}
	// Studio panel lives on the right third of a 1920x1080 layout.
	x, y := browser.ScalePoint(1650, 300, w.cfg.ViewportWidth, w.cfg.ViewportHeight)
	if err := drv.ClickAt(ctx, x, y, "studio_open_guess"); err != nil {
		return err
	}
	time.Sleep(2 * time.Second)
	if open, _ := w.overlayOpen(ctx); open {
		return nil
	}
	return nrerrors.OverlayNotFound("studio overlay", fmt.Errorf("customization dialog did not open"))
}

func (w *Workflow) clickGenerate(ctx context.Context) bool {
	drv := w.driver()
	elements, err := drv.DumpElements(ctx, browser.ScopeOverlay)
	if err != nil {
		return false
	}
	for _, el := range elements {
		if el.Disabled || !el.Visible() {
			continue
		}
		if el.MatchesAny(generateTexts) {
			if hit, _ := drv.CoordClick(ctx, el.Rect, "generate"); hit {
				return true
			}
		}
	}
	return false
}

// waitForSlides polls until the studio reports a completed deck. RPC
// status is authoritative when reachable; page heuristics carry the
// browser fallback.
func (w *Workflow) waitForSlides(ctx context.Context, notebookID string) error {
	timeout := time.Duration(w.cfg.TimeoutSlides) * time.Second
	deadline := time.Now().Add(timeout)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(pollFloor):
	}

	for {
		done, err := w.checkSlidesOnce(ctx, notebookID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			w.driver().Screenshot(ctx, "slides_timeout")
			return nrerrors.PhaseTimeout("slide generation", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (w *Workflow) checkSlidesOnce(ctx context.Context, notebookID string) (bool, error) {
	if client, err := w.pool.Get(false); err == nil {
		artifacts, err := client.PollStudio(ctx, notebookID)
		if err == nil {
			for _, a := range artifacts {
				switch a.Status {
				case "completed":
					return true, nil
				case "failed":
					return false, nrerrors.GenerationFailed("slides", "studio reports a failed artifact")
				}
			}
			// Keep polling; also consult the page for decks the RPC surface
			// does not report yet.
		} else {
			w.log.Debug("studio poll rpc failed: %v", err)
		}
	}

	drv := w.driver()
	elements, err := drv.DumpElements(ctx, browser.ScopeDocument)
	if err != nil {
		return false, nil
	}
	if phrase := firstErrorPhrase(elements); phrase != "" {
		drv.Screenshot(ctx, "generation_error")
		return false, nrerrors.GenerationFailed("slides", fmt.Sprintf("page shows %q", phrase))
	}
	if pageReady(elements, w.cfg.ViewportWidth) {
		return true, nil
	}
	var hasFrame bool
	if err := drv.Evaluate(ctx, largeFrameScript, &hasFrame); err == nil && hasFrame {
		return true, nil
	}
	return false, nil
}

// largeFrameScript reports whether an embedded preview frame of
// meaningful size is present.
const largeFrameScript = `(() => {
  for (const f of document.querySelectorAll('iframe, embed')) {
    const r = f.getBoundingClientRect();
    if (r.width > 400 && r.height > 250) return true;
  }
  return false;
})()`

// pageReady holds the readiness heuristics over a document dump.
func pageReady(elements []browser.Element, viewportW int) bool {
	rightEdge := rightPanelThreshold(viewportW)
	for _, el := range elements {
		if !el.Visible() {
			continue
		}
		if el.MatchesAny(readyTexts) {
			return true
		}
		if el.Tag == "a" && strings.Contains(strings.ToLower(el.Text+el.AriaLabel), presentationHost) {
			return true
		}
		if el.MatchesAny(moreMenuTexts) && el.Rect.X > rightEdge {
			return true
		}
	}
	return false
}

func firstErrorPhrase(elements []browser.Element) string {
	for _, el := range elements {
		for _, phrase := range errorPhrases {
			if strings.Contains(el.Text, phrase) || strings.Contains(el.AriaLabel, phrase) {
				return phrase
			}
		}
	}
	return ""
}

// rightPanelThreshold is the x coordinate past which a control belongs
// to the studio panel rather than the source list.
func rightPanelThreshold(viewportW int) float64 {
	if viewportW <= 0 {
		viewportW = 1920
	}
	return float64(viewportW) / 2
}
