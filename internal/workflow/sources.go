package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"noterang/internal/browser"
	"noterang/internal/nlm"
	"noterang/internal/nrerrors"
	"noterang/internal/webfetch"
)

const (
	sourceSettleInterval = 5 * time.Second
	typingDelay          = 20 * time.Millisecond
)

var (
	addSourceTexts  = []string{"소스 추가", "출처 추가", "Add source", "추가"}
	websiteTabTexts = []string{"웹사이트", "Website", "링크", "Link"}
	pasteTabTexts   = []string{"복사된 텍스트", "붙여넣은 텍스트", "Copied text", "Paste text", "텍스트"}
)

// urlInputHints mark the overlay textarea that accepts a URL.
var urlInputHints = []string{"link", "paste", "url", "http", "링크"}

// attachSources populates the notebook: direct URLs first, research
// queries second. Returns the number of sources registered.
func (w *Workflow) attachSources(ctx context.Context, notebookID string, opts Options) (int, error) {
	if len(opts.URLs) > 0 {
		if err := w.attachURLs(ctx, notebookID, opts.Title, opts.URLs); err != nil {
			return 0, err
		}
	} else if len(opts.Queries) > 0 && !opts.SkipResearch {
		if err := w.runResearch(ctx, notebookID, opts.Queries); err != nil {
			return 0, err
		}
	}
	return w.waitForSourceQuiescence(ctx, notebookID, len(opts.URLs)+len(opts.Queries))
}

// attachURLs adds each URL, degrading API → overlay → canned text.
func (w *Workflow) attachURLs(ctx context.Context, notebookID, topic string, urls []string) error {
	var failures []string
	for _, u := range urls {
		client, err := w.pool.Get(false)
		if err == nil {
			if err = client.AddURLSource(ctx, notebookID, u); err == nil {
				w.log.Info("added url source via api: %s", u)
				continue
			}
		}
		w.log.Warn("api url attach failed for %s, trying overlay: %v", u, err)
		if err := w.attachURLViaOverlay(ctx, notebookID, u); err != nil {
			w.log.Warn("overlay url attach failed for %s: %v", u, err)
			failures = append(failures, u)
		}
	}
	if len(failures) == 0 {
		return nil
	}

	// Last resort: the copy-paste tab with text fetched from the failed
	// sources, or a topic-templated block.
	title, body := webfetch.CannedText(ctx, topic, failures)
	if client, err := w.pool.Get(false); err == nil {
		if err := client.AddTextSource(ctx, notebookID, body, title); err == nil {
			w.log.Info("added canned text source for %d failed urls", len(failures))
			return nil
		}
	}
	if err := w.attachTextViaOverlay(ctx, notebookID, body); err != nil {
		return fmt.Errorf("all source strategies failed for %v: %w", failures, err)
	}
	return nil
}

// attachURLViaOverlay drives the add-source dialog for a single URL.
func (w *Workflow) attachURLViaOverlay(ctx context.Context, notebookID, sourceURL string) error {
	drv := w.driver()
	if err := w.openSourceDialog(ctx, notebookID); err != nil {
		return err
	}
	w.clickOverlayTab(ctx, websiteTabTexts)

	rect, err := w.findURLInput(ctx)
	if err != nil {
		drv.Screenshot(ctx, "url_input_not_found")
		return err
	}
	if err := drv.FocusAndType(ctx, rect, sourceURL, typingDelay); err != nil {
		return err
	}
	if err := drv.PressEnter(ctx); err != nil {
		return err
	}
	// An enabled Insert/삽입 button may remain; click it when present.
	if err := drv.OverlayClickPrimaryAction(ctx); err != nil {
		w.log.Debug("no primary action after url entry: %v", err)
	}
	time.Sleep(2 * time.Second)
	return nil
}

// attachTextViaOverlay pastes a prepared text block through the
// copy-paste tab.
func (w *Workflow) attachTextViaOverlay(ctx context.Context, notebookID, text string) error {
	drv := w.driver()
	if err := w.openSourceDialog(ctx, notebookID); err != nil {
		return err
	}
	if !w.clickOverlayTab(ctx, pasteTabTexts) {
		return nrerrors.OverlayNotFound("paste tab", fmt.Errorf("no paste tab matched"))
	}

	inputs, err := drv.OverlayInputs(ctx)
	if err != nil {
		return err
	}
	el, ok := browser.LargestInput(inputs)
	if !ok {
		drv.Screenshot(ctx, "paste_input_not_found")
		return nrerrors.OverlayNotFound("paste input", fmt.Errorf("no textarea in overlay"))
	}
	if err := drv.FocusAndType(ctx, el.Rect, text, 0); err != nil {
		return err
	}
	if err := drv.OverlayClickPrimaryAction(ctx); err != nil {
		return err
	}
	time.Sleep(2 * time.Second)
	return nil
}

// openSourceDialog brings up the add-source overlay unless one is
// already open.
func (w *Workflow) openSourceDialog(ctx context.Context, notebookID string) error {
	drv := w.driver()
	if err := drv.Navigate(ctx, notebookURL(notebookID)); err != nil {
		return err
	}
	time.Sleep(2 * time.Second)

	if open, _ := w.overlayOpen(ctx); open {
		return nil
	}

	elements, err := drv.DumpElements(ctx, browser.ScopeDocument)
	if err != nil {
		return err
	}
	for _, needle := range addSourceTexts {
		if el, ok := browser.FindByText(elements, needle); ok {
			if hit, _ := drv.CoordClick(ctx, el.Rect, "add_source"); hit {
				time.Sleep(time.Second)
				return nil
			}
		}
	}

	// Coordinate guess calibrated on a 1920x1080 layout, scaled to the
	// configured viewport.
	x, y := browser.ScalePoint(260, 220, w.cfg.ViewportWidth, w.cfg.ViewportHeight)
	if err := drv.ClickAt(ctx, x, y, "add_source_guess"); err != nil {
		return err
	}
	time.Sleep(time.Second)
	if open, _ := w.overlayOpen(ctx); !open {
		drv.Screenshot(ctx, "source_dialog_not_open")
		return nrerrors.OverlayNotFound("add source", fmt.Errorf("dialog did not open"))
	}
	return nil
}

func (w *Workflow) overlayOpen(ctx context.Context) (bool, error) {
	elements, err := w.driver().DumpElements(ctx, browser.ScopeOverlay)
	if err != nil {
		return false, err
	}
	return len(elements) > 0, nil
}

// clickOverlayTab text-scans the overlay for any of the tab labels.
func (w *Workflow) clickOverlayTab(ctx context.Context, labels []string) bool {
	drv := w.driver()
	for _, label := range labels {
		if err := drv.OverlayFindAndClick(ctx, label, "tab_"+label); err == nil {
			time.Sleep(500 * time.Millisecond)
			return true
		}
	}
	return false
}

// findURLInput locates the overlay textarea whose placeholder suggests
// a link field, falling back to the largest input.
func (w *Workflow) findURLInput(ctx context.Context) (browser.Rect, error) {
	inputs, err := w.driver().OverlayInputs(ctx)
	if err != nil {
		return browser.Rect{}, err
	}
	for _, el := range inputs {
		ph := strings.ToLower(el.Placeholder)
		for _, hint := range urlInputHints {
			if strings.Contains(ph, hint) {
				return el.Rect, nil
			}
		}
	}
	if el, ok := browser.LargestInput(inputs); ok {
		return el.Rect, nil
	}
	return browser.Rect{}, nrerrors.OverlayNotFound("url input", fmt.Errorf("no input in overlay"))
}

// runResearch dispatches one task per query and imports the resulting
// sources once each completes.
func (w *Workflow) runResearch(ctx context.Context, notebookID string, queries []string) error {
	client, err := w.pool.Get(false)
	if err != nil {
		return err
	}
	timeout := time.Duration(w.cfg.TimeoutResearch) * time.Second

	for _, query := range queries {
		taskID, err := client.StartResearch(ctx, notebookID, query, "", nlm.ResearchFast)
		if err != nil {
			return fmt.Errorf("start research %q: %w", query, err)
		}
		w.log.Info("research started: %q (%s)", query, taskID)

		state, err := w.pollResearch(ctx, client, notebookID, taskID, query, timeout)
		if err != nil {
			return fmt.Errorf("research %q: %w", query, err)
		}
		if len(state.Sources) == 0 {
			w.log.Warn("research %q completed with no sources", query)
			continue
		}
		if _, err := client.ImportResearchSources(ctx, notebookID, state.TaskID, state.Sources); err != nil {
			return fmt.Errorf("import research %q: %w", query, err)
		}
		w.log.Info("imported %d sources for %q", len(state.Sources), query)
	}
	return nil
}

func (w *Workflow) pollResearch(ctx context.Context, client *nlm.Client, notebookID, taskID, query string, timeout time.Duration) (*nlm.ResearchState, error) {
	deadline := time.Now().Add(timeout)
	for {
		state, err := client.PollResearch(ctx, notebookID, taskID, query)
		if err == nil {
			switch state.Status {
			case "completed":
				return state, nil
			case "failed":
				return nil, nrerrors.GenerationFailed("research", fmt.Sprintf("task %s failed", taskID))
			}
		} else if !nrerrors.IsTransient(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, nrerrors.PhaseTimeout("research", timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sourceSettleInterval):
		}
	}
}

// waitForSourceQuiescence waits until the notebook reports at least the
// expected number of sources, or returns the best-effort count.
func (w *Workflow) waitForSourceQuiescence(ctx context.Context, notebookID string, expected int) (int, error) {
	client, err := w.pool.Get(false)
	if err != nil {
		return 0, err
	}
	count := 0
	deadline := time.Now().Add(time.Duration(w.cfg.TimeoutResearch) * time.Second)
	for {
		sources, err := client.GetSources(ctx, notebookID)
		if err == nil {
			count = len(sources)
			if count >= expected {
				return count, nil
			}
		}
		if time.Now().After(deadline) {
			if count == 0 && expected > 0 {
				return 0, nrerrors.PhaseTimeout("sources settle", time.Duration(w.cfg.TimeoutResearch)*time.Second)
			}
			return count, nil
		}
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		case <-time.After(sourceSettleInterval):
		}
	}
}
