package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"noterang/internal/browser"
	"noterang/internal/nrerrors"
)

const (
	// At most this many "more" menus are tried, newest artifact first.
	maxMenuAttempts = 3
	menuTimeout     = 10 * time.Second
)

var downloadItemTexts = []string{"다운로드", "Download"}

// downloadPDF saves the generated deck under the download dir. API
// export first, then the per-artifact menu flow, then a file watch.
func (w *Workflow) downloadPDF(ctx context.Context, notebookID, title string) (string, error) {
	if err := os.MkdirAll(w.cfg.DownloadDir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	target := filepath.Join(w.cfg.DownloadDir, downloadFileName(title, time.Now()))

	if client, err := w.pool.Get(false); err == nil {
		if path, err := client.DownloadSlideDeck(ctx, notebookID, target); err == nil {
			w.log.Info("downloaded deck via api: %s", path)
			return path, nil
		} else {
			w.log.Warn("api download failed, trying browser: %v", err)
		}
	}
	return w.downloadViaBrowser(ctx, notebookID, target)
}

// downloadViaBrowser walks the studio panel's "more" menus looking for
// a download item, capturing the resulting browser download.
func (w *Workflow) downloadViaBrowser(ctx context.Context, notebookID, target string) (string, error) {
	drv := w.driver()
	started := time.Now()
	timeout := time.Duration(w.cfg.TimeoutDownload) * time.Second
	deadline := started.Add(timeout)

	if err := drv.Navigate(ctx, notebookURL(notebookID)); err != nil {
		return "", err
	}
	time.Sleep(3 * time.Second)

	elements, err := drv.DumpElements(ctx, browser.ScopeDocument)
	if err != nil {
		return "", err
	}
	menus := menuCandidates(elements, w.cfg.ViewportWidth, maxMenuAttempts)

	for _, menu := range menus {
		if time.Now().After(deadline) {
			break
		}
		if hit, _ := drv.CoordClick(ctx, menu.Rect, "more_menu"); !hit {
			continue
		}
		time.Sleep(time.Second)

		item, ok := w.findDownloadItem(ctx)
		if !ok {
			drv.PressEscape(ctx)
			continue
		}
		result, err := drv.ExpectDownload(ctx, w.cfg.DownloadDir, menuTimeout, func(ctx context.Context) (errTrigger error) {
			_, errTrigger = drv.CoordClick(ctx, item.Rect, "download_item")
			return errTrigger
		})
		if err != nil {
			w.log.Warn("menu download attempt failed: %v", err)
			continue
		}
		if err := os.Rename(result.Path, target); err != nil {
			// Cross-device or locked file; keep the captured location.
			w.log.Warn("rename download: %v", err)
			return result.Path, nil
		}
		return target, nil
	}

	// Any top-level download button.
	if el, found := findVisible(elements, downloadItemTexts); found {
		result, err := drv.ExpectDownload(ctx, w.cfg.DownloadDir, menuTimeout, func(ctx context.Context) (errTrigger error) {
			_, errTrigger = drv.CoordClick(ctx, el.Rect, "download_button")
			return errTrigger
		})
		if err == nil {
			if renameErr := os.Rename(result.Path, target); renameErr == nil {
				return target, nil
			}
			return result.Path, nil
		}
		w.log.Warn("top-level download failed: %v", err)
	}

	// A click may have fired a download the event listener missed; watch
	// the directory for the completed file.
	remaining := time.Until(deadline)
	if remaining > 0 {
		if path, err := browser.WatchForNewFile(ctx, w.cfg.DownloadDir, started, remaining, ".pdf"); err == nil {
			return path, nil
		}
	}
	drv.Screenshot(ctx, "download_failed")
	return "", nrerrors.DownloadFailed("slide deck", fmt.Errorf("no strategy produced a file within %s", timeout))
}

func (w *Workflow) findDownloadItem(ctx context.Context) (browser.Element, bool) {
	elements, err := w.driver().DumpElements(ctx, browser.ScopeOverlay)
	if err != nil || len(elements) == 0 {
		elements, err = w.driver().DumpElements(ctx, browser.ScopeDocument)
		if err != nil {
			return browser.Element{}, false
		}
	}
	return findVisible(elements, downloadItemTexts)
}

func findVisible(elements []browser.Element, needles []string) (browser.Element, bool) {
	for _, el := range elements {
		if el.Visible() && !el.Disabled && el.MatchesAny(needles) {
			return el, true
		}
	}
	return browser.Element{}, false
}

// menuCandidates selects the right-panel "more" menus, newest last in
// the DOM so returned in reverse order, capped at limit.
func menuCandidates(elements []browser.Element, viewportW, limit int) []browser.Element {
	threshold := rightPanelThreshold(viewportW)
	var menus []browser.Element
	for _, el := range elements {
		if el.Visible() && el.MatchesAny(moreMenuTexts) && el.Rect.X > threshold {
			menus = append(menus, el)
		}
	}
	sort.SliceStable(menus, func(i, j int) bool { return menus[i].Index > menus[j].Index })
	if len(menus) > limit {
		menus = menus[:limit]
	}
	return menus
}

var unsafeFileChars = regexp.MustCompile(`[^0-9A-Za-z가-힣._-]+`)

// downloadFileName embeds a timestamp, a safe form of the title, and a
// short unique suffix so concurrent workers never collide.
func downloadFileName(title string, now time.Time) string {
	safe := unsafeFileChars.ReplaceAllString(title, "_")
	safe = strings.Trim(safe, "_")
	if len([]rune(safe)) > 40 {
		safe = string([]rune(safe)[:40])
	}
	if safe == "" {
		safe = "slides"
	}
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return fmt.Sprintf("%s_%s_%s.pdf", now.Format("20060102_150405"), safe, id.String()[20:])
}
