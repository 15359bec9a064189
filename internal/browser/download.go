package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"noterang/internal/nrerrors"
)

// DownloadResult describes one captured browser download.
type DownloadResult struct {
	Path          string
	SuggestedName string
}

// ExpectDownload arms download capture into dir, runs trigger, and waits for
// a download to complete. The file lands under its CDP GUID name; the
// suggested filename from the page is reported alongside so callers can
// rename it.
func (d *Driver) ExpectDownload(ctx context.Context, dir string, timeout time.Duration, trigger func(ctx context.Context) error) (DownloadResult, error) {
	var res DownloadResult
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, err
	}
	t, err := d.mgr.Tab()
	if err != nil {
		return res, err
	}

	err = t.withRunContext(ctx, timeout, func(runCtx context.Context) error {
		done := make(chan string, 1)
		guidName := make(map[string]string)

		chromedp.ListenTarget(runCtx, func(ev any) {
			switch e := ev.(type) {
			case *cdpbrowser.EventDownloadWillBegin:
				guidName[e.GUID] = e.SuggestedFilename
			case *cdpbrowser.EventDownloadProgress:
				if e.State == cdpbrowser.DownloadProgressStateCompleted {
					select {
					case done <- e.GUID:
					default:
					}
				}
			}
		})

		if err := chromedp.Run(runCtx,
			cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
				WithDownloadPath(dir).
				WithEventsEnabled(true),
		); err != nil {
			return err
		}
		if err := trigger(runCtx); err != nil {
			return err
		}

		select {
		case guid := <-done:
			res.Path = filepath.Join(dir, guid)
			res.SuggestedName = guidName[guid]
			return nil
		case <-runCtx.Done():
			return nrerrors.PhaseTimeout("download_capture", timeout)
		}
	})
	return res, err
}

// WatchForNewFile polls dir for a file with one of the extensions created
// after since, the last-resort path when no download event was observed.
func WatchForNewFile(ctx context.Context, dir string, since time.Time, timeout time.Duration, extensions ...string) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				name := entry.Name()
				if strings.HasSuffix(name, ".crdownload") {
					continue
				}
				if len(extensions) > 0 && !hasAnySuffix(name, extensions) {
					continue
				}
				info, err := entry.Info()
				if err != nil || info.ModTime().Before(since) {
					continue
				}
				return filepath.Join(dir, name), nil
			}
		}
		if time.Now().After(deadline) {
			return "", nrerrors.DownloadFailed("watch_download_dir",
				fmt.Errorf("no new file in %s within %s", dir, timeout))
		}
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(strings.ToLower(name), strings.ToLower(s)) {
			return true
		}
	}
	return false
}
