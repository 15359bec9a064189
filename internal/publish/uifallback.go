package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"noterang/internal/browser"
	"noterang/internal/logging"
	"noterang/internal/nrerrors"
)

const formTypingDelay = 10 * time.Millisecond

var publishButtonTexts = []string{"발행", "게시", "Publish", "저장"}

// UIFallback drives the admin's new-post form with the overlay driver
// when the REST path has no token.
type UIFallback struct {
	drv      *browser.Driver
	log      logging.Logger
	adminURL string
}

// NewUIFallback wraps a driver for the admin form at adminURL.
func NewUIFallback(drv *browser.Driver, adminURL string, log logging.Logger) *UIFallback {
	if adminURL == "" {
		adminURL = defaultAdminURL
	}
	return &UIFallback{drv: drv, log: logging.OrNop(log), adminURL: adminURL}
}

// PublishViaForm fills and submits the new-post form. The framework
// raises unsaved-changes dialogs while we type; an auto-dismiss handler
// suppresses them for the whole attempt.
func (u *UIFallback) PublishViaForm(ctx context.Context, req Request) error {
	if err := u.drv.Do(ctx, 10*time.Second, browser.DismissDialogs()); err != nil {
		u.log.Debug("dialog handler setup: %v", err)
	}

	if err := u.drv.Navigate(ctx, strings.TrimRight(u.adminURL, "/")+"/posts/new"); err != nil {
		return err
	}
	time.Sleep(2 * time.Second)

	fills := []struct {
		selector string
		value    string
	}{
		{`input[name="title"]`, req.Title},
		{`input[name="slug"]`, req.Slug},
		{`textarea[name="excerpt"]`, req.Excerpt},
	}
	for _, f := range fills {
		if f.value == "" {
			continue
		}
		if err := u.fillField(ctx, f.selector, f.value); err != nil {
			return fmt.Errorf("fill %s: %w", f.selector, err)
		}
	}

	if req.Category != "" {
		if err := u.clickByText(ctx, req.Category, "category"); err != nil {
			u.log.Warn("category %q not clickable: %v", req.Category, err)
		}
	}

	for _, tag := range req.Tags {
		if err := u.fillField(ctx, `input[name="tags"]`, tag); err != nil {
			u.log.Warn("tag input: %v", err)
			break
		}
		if err := u.drv.PressEnter(ctx); err != nil {
			return err
		}
	}

	if req.ContentMarkdown != "" {
		if err := u.fillField(ctx, `textarea[name="content"]`, req.ContentMarkdown); err != nil {
			return fmt.Errorf("fill content: %w", err)
		}
	}

	if req.AttachmentPath != "" {
		err := u.drv.Do(ctx, 15*time.Second,
			chromedp.SetUploadFiles(`input[type="file"]`, []string{req.AttachmentPath}))
		if err != nil {
			u.log.Warn("attachment upload field: %v", err)
		}
	}

	u.drv.Screenshot(ctx, "publish_form_before_submit")

	clicked := false
	for _, text := range publishButtonTexts {
		if err := u.clickByText(ctx, text, "publish_button"); err == nil {
			clicked = true
			break
		}
	}
	if !clicked {
		u.drv.Screenshot(ctx, "publish_button_not_found")
		return nrerrors.OverlayNotFound("publish button", fmt.Errorf("no submit button matched"))
	}

	time.Sleep(3 * time.Second)
	u.drv.Screenshot(ctx, "publish_form_after_submit")
	return nil
}

func (u *UIFallback) fillField(ctx context.Context, selector, value string) error {
	var rect browser.Rect
	if err := u.drv.Evaluate(ctx, rectScript(selector), &rect); err != nil {
		return err
	}
	if rect.Empty() {
		return nrerrors.OverlayNotFound("form field", fmt.Errorf("%s not visible", selector))
	}
	return u.drv.FocusAndType(ctx, rect, value, formTypingDelay)
}

func (u *UIFallback) clickByText(ctx context.Context, text, label string) error {
	elements, err := u.drv.DumpElements(ctx, browser.ScopeDocument)
	if err != nil {
		return err
	}
	el, ok := browser.FindByText(elements, text)
	if !ok {
		return nrerrors.OverlayNotFound(label, fmt.Errorf("%q not found", text))
	}
	hit, err := u.drv.CoordClick(ctx, el.Rect, label)
	if err != nil {
		return err
	}
	if !hit {
		return nrerrors.OverlayNotFound(label, fmt.Errorf("%q has no rect", text))
	}
	return nil
}

func rectScript(selector string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return {x:0,y:0,w:0,h:0};
  const r = el.getBoundingClientRect();
  return {x:r.x, y:r.y, w:r.width, h:r.height};
})()`, selector)
}
