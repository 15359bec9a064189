package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"noterang/internal/logging"
	"noterang/internal/nrerrors"
)

// Driver layers the overlay-aware interaction primitives on a Manager's tab.
// Every click is a synthetic mouse event at absolute viewport coordinates;
// the product's overlay layer swallows element.click() semantics, so element
// handles are never clicked directly.
type Driver struct {
	mgr             *Manager
	log             logging.Logger
	screenshotDir   string
	saveScreenshots bool
	typingDelay     time.Duration
}

func NewDriver(mgr *Manager, screenshotDir string, saveScreenshots bool, log logging.Logger) *Driver {
	return &Driver{
		mgr:             mgr,
		log:             logging.OrNop(log),
		screenshotDir:   screenshotDir,
		saveScreenshots: saveScreenshots,
		typingDelay:     30 * time.Millisecond,
	}
}

func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	t, err := d.mgr.Tab()
	if err != nil {
		return err
	}
	return t.withRunContext(ctx, timeout, func(runCtx context.Context) error {
		return chromedp.Run(runCtx, actions...)
	})
}

// Do runs raw chromedp actions against the tab under a per-call timeout.
// Selector-based waits and fills belong to pages that render statically;
// overlay-driven pages go through the coordinate primitives below.
func (d *Driver) Do(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	return d.run(ctx, timeout, actions...)
}

// Navigate opens url and waits for the body to exist.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, 45*time.Second,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// URL returns the tab's current location.
func (d *Driver) URL(ctx context.Context) (string, error) {
	var loc string
	err := d.run(ctx, 10*time.Second, chromedp.Location(&loc))
	return loc, err
}

// Evaluate runs a JS expression and unmarshals the result into out. Pass a
// nil out to discard the value.
func (d *Driver) Evaluate(ctx context.Context, expr string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	return d.run(ctx, 20*time.Second, chromedp.Evaluate(expr, out))
}

// EvaluateAsync runs a JS expression that yields a promise and unmarshals
// the settled value into out.
func (d *Driver) EvaluateAsync(ctx context.Context, expr string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	return d.run(ctx, 30*time.Second,
		chromedp.Evaluate(expr, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
}

// Screenshot writes a full-viewport PNG named HHMMSS_<label>.png into the
// debug directory and returns its path. Disabled drivers return "".
func (d *Driver) Screenshot(ctx context.Context, label string) (string, error) {
	if !d.saveScreenshots || d.screenshotDir == "" {
		return "", nil
	}
	var buf []byte
	if err := d.run(ctx, 15*time.Second, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.screenshotDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(d.screenshotDir, fmt.Sprintf("%s_%s.png", time.Now().Format("150405"), label))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", err
	}
	d.log.Debug("screenshot %s", path)
	return path, nil
}

// DumpElements introspects all interactive candidates under the scope with
// their absolute viewport rects. For ScopeOverlay with no overlay present
// the dump is empty, not an error.
func (d *Driver) DumpElements(ctx context.Context, scope Scope) ([]Element, error) {
	var elements []Element
	script := fmt.Sprintf(dumpScript, scope == ScopeOverlay)
	if err := d.Evaluate(ctx, script, &elements); err != nil {
		return nil, err
	}
	return elements, nil
}

// CoordClick dispatches a synthetic mouse click at the rect's center.
// Returns false without clicking when the rect carries no area.
func (d *Driver) CoordClick(ctx context.Context, rect Rect, label string) (bool, error) {
	if rect.Empty() {
		return false, nil
	}
	x, y := rect.CenterX(), rect.CenterY()
	d.log.Debug("click %q at (%.0f, %.0f)", label, x, y)
	err := d.run(ctx, 10*time.Second, chromedp.MouseClickXY(x, y))
	return err == nil, err
}

// ClickAt clicks an absolute viewport point, used by coordinate-guess
// fallbacks after ScalePoint.
func (d *Driver) ClickAt(ctx context.Context, x, y float64, label string) error {
	d.log.Debug("click %q at raw (%.0f, %.0f)", label, x, y)
	return d.run(ctx, 10*time.Second, chromedp.MouseClickXY(x, y))
}

// OverlayFindAndClick clicks the first visible element inside the top
// overlay pane whose text contains needle.
func (d *Driver) OverlayFindAndClick(ctx context.Context, needle, label string) error {
	elements, err := d.DumpElements(ctx, ScopeOverlay)
	if err != nil {
		return err
	}
	el, ok := FindByText(elements, needle)
	if !ok {
		return nrerrors.OverlayNotFound(label, fmt.Errorf("no overlay element containing %q", needle))
	}
	_, err = d.CoordClick(ctx, el.Rect, label)
	return err
}

// OverlayInputs lists the enterable fields inside the top overlay pane.
func (d *Driver) OverlayInputs(ctx context.Context) ([]Element, error) {
	elements, err := d.DumpElements(ctx, ScopeOverlay)
	if err != nil {
		return nil, err
	}
	return InputRects(elements), nil
}

// OverlayClickPrimaryAction clicks the overlay's enabled submit-like button.
func (d *Driver) OverlayClickPrimaryAction(ctx context.Context) error {
	elements, err := d.DumpElements(ctx, ScopeOverlay)
	if err != nil {
		return err
	}
	el, ok := PrimaryAction(elements)
	if !ok {
		return nrerrors.OverlayNotFound("overlay_primary_action", fmt.Errorf("no enabled submit button in overlay"))
	}
	_, err = d.CoordClick(ctx, el.Rect, "primary_action")
	return err
}

// FocusAndType clicks the rect, selects any existing content, and types text
// key by key at the per-key delay. Slow typing keeps the reactive field's
// change detection in step with the input.
func (d *Driver) FocusAndType(ctx context.Context, rect Rect, text string, delay time.Duration) error {
	if ok, err := d.CoordClick(ctx, rect, "focus_field"); err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("focus rect has no area")
		}
		return err
	}
	if delay <= 0 {
		delay = d.typingDelay
	}
	actions := []chromedp.Action{
		chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)),
		chromedp.Sleep(50 * time.Millisecond),
	}
	for _, r := range text {
		actions = append(actions,
			chromedp.KeyEvent(string(r)),
			chromedp.Sleep(delay),
		)
	}
	timeout := 30*time.Second + time.Duration(len(text))*delay
	return d.run(ctx, timeout, actions...)
}

// PressKey sends a single key such as "\r" for Enter or "\t" for Tab.
// chromedp.KeyEvent dispatches one key event per rune, so a key name like
// "Enter" would be typed as literal text.
func (d *Driver) PressKey(ctx context.Context, key string) error {
	return d.run(ctx, 10*time.Second, chromedp.KeyEvent(key))
}

// PressEnter submits the focused element.
func (d *Driver) PressEnter(ctx context.Context) error {
	return d.PressKey(ctx, kb.Enter)
}

// PressEscape dismisses the focused overlay or menu.
func (d *Driver) PressEscape(ctx context.Context) error {
	return d.PressKey(ctx, kb.Escape)
}

// WaitFor polls cond at interval until it reports true or the deadline
// fires. The error on deadline is a Timeout-kind error named op.
func (d *Driver) WaitFor(ctx context.Context, op string, timeout, interval time.Duration, cond func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return nrerrors.PhaseTimeout(op, timeout)
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
