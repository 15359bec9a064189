package browser

import (
	"context"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// DismissDialogs installs a handler that accepts every JavaScript
// dialog (beforeunload, confirm, alert) on the tab for its remaining
// lifetime. Admin SPAs raise unsaved-changes prompts mid-form that
// would otherwise wedge the automation.
func DismissDialogs() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		chromedp.ListenTarget(ctx, func(ev any) {
			if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
				go func() {
					_ = chromedp.Run(ctx, page.HandleJavaScriptDialog(true))
				}()
			}
		})
		return nil
	})
}
