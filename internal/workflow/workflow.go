// Package workflow drives one topic end to end: authenticate, locate or
// create the notebook, attach sources, request slide generation, poll
// for completion, download the PDF, and convert it. API calls are
// preferred; every step degrades to browser automation when the RPC
// surface cannot serve it.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"noterang/internal/auth"
	"noterang/internal/browser"
	"noterang/internal/config"
	"noterang/internal/logging"
	"noterang/internal/nlm"
	"noterang/internal/nrerrors"
	"noterang/internal/pdfanalyze"
	"noterang/internal/pptx"
)

// Options parameterize a single run.
type Options struct {
	Title    string
	URLs     []string
	Queries  []string
	Focus    string
	Language string
	Style    string
	Category string

	SkipResearch bool
	SkipDownload bool
	SkipConvert  bool
}

// Result is the outcome record exchanged with the CLI and the batch
// orchestrator.
type Result struct {
	OK              bool   `json:"success"`
	NotebookID      string `json:"notebookId,omitempty"`
	PDFPath         string `json:"pdfPath,omitempty"`
	PPTXPath        string `json:"pptxPath,omitempty"`
	SlideCount      int    `json:"slideCount"`
	SourcesCount    int    `json:"-"`
	DurationSeconds int    `json:"-"`
	Error           string `json:"error,omitempty"`

	// Analysis is populated after a successful download unless conversion
	// was skipped. Not part of the RESULT line.
	Analysis *pdfanalyze.Analysis `json:"-"`
}

// Workflow binds the session, the RPC pool, and the overlay driver for
// one worker.
type Workflow struct {
	cfg     *config.Config
	log     logging.Logger
	session *auth.Session
	pool    *nlm.Pool

	drv *browser.Driver
}

// New returns a Workflow over an authenticated session.
func New(cfg *config.Config, session *auth.Session, pool *nlm.Pool, log logging.Logger) *Workflow {
	return &Workflow{
		cfg:     cfg,
		log:     logging.OrNop(log),
		session: session,
		pool:    pool,
	}
}

func (w *Workflow) driver() *browser.Driver {
	if w.drv == nil {
		w.drv = browser.NewDriver(w.session.Browser(), w.cfg.ScreenshotDir(), w.cfg.SaveScreenshots, w.log)
	}
	return w.drv
}

// Run executes the full pipeline for one topic.
func (w *Workflow) Run(ctx context.Context, opts Options) Result {
	start := time.Now()
	res := w.run(ctx, opts)
	res.DurationSeconds = int(time.Since(start).Seconds())
	return res
}

func (w *Workflow) run(ctx context.Context, opts Options) Result {
	if err := w.session.EnsureAuth(ctx, w.pool); err != nil {
		return failed("", fmt.Errorf("authentication: %w", err))
	}

	notebookID, err := w.locateOrCreateNotebook(ctx, opts.Title)
	if err != nil {
		return failed("", fmt.Errorf("notebook: %w", err))
	}
	w.log.Info("notebook ready: %s", notebookID)

	sourceCount, err := w.attachSources(ctx, notebookID, opts)
	if err != nil {
		return failed(notebookID, fmt.Errorf("sources: %w", err))
	}
	w.log.Info("sources attached: %d", sourceCount)

	res := Result{OK: true, NotebookID: notebookID, SourcesCount: sourceCount}

	if err := w.requestGeneration(ctx, notebookID, opts); err != nil {
		return failed(notebookID, fmt.Errorf("generation request: %w", err))
	}
	if err := w.waitForSlides(ctx, notebookID); err != nil {
		return failed(notebookID, fmt.Errorf("generation: %w", err))
	}

	if opts.SkipDownload {
		return res
	}
	pdfPath, err := w.downloadPDF(ctx, notebookID, opts.Title)
	if err != nil {
		return failed(notebookID, fmt.Errorf("download: %w", err))
	}
	res.PDFPath = pdfPath

	if opts.SkipConvert {
		return res
	}
	count, err := pptx.ConvertPDF(pdfPath, "")
	if err != nil {
		w.log.Warn("pptx conversion failed: %v", err)
	} else {
		res.SlideCount = count
		res.PPTXPath = strings.TrimSuffix(pdfPath, ".pdf") + ".pptx"
	}

	analyzer := pdfanalyze.New(
		pdfanalyze.WithVisionOCR(w.cfg.VisionAPIKey, w.cfg.OCRConfidenceThreshold),
		pdfanalyze.WithLogger(w.log),
	)
	analysis, err := analyzer.Analyze(ctx, pdfPath)
	if err != nil {
		w.log.Warn("pdf analysis failed: %v", err)
	} else {
		res.Analysis = analysis
		if res.SlideCount == 0 {
			res.SlideCount = analysis.PageCount
		}
	}
	return res
}

// Regenerate re-runs only the generation tail against an existing
// notebook.
func (w *Workflow) Regenerate(ctx context.Context, notebookID string, opts Options) Result {
	start := time.Now()
	res := w.regenerate(ctx, notebookID, opts)
	res.DurationSeconds = int(time.Since(start).Seconds())
	return res
}

func (w *Workflow) regenerate(ctx context.Context, notebookID string, opts Options) Result {
	if err := w.session.EnsureAuth(ctx, w.pool); err != nil {
		return failed(notebookID, fmt.Errorf("authentication: %w", err))
	}
	if err := w.requestGeneration(ctx, notebookID, opts); err != nil {
		return failed(notebookID, fmt.Errorf("generation request: %w", err))
	}
	if err := w.waitForSlides(ctx, notebookID); err != nil {
		return failed(notebookID, fmt.Errorf("generation: %w", err))
	}
	res := Result{OK: true, NotebookID: notebookID}
	if opts.SkipDownload {
		return res
	}
	pdfPath, err := w.downloadPDF(ctx, notebookID, opts.Title)
	if err != nil {
		return failed(notebookID, fmt.Errorf("download: %w", err))
	}
	res.PDFPath = pdfPath
	if !opts.SkipConvert {
		if count, err := pptx.ConvertPDF(pdfPath, ""); err == nil {
			res.SlideCount = count
			res.PPTXPath = strings.TrimSuffix(pdfPath, ".pdf") + ".pptx"
		}
	}
	return res
}

func failed(notebookID string, err error) Result {
	return Result{NotebookID: notebookID, Error: err.Error()}
}

// locateOrCreateNotebook reopens an exact-title match or creates a new
// notebook. API first, browser second.
func (w *Workflow) locateOrCreateNotebook(ctx context.Context, title string) (string, error) {
	client, err := w.pool.Get(false)
	if err == nil {
		notebooks, listErr := client.ListNotebooks(ctx)
		if listErr == nil {
			for _, nb := range notebooks {
				if nb.Title == title {
					w.log.Info("reusing notebook %q (%s)", title, nb.ID)
					return nb.ID, nil
				}
			}
			nb, createErr := client.CreateNotebook(ctx, title)
			if createErr == nil {
				return nb.ID, nil
			}
			err = createErr
		} else {
			err = listErr
		}
	}
	w.log.Warn("api notebook path failed, trying browser: %v", err)
	return w.createNotebookViaBrowser(ctx, title)
}

var newNotebookTexts = []string{"새 노트북", "새로 만들기", "Create new", "New notebook", "만들기"}

// createNotebookViaBrowser clicks the product's create button and reads
// the notebook id off the settled URL.
func (w *Workflow) createNotebookViaBrowser(ctx context.Context, title string) (string, error) {
	drv := w.driver()
	if err := drv.Navigate(ctx, auth.ProductURL); err != nil {
		return "", err
	}
	time.Sleep(2 * time.Second)

	elements, err := drv.DumpElements(ctx, browser.ScopeDocument)
	if err != nil {
		return "", err
	}
	clicked := false
	for _, needle := range newNotebookTexts {
		if el, ok := browser.FindByText(elements, needle); ok {
			if hit, _ := drv.CoordClick(ctx, el.Rect, "new_notebook"); hit {
				clicked = true
				break
			}
		}
	}
	if !clicked {
		drv.Screenshot(ctx, "new_notebook_not_found")
		return "", nrerrors.OverlayNotFound("create notebook", fmt.Errorf("no create button matched"))
	}

	var notebookID string
	err = drv.WaitFor(ctx, "notebook url", 30*time.Second, 2*time.Second, func(ctx context.Context) (bool, error) {
		u, err := drv.URL(ctx)
		if err != nil {
			return false, nil
		}
		notebookID = notebookIDFromURL(u)
		return notebookID != "", nil
	})
	if err != nil {
		return "", err
	}
	w.log.Info("created notebook %q via browser: %s", title, notebookID)
	return notebookID, nil
}

func notebookIDFromURL(u string) string {
	const marker = "/notebook/"
	i := strings.Index(u, marker)
	if i < 0 {
		return ""
	}
	rest := u[i+len(marker):]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// notebookURL is the SPA route for one notebook.
func notebookURL(id string) string {
	return auth.ProductURL + "notebook/" + id
}
