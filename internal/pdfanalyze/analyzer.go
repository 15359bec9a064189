// Package pdfanalyze turns a downloaded slide-deck PDF into per-page text,
// page titles, keywords, and an assembled Markdown document. The embedded
// text layer is preferred; decks exported as pure images fall back to
// vision OCR when an API key is configured.
package pdfanalyze

import (
	"context"
	"fmt"
	"strings"

	"rsc.io/pdf"

	"noterang/internal/logging"
)

// minEmbeddedText is the aggregate text floor below which a deck is
// treated as image-only and sent through OCR.
const minEmbeddedText = 100

const topKeywords = 10

// Page is one analyzed PDF page.
type Page struct {
	Number int
	Title  string
	Text   string
}

// Analysis is the outcome for a whole deck.
type Analysis struct {
	PageCount int
	Pages     []Page
	Keywords  []string
	Content   string // assembled Markdown
	UsedOCR   bool
}

// Analyzer extracts structured content from slide-deck PDFs.
type Analyzer struct {
	log logging.Logger

	visionAPIKey        string
	confidenceThreshold float64
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithVisionOCR enables the OCR fallback using the given API key and
// word-level confidence threshold.
func WithVisionOCR(apiKey string, threshold float64) Option {
	return func(a *Analyzer) {
		a.visionAPIKey = apiKey
		a.confidenceThreshold = threshold
	}
}

// WithLogger sets the analyzer's logger.
func WithLogger(log logging.Logger) Option {
	return func(a *Analyzer) { a.log = log }
}

// New returns an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		log:                 logging.Nop(),
		confidenceThreshold: 0.5,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze reads the PDF at path and returns its structured content.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*Analysis, error) {
	pages, err := extractEmbedded(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}

	total := 0
	for _, p := range pages {
		total += len(strings.TrimSpace(p.Text))
	}

	analysis := &Analysis{PageCount: len(pages), Pages: pages}
	if total < minEmbeddedText {
		a.log.Info("embedded text too short (%d chars), trying OCR fallback", total)
		if a.visionAPIKey == "" {
			a.log.Warn("no vision API key configured, keeping embedded text only")
		} else {
			ocrPages, err := a.ocrPages(ctx, path)
			if err != nil {
				a.log.Warn("OCR fallback failed: %v", err)
			} else {
				analysis.Pages = ocrPages
				analysis.UsedOCR = true
			}
		}
	}

	for i := range analysis.Pages {
		p := &analysis.Pages[i]
		p.Text = CleanText(p.Text)
		if p.Title == "" {
			p.Title = fallbackTitle(p.Text, p.Number)
		}
	}

	analysis.Keywords = ExtractKeywords(joinPageText(analysis.Pages), topKeywords)
	analysis.Content = assembleMarkdown(analysis.Pages)
	return analysis, nil
}

// extractEmbedded pulls the text layer of each page, tracking the span
// with the largest font size as the page title.
func extractEmbedded(path string) ([]Page, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, r.NumPage())
	for n := 1; n <= r.NumPage(); n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: n})
			continue
		}
		var (
			sb       strings.Builder
			titleSb  strings.Builder
			maxFont  float64
			lastYPos float64
		)
		content := page.Content()
		for _, txt := range content.Text {
			if txt.FontSize > maxFont {
				maxFont = txt.FontSize
				titleSb.Reset()
			}
			if txt.FontSize == maxFont {
				titleSb.WriteString(txt.S)
			}
			if lastYPos != 0 && txt.Y != lastYPos {
				sb.WriteString("\n")
			}
			sb.WriteString(txt.S)
			lastYPos = txt.Y
		}
		title := strings.TrimSpace(titleSb.String())
		if len([]rune(title)) > 80 {
			title = ""
		}
		pages = append(pages, Page{
			Number: n,
			Title:  title,
			Text:   sb.String(),
		})
	}
	return pages, nil
}

func fallbackTitle(text string, number int) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if n := len([]rune(line)); n >= 2 && n <= 80 {
			return line
		}
	}
	return fmt.Sprintf("페이지 %d", number)
}

func joinPageText(pages []Page) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// assembleMarkdown renders pages as "### title" plus body, separated by
// horizontal rules. Empty pages are skipped.
func assembleMarkdown(pages []Page) string {
	var sections []string
	for _, p := range pages {
		body := strings.TrimSpace(p.Text)
		if body == "" && p.Title == "" {
			continue
		}
		var sb strings.Builder
		if p.Title != "" {
			sb.WriteString("### ")
			sb.WriteString(p.Title)
			sb.WriteString("\n\n")
		}
		if body != "" {
			sb.WriteString(body)
		}
		sections = append(sections, strings.TrimSpace(sb.String()))
	}
	return strings.Join(sections, "\n\n---\n\n")
}
