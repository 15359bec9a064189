// Package gallery renders published runs into a static HTML site: an
// index page plus one page per article, Markdown bodies rendered with
// goldmark.
package gallery

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	ghtml "github.com/yuin/goldmark/renderer/html"

	"noterang/internal/history"
)

// Article is one gallery entry.
type Article struct {
	Run      history.Run
	Markdown string
}

var md = goldmark.New(
	goldmark.WithRendererOptions(ghtml.WithHardWraps()),
)

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="ko">
<head>
<meta charset="utf-8">
<title>noterang gallery</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; }
li { margin: .5rem 0; }
.meta { color: #666; font-size: .85rem; }
</style>
</head>
<body>
<h1>발행된 자료</h1>
<ul>
{{range .}}<li><a href="{{.Page}}">{{.Title}}</a> <span class="meta">{{.Date}} · 슬라이드 {{.Slides}}장</span></li>
{{end}}</ul>
</body>
</html>
`))

var articleTmpl = template.Must(template.New("article").Parse(`<!doctype html>
<html lang="ko">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; }
.meta { color: #666; font-size: .85rem; }
hr { border: none; border-top: 1px solid #ddd; margin: 2rem 0; }
</style>
</head>
<body>
<p><a href="index.html">← 목록</a></p>
<h1>{{.Title}}</h1>
<p class="meta">{{.Date}} · 슬라이드 {{.Slides}}장</p>
{{.Body}}
</body>
</html>
`))

type indexEntry struct {
	Title  string
	Page   string
	Date   string
	Slides int
}

type articlePage struct {
	Title  string
	Date   string
	Slides int
	Body   template.HTML
}

// Render writes the site into outDir and returns the number of article
// pages written.
func Render(articles []Article, outDir string) (int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create gallery dir: %w", err)
	}

	entries := make([]indexEntry, 0, len(articles))
	for _, a := range articles {
		page := pageName(a.Run)
		entries = append(entries, indexEntry{
			Title:  a.Run.Title,
			Page:   page,
			Date:   a.Run.CreatedAt.Format("2006.01.02"),
			Slides: a.Run.SlideCount,
		})

		var body bytes.Buffer
		if err := md.Convert([]byte(a.Markdown), &body); err != nil {
			return 0, fmt.Errorf("render markdown for %q: %w", a.Run.Title, err)
		}
		var out bytes.Buffer
		err := articleTmpl.Execute(&out, articlePage{
			Title:  a.Run.Title,
			Date:   a.Run.CreatedAt.Format("2006.01.02"),
			Slides: a.Run.SlideCount,
			Body:   template.HTML(body.String()),
		})
		if err != nil {
			return 0, err
		}
		if err := os.WriteFile(filepath.Join(outDir, page), out.Bytes(), 0o644); err != nil {
			return 0, fmt.Errorf("write %s: %w", page, err)
		}
	}

	var idx bytes.Buffer
	if err := indexTmpl.Execute(&idx, entries); err != nil {
		return 0, err
	}
	if err := os.WriteFile(filepath.Join(outDir, "index.html"), idx.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write index: %w", err)
	}
	return len(articles), nil
}

func pageName(run history.Run) string {
	id := run.ID
	if id == "" {
		id = "article"
	}
	return strings.ToLower(id) + ".html"
}
