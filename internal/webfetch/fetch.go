// Package webfetch pulls readable text out of source URLs. The workflow
// uses it to prepare the copied-text fallback block when attaching a URL
// through the overlay fails.
package webfetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	fetchTimeout = 20 * time.Second
	maxExtract   = 8000
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0 Safari/537.36"
)

// PageText is the readable content of one fetched page.
type PageText struct {
	URL   string
	Title string
	Body  string
}

// Fetch downloads url and extracts its title and paragraph text.
func Fetch(ctx context.Context, url string) (*PageText, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "ko,en;q=0.8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, nav, footer, aside").Remove()

	page := &PageText{
		URL:   url,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	var parts []string
	total := 0
	doc.Find("p, h1, h2, h3, li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if len(text) < 20 {
			return true
		}
		parts = append(parts, text)
		total += len(text)
		return total < maxExtract
	})
	page.Body = strings.Join(parts, "\n")
	return page, nil
}

// CannedText builds the copied-text fallback block for a topic. Pages that
// fetched successfully contribute their text; with no usable pages the block
// degrades to a topic-templated stub so the source dialog still has content
// to accept.
func CannedText(ctx context.Context, topic string, urls []string) (title, body string) {
	var sections []string
	for _, u := range urls {
		page, err := Fetch(ctx, u)
		if err != nil || page.Body == "" {
			continue
		}
		header := page.Title
		if header == "" {
			header = u
		}
		sections = append(sections, header+"\n\n"+page.Body)
	}
	title = topic + " 참고 자료"
	if len(sections) == 0 {
		body = fmt.Sprintf("%s에 대한 개요 자료입니다. 주요 개념, 원인과 배경, 현재 동향, 실무 적용 방안을 중심으로 정리합니다.", topic)
		return title, body
	}
	body = truncateRunes(strings.Join(sections, "\n\n---\n\n"), maxExtract)
	return title, body
}

// truncateRunes cuts s to at most n bytes on a rune boundary.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
