package pdfanalyze

import (
	"regexp"
	"strings"
)

// Known artifacts in exported decks and OCR output.
var (
	productMentionRe = regexp.MustCompile(`(?i)notebook\s*lm`)
	dotERunRe        = regexp.MustCompile(`(?:·E){2,}`)
	dotRunRe         = regexp.MustCompile(`·{2,}`)
	zeroRunRe        = regexp.MustCompile(`0{5,}`)
	spaceRunRe       = regexp.MustCompile(`[ \t]{2,}`)
	blankLineRunRe   = regexp.MustCompile(`\n{3,}`)
)

// CleanText strips exporter and OCR artifacts from page text and
// collapses excess whitespace.
func CleanText(s string) string {
	s = productMentionRe.ReplaceAllString(s, "")
	s = dotERunRe.ReplaceAllString(s, "")
	s = dotRunRe.ReplaceAllString(s, "")
	s = zeroRunRe.ReplaceAllString(s, "")
	s = spaceRunRe.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLineRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
