package pdfanalyze

import (
	"regexp"
	"sort"
)

// Korean word candidates, 2 to 6 syllables.
var koreanWordRe = regexp.MustCompile(`[가-힣]{2,6}`)

// stopwords are particles, pronouns, and filler that dominate Korean
// frequency counts but carry no topical signal.
var stopwords = map[string]struct{}{
	"있는":   {},
	"있다":   {},
	"있습니다": {},
	"합니다":  {},
	"됩니다":  {},
	"대한":   {},
	"대해":   {},
	"통해":   {},
	"위한":   {},
	"위해":   {},
	"경우":   {},
	"그리고":  {},
	"하지만":  {},
	"또한":   {},
	"이러한":  {},
	"그러나":  {},
	"때문":   {},
	"때문에":  {},
	"하는":   {},
	"되는":   {},
	"이후":   {},
	"모든":   {},
	"같은":   {},
	"다른":   {},
	"가장":   {},
	"매우":   {},
	"페이지":  {},
}

// ExtractKeywords frequency-counts Korean word candidates in text and
// returns the top n, most frequent first. Ties break lexicographically
// so the result is deterministic.
func ExtractKeywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, w := range koreanWordRe.FindAllString(text, -1) {
		if _, skip := stopwords[w]; skip {
			continue
		}
		counts[w]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		if counts[w] >= 2 {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}
