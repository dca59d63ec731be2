// Package htmltext turns HTML fragments from feed summaries into plain text.
package htmltext

import (
	"html"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()

	blockTags  = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6]|/tr)\b[^>]*>`)
	blankLines = regexp.MustCompile(`\n{3,}`)
	spaces     = regexp.MustCompile(`[ \t\f\r]+`)
)

// ToText strips all markup from s, keeping paragraph breaks.
func ToText(s string) string {
	s = blockTags.ReplaceAllString(s, "$0\n")
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaces.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Converter memoizes ToText across renders.
type Converter struct {
	cache *lru.Cache[string, string]
}

// NewConverter returns a Converter remembering up to size results.
func NewConverter(size int) *Converter {
	if size <= 0 {
		size = 1024
	}
	cache, _ := lru.New[string, string](size)
	return &Converter{cache: cache}
}

// ToText is the memoized form of the package-level ToText.
func (c *Converter) ToText(s string) string {
	if text, ok := c.cache.Get(s); ok {
		return text
	}
	text := ToText(s)
	c.cache.Add(s, text)
	return text
}
