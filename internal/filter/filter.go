// Package filter selects the feeds a command operates on.
package filter

import (
	"sort"
	"strings"

	"github.com/JustADataConstruct/TermRSS/internal/model"
)

// Criteria narrows a set of feeds.
// Names use OR logic, categories use OR logic, and both must match when set.
type Criteria struct {
	Names      []string
	Categories []string
	UnreadOnly bool
}

// Match checks whether a feed stored under key passes the criteria.
func Match(key string, feed model.Feed, c Criteria) bool {
	if len(c.Names) > 0 && !matchesName(key, c.Names) {
		return false
	}
	if !feed.InCategories(c.Categories) {
		return false
	}
	if c.UnreadOnly && feed.Unread <= 0 {
		return false
	}
	return true
}

// Select returns the keys of matching feeds in lexical order.
func Select(feeds map[string]model.Feed, c Criteria) []string {
	var keys []string
	for key, feed := range feeds {
		if Match(key, feed, c) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// SplitList parses a comma-separated flag value, dropping empty items.
func SplitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matchesName(key string, names []string) bool {
	for _, n := range names {
		if model.Key(n) == model.Key(key) {
			return true
		}
	}
	return false
}
