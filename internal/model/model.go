// Package model defines the domain types used across the application.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the on-disk format of record timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Epoch is the last_check/last_read value of a freshly added feed, so that
// the first refresh counts every dated entry as new.
var Epoch = Timestamp{time.Date(1960, 1, 1, 0, 0, 0, 0, time.Local)}

// Key normalizes a source name for store lookups.
func Key(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Timestamp is a local wall-clock time persisted with second precision.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to the persisted precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.In(time.Local).Truncate(time.Second)}
}

// String formats the timestamp using TimeLayout.
func (t Timestamp) String() string {
	return t.Format(TimeLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(TimeLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	parsed, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Feed is the persisted metadata of a subscribed source.
type Feed struct {
	URL          string    `json:"url"`
	LastCheck    Timestamp `json:"last_check"`
	LastRead     Timestamp `json:"last_read"`
	Categories   []string  `json:"categories"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last-modified"`
	Unread       int       `json:"unread"`
	Valid        bool      `json:"valid"`
}

// InCategories reports whether the feed belongs to any of cats.
// An empty cats matches every feed.
func (f *Feed) InCategories(cats []string) bool {
	if len(cats) == 0 {
		return true
	}
	for _, want := range cats {
		for _, have := range f.Categories {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// Document is the cached copy of the last successfully retrieved feed.
type Document struct {
	Title   string  `json:"title"`
	Link    string  `json:"link"`
	Entries []Entry `json:"entries"`
}

// Entry is a single item of a cached document.
type Entry struct {
	Title           string     `json:"title"`
	Link            string     `json:"link"`
	Summary         string     `json:"summary"`
	Published       string     `json:"published"`
	PublishedParsed *time.Time `json:"published_parsed"`
}

// NewerThan reports whether the entry was published strictly after t.
// Entries without a usable date are never counted as new.
func (e Entry) NewerThan(t time.Time) bool {
	if e.PublishedParsed == nil {
		return false
	}
	return e.PublishedParsed.After(t)
}

// CountNewer returns how many entries were published strictly after t.
func (d *Document) CountNewer(t time.Time) int {
	n := 0
	for _, e := range d.Entries {
		if e.NewerThan(t) {
			n++
		}
	}
	return n
}
