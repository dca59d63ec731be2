// Package opml reads subscription lists exported by other feed readers.
package opml

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

type document struct {
	XMLName xml.Name `xml:"opml"`
	Head    struct {
		Title string `xml:"title"`
	} `xml:"head"`
	Body struct {
		Outlines []outline `xml:"outline"`
	} `xml:"body"`
}

type outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr"`
	XMLURL   string    `xml:"xmlUrl,attr"`
	Category string    `xml:"category,attr"`
	Outlines []outline `xml:"outline"`
}

// Feed is a subscription found in an OPML document.
type Feed struct {
	Title string
	URL   string
	// Categories is the folder path of the feed, e.g. ["Tech", "Go"].
	Categories []string
}

// List is a parsed subscription list.
type List struct {
	Title string
	Feeds []Feed
}

// Parse reads an OPML document and flattens its outlines.
func Parse(r io.Reader) (*List, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}

	list := &List{Title: strings.TrimSpace(doc.Head.Title)}
	var walk func(outlines []outline, path []string)
	walk = func(outlines []outline, path []string) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				cats := append([]string{}, path...)
				if len(cats) == 0 {
					cats = categoryAttr(o.Category)
				}
				list.Feeds = append(list.Feeds, Feed{
					Title:      strings.TrimSpace(title),
					URL:        strings.TrimSpace(o.XMLURL),
					Categories: cats,
				})
				continue
			}
			if len(o.Outlines) > 0 {
				name := o.Text
				if name == "" {
					name = o.Title
				}
				walk(o.Outlines, append(path[:len(path):len(path)], name))
			}
		}
	}
	walk(doc.Body.Outlines, nil)
	return list, nil
}

// categoryAttr returns the first path of a category attribute such as
// "/Tech/Go,/News".
func categoryAttr(raw string) []string {
	first, _, _ := strings.Cut(raw, ",")
	var path []string
	for _, part := range strings.Split(first, "/") {
		if part = strings.TrimSpace(part); part != "" {
			path = append(path, part)
		}
	}
	return path
}

// Load parses the OPML document at source, which is either a local path or
// an http(s) URL.
func Load(ctx context.Context, client *http.Client, source string) (*List, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		// Follow redirects regardless of the client's policy.
		c := *client
		c.CheckRedirect = nil
		resp, err := c.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download opml: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download opml: unexpected status %d", resp.StatusCode)
		}
		return Parse(resp.Body)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open opml: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}
