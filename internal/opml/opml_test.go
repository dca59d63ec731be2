package opml

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var wantList = &List{
	Title: "My Subscriptions",
	Feeds: []Feed{
		{Title: "The Go Blog", URL: "https://go.dev/blog/feed.atom", Categories: []string{"Tech"}},
		{Title: "Rust Blog", URL: "https://blog.rust-lang.org/feed.xml", Categories: []string{"Tech", "Languages"}},
		{Title: "xkcd", URL: "https://xkcd.com/rss.xml", Categories: nil},
		{Title: "LWN", URL: "https://lwn.net/headlines/rss", Categories: []string{"News", "Linux"}},
	},
}

func TestParse(t *testing.T) {
	f, err := os.Open("../../testdata/subscriptions.opml")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer func() { _ = f.Close() }()

	got, err := Parse(f)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if diff := cmp.Diff(wantList, got); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse(strings.NewReader("not xml at all")); err == nil {
		t.Error("expected error for invalid document")
	}
}

func TestLoad(t *testing.T) {
	data, err := os.ReadFile("../../testdata/subscriptions.opml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old.opml" {
			http.Redirect(w, r, "/subs.opml", http.StatusMovedPermanently)
			return
		}
		if r.URL.Path != "/subs.opml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	noFollow := &http.Client{
		Transport: srv.Client().Transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	tests := []struct {
		name    string
		source  string
		client  *http.Client
		wantErr bool
	}{
		{name: "local file", source: "../../testdata/subscriptions.opml"},
		{name: "url", source: srv.URL + "/subs.opml"},
		{name: "redirected url", source: srv.URL + "/old.opml"},
		{name: "redirected url with non-following client", source: srv.URL + "/old.opml", client: noFollow},
		{name: "missing file", source: "../../testdata/missing.opml", wantErr: true},
		{name: "missing url", source: srv.URL + "/missing.opml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := tt.client
			if client == nil {
				client = srv.Client()
			}
			got, err := Load(context.Background(), client, tt.source)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(wantList, got); diff != "" {
				t.Errorf("Load mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
