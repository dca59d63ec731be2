package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type mockTransport struct {
	body       string
	statusCode int
	header     http.Header
	errs       []error

	requests []*http.Request
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.requests = append(m.requests, req)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	header := m.header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Header:     header,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

const undatedFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Undated</title>
<item><title>No date</title><link>https://example.com/a</link></item>
</channel></rss>`

func TestFetch(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")

	tests := []struct {
		name          string
		transport     *mockTransport
		wantStatus    int
		wantEntries   int
		wantETag      string
		wantLocation  string
		wantMalformed bool
		wantErr       error
	}{
		{
			name: "successful fetch",
			transport: &mockTransport{body: xml, statusCode: 200, header: http.Header{
				"Etag":          {`"v1"`},
				"Last-Modified": {"Fri, 10 Jan 2025 12:00:00 GMT"},
			}},
			wantStatus:  200,
			wantEntries: 5,
			wantETag:    `"v1"`,
		},
		{
			name:       "not modified",
			transport:  &mockTransport{statusCode: 304},
			wantStatus: 304,
		},
		{
			name:       "gone",
			transport:  &mockTransport{body: "gone", statusCode: 410},
			wantStatus: 410,
		},
		{
			name:       "server error is reported, not parsed",
			transport:  &mockTransport{body: "oops", statusCode: 500},
			wantStatus: 500,
		},
		{
			name: "moved permanently with relative location",
			transport: &mockTransport{statusCode: 301, header: http.Header{
				"Location": {"/new/rss"},
			}},
			wantStatus:   301,
			wantLocation: "https://example.com/new/rss",
		},
		{
			name:      "moved without location",
			transport: &mockTransport{statusCode: 301},
			wantErr:   ErrParse,
		},
		{
			name:      "network error",
			transport: &mockTransport{errs: []error{io.ErrUnexpectedEOF}},
			wantErr:   ErrNetwork,
		},
		{
			name:      "invalid xml",
			transport: &mockTransport{body: "not xml at all", statusCode: 200},
			wantErr:   ErrParse,
		},
		{
			name:          "entries without dates",
			transport:     &mockTransport{body: undatedFeed, statusCode: 200},
			wantStatus:    200,
			wantEntries:   1,
			wantMalformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.transport)
			resp, err := f.Fetch(context.Background(), "https://example.com/rss", Validators{})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tt.wantStatus, resp.Status); diff != "" {
				t.Errorf("status mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantETag, resp.ETag); diff != "" {
				t.Errorf("etag mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantLocation, resp.Location); diff != "" {
				t.Errorf("location mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantMalformed, resp.Malformed); diff != "" {
				t.Errorf("malformed mismatch (-want +got):\n%s", diff)
			}
			gotEntries := 0
			if resp.Document != nil {
				gotEntries = len(resp.Document.Entries)
			}
			if diff := cmp.Diff(tt.wantEntries, gotEntries); diff != "" {
				t.Errorf("entry count mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchConditionalHeaders(t *testing.T) {
	tests := []struct {
		name          string
		validators    Validators
		wantNoneMatch string
		wantSince     string
	}{
		{
			name: "unconditional",
		},
		{
			name:          "etag and last-modified",
			validators:    Validators{ETag: `"v1"`, LastModified: "Fri, 10 Jan 2025 12:00:00 GMT"},
			wantNoneMatch: `"v1"`,
			wantSince:     "Fri, 10 Jan 2025 12:00:00 GMT",
		},
		{
			name:       "last-modified only",
			validators: Validators{LastModified: "Fri, 10 Jan 2025 12:00:00 GMT"},
			wantSince:  "Fri, 10 Jan 2025 12:00:00 GMT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &mockTransport{statusCode: 304}
			if _, err := New(transport).Fetch(context.Background(), "https://example.com/rss", tt.validators); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(transport.requests) != 1 {
				t.Fatalf("expected 1 request, got %d", len(transport.requests))
			}
			req := transport.requests[0]
			if diff := cmp.Diff(tt.wantNoneMatch, req.Header.Get("If-None-Match")); diff != "" {
				t.Errorf("If-None-Match mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantSince, req.Header.Get("If-Modified-Since")); diff != "" {
				t.Errorf("If-Modified-Since mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(userAgent, req.Header.Get("User-Agent")); diff != "" {
				t.Errorf("User-Agent mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")
	transport := &mockTransport{
		body:       xml,
		statusCode: 200,
		errs:       []error{io.ErrUnexpectedEOF, nil},
	}

	f := New(transport, WithRetries(2, time.Millisecond))
	resp, err := f.Fetch(context.Background(), "https://example.com/rss", Validators{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(200, resp.Status); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, len(transport.requests)); diff != "" {
		t.Errorf("request count mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchFollowsTemporaryRedirect(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/current", http.StatusFound)
	})
	mux.HandleFunc("/current", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v2"`)
		_, _ = w.Write([]byte(xml))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/current", http.StatusMovedPermanently)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(NewHTTPClient(5 * time.Second))

	resp, err := f.Fetch(context.Background(), srv.URL+"/old", Validators{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(http.StatusFound, resp.Status); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if resp.Document == nil || len(resp.Document.Entries) != 5 {
		t.Fatalf("expected document with 5 entries, got %+v", resp.Document)
	}
	if diff := cmp.Diff(`"v2"`, resp.ETag); diff != "" {
		t.Errorf("etag mismatch (-want +got):\n%s", diff)
	}

	resp, err = f.Fetch(context.Background(), srv.URL+"/moved", Validators{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(http.StatusMovedPermanently, resp.Status); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(srv.URL+"/current", resp.Location); diff != "" {
		t.Errorf("location mismatch (-want +got):\n%s", diff)
	}
	if resp.Document != nil {
		t.Error("permanent redirect should not carry a document")
	}
}

func TestConvertFallsBackToUpdated(t *testing.T) {
	const atom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom</title>
  <entry>
    <title>Only updated</title>
    <id>urn:1</id>
    <link href="https://example.com/1"/>
    <updated>2024-01-01T12:00:00Z</updated>
    <content>Body text</content>
  </entry>
</feed>`

	doc, malformed, err := New(&mockTransport{}).Parse([]byte(atom))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if malformed {
		t.Error("entry with updated date should not be malformed")
	}
	if len(doc.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(doc.Entries))
	}
	e := doc.Entries[0]
	want := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if e.PublishedParsed == nil || !e.PublishedParsed.Equal(want) {
		t.Errorf("published parsed = %v, want %v", e.PublishedParsed, want)
	}
	if diff := cmp.Diff("Body text", e.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://example.com/rss", want: "https://example.com/rss"},
		{in: "http://example.com/rss", want: "http://example.com/rss"},
		{in: "example.com/rss", want: "http://example.com/rss"},
		{in: "  example.com ", want: "http://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, NormalizeURL(tt.in)); diff != "" {
				t.Errorf("NormalizeURL mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
