package htmltext

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain text", in: "Weekly notes", want: "Weekly notes"},
		{name: "inline tags", in: "<p>New <b>Kubernetes</b> release</p>", want: "New Kubernetes release"},
		{name: "entities", in: "Tom &amp; Jerry &lt;3", want: "Tom & Jerry <3"},
		{name: "paragraphs", in: "<p>one</p><p>two</p>", want: "one\ntwo"},
		{name: "line breaks", in: "a<br>b<br/>c", want: "a\nb\nc"},
		{name: "collapses whitespace", in: "  lots   of\t\tspace  ", want: "lots of space"},
		{name: "drops scripts", in: "<script>alert(1)</script>safe", want: "safe"},
		{name: "links keep text", in: `read <a href="https://example.com">more</a>`, want: "read more"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ToText(tt.in)); diff != "" {
				t.Errorf("ToText mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConverterMemoizes(t *testing.T) {
	c := NewConverter(2)
	in := "<p>cached</p>"

	first := c.ToText(in)
	if !c.cache.Contains(in) {
		t.Fatal("result was not cached")
	}
	if diff := cmp.Diff(first, c.ToText(in)); diff != "" {
		t.Errorf("memoized result mismatch (-want +got):\n%s", diff)
	}

	c.ToText("a")
	c.ToText("b")
	if c.cache.Contains(in) {
		t.Error("least recently used entry was not evicted")
	}
}
