// Package render formats feeds and entries for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/JustADataConstruct/TermRSS/internal/model"
)

// Renderer produces optionally colored terminal text.
type Renderer struct {
	header *color.Color
	alert  *color.Color
	title  *color.Color
	link   *color.Color
	dim    *color.Color
	errC   *color.Color
	okC    *color.Color
	infoC  *color.Color
}

// New creates a Renderer. Colors are emitted whenever enabled is true, even
// when stdout is not a terminal.
func New(enabled bool) *Renderer {
	r := &Renderer{
		header: color.New(color.BgCyan, color.FgBlack),
		alert:  color.New(color.BgCyan, color.FgBlack),
		title:  color.New(color.Bold),
		link:   color.New(color.FgBlue),
		dim:    color.New(color.Faint),
		errC:   color.New(color.FgRed),
		okC:    color.New(color.FgGreen),
		infoC:  color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{r.header, r.alert, r.title, r.link, r.dim, r.errC, r.okC, r.infoC} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Header formats the banner shown above a feed's entries.
func (r *Renderer) Header(name, url string) string {
	return r.header.Sprintf("----[%s - %s]----", model.Key(name), url) + "\n\n"
}

// Entry formats a single entry. desc is the plain-text summary.
func (r *Renderer) Entry(e model.Entry, desc string, isNew bool) string {
	var b strings.Builder
	if isNew {
		b.WriteString(r.alert.Sprint(" [NEW] "))
		b.WriteString(r.title.Sprint(e.Title))
	} else {
		b.WriteString(e.Title)
	}
	b.WriteString("\n")
	b.WriteString(r.link.Sprint(e.Link) + "\n")
	if isNew {
		b.WriteString(desc + "\n")
	} else {
		b.WriteString(r.dim.Sprint(desc) + "\n")
	}
	b.WriteString(r.dim.Sprint(e.Published) + "\n\n")
	return b.String()
}

// Error writes a formatted line in red.
func (r *Renderer) Error(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, r.errC.Sprintf(format, args...))
}

// OK writes a formatted line in green.
func (r *Renderer) OK(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, r.okC.Sprintf(format, args...))
}

// Info writes a formatted line in yellow.
func (r *Renderer) Info(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, r.infoC.Sprintf(format, args...))
}
