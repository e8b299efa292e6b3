// Package transcript renders a channel's message history as a standalone HTML
// document.
package transcript

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrEmpty is returned when there is nothing to export.
var ErrEmpty = errors.New("transcript is empty")

// Message is a single chat message.
type Message struct {
	ID          string
	AuthorID    string
	Author      string
	Content     string
	Timestamp   time.Time
	Attachments []string
	Embeds      int
}

// Meta describes the ticket the transcript belongs to.
type Meta struct {
	Title    string
	Guild    string
	Channel  string
	Exported time.Time
}

type renderedMessage struct {
	Author      string
	AuthorID    string
	Timestamp   string
	Body        template.HTML
	Attachments []string
	Embeds      int
}

// Exporter turns messages into HTML.
type Exporter struct {
	md   goldmark.Markdown
	page *template.Template
}

// NewExporter creates an exporter. Raw HTML in message content is escaped.
func NewExporter() *Exporter {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	return &Exporter{
		md:   md,
		page: template.Must(template.New("transcript").Parse(pageTemplate)),
	}
}

// Export renders the messages, which must be in chronological order.
func (e *Exporter) Export(meta Meta, msgs []Message) ([]byte, error) {
	if len(msgs) == 0 {
		return nil, ErrEmpty
	}

	rendered := make([]renderedMessage, 0, len(msgs))
	for _, m := range msgs {
		body := new(bytes.Buffer)
		if err := e.md.Convert([]byte(m.Content), body); err != nil {
			return nil, fmt.Errorf("error rendering message %s: %w", m.ID, err)
		}

		rendered = append(rendered, renderedMessage{
			Author:    m.Author,
			AuthorID:  m.AuthorID,
			Timestamp: m.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"),
			// goldmark escapes raw HTML unless html.WithUnsafe is set.
			Body:        template.HTML(body.String()),
			Attachments: m.Attachments,
			Embeds:      m.Embeds,
		})
	}

	if meta.Exported.IsZero() {
		meta.Exported = time.Now()
	}

	out := new(bytes.Buffer)
	err := e.page.Execute(out, struct {
		Meta     Meta
		Exported string
		Count    int
		Messages []renderedMessage
	}{
		Meta:     meta,
		Exported: meta.Exported.UTC().Format(time.RFC1123),
		Count:    len(rendered),
		Messages: rendered,
	})
	if err != nil {
		return nil, fmt.Errorf("error executing transcript template: %w", err)
	}
	return out.Bytes(), nil
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Meta.Title }}</title>
<style>
body { background: #313338; color: #dbdee1; font-family: sans-serif; margin: 0; padding: 1rem 2rem; }
header { border-bottom: 1px solid #4e5058; margin-bottom: 1rem; }
.message { padding: .4rem 0; }
.author { color: #f2f3f5; font-weight: 600; }
.time { color: #949ba4; font-size: .75rem; margin-left: .5rem; }
.body p { margin: .2rem 0; }
.attachment { color: #00a8fc; display: block; }
.embeds { color: #949ba4; font-style: italic; }
</style>
</head>
<body>
<header>
<h1>{{ .Meta.Title }}</h1>
<p>{{ .Meta.Guild }} / #{{ .Meta.Channel }} &middot; {{ .Count }} messages &middot; exported {{ .Exported }}</p>
</header>
{{ range .Messages -}}
<div class="message">
<span class="author" title="{{ .AuthorID }}">{{ .Author }}</span><span class="time">{{ .Timestamp }}</span>
<div class="body">{{ .Body }}</div>
{{- range .Attachments }}
<a class="attachment" href="{{ . }}">{{ . }}</a>
{{- end }}
{{- if .Embeds }}
<div class="embeds">{{ .Embeds }} embed(s)</div>
{{- end }}
</div>
{{ end -}}
</body>
</html>
`
