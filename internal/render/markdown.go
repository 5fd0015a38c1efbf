// Package render turns transcript entries into HTML bubbles. Bot text is Markdown and is rendered,
// never executed: raw HTML inside a reply is dropped by the renderer. User text is escaped verbatim.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/MegaGrindStone/study-buddy/internal/models"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown renders bubbles for the web client.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a renderer with GitHub flavored Markdown and syntax highlighted code fences.
func NewMarkdown() Markdown {
	return Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
				),
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
			),
		),
	}
}

// Bot renders Markdown text to HTML.
func (m Markdown) Bot(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	// goldmark omits raw HTML unless html.WithUnsafe is set.
	return template.HTML(buf.String()), nil
}

// User escapes text and keeps its line breaks.
func (m Markdown) User(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

// Message renders msg according to its sender.
func (m Markdown) Message(msg models.Message) (template.HTML, error) {
	if msg.IsUser() {
		return m.User(msg.Text), nil
	}
	return m.Bot(msg.Text)
}
