// ABOUTME: Renders a room's message history as a Markdown or HTML transcript
// ABOUTME: HTML is produced with goldmark; raw HTML in message text is never passed through

package transcript

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/agentchat/internal/store"
)

// Formats accepted by Render.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// Markdown renders msgs as a Markdown document. Chat messages keep their own
// Markdown; system messages become quoted notices.
func Markdown(room string, msgs []*store.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", escapeInline(room))
	if len(msgs) == 0 {
		b.WriteString("_No messages yet._\n")
		return b.String()
	}

	for _, m := range msgs {
		if m.Type == store.MessageTypeSystem {
			fmt.Fprintf(&b, "> _%s: %s_ (%s)\n\n", escapeInline(m.Sender), escapeInline(m.Content), m.Timestamp)
			continue
		}
		fmt.Fprintf(&b, "**%s** _(%s)_\n\n", escapeInline(m.Sender), m.Timestamp)
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n\n")
	}
	return b.String()
}

// HTML renders msgs as an HTML fragment.
func HTML(room string, msgs []*store.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(room, msgs)), &buf); err != nil {
		return nil, fmt.Errorf("rendering transcript: %w", err)
	}
	return buf.Bytes(), nil
}

// Render produces the transcript in format and returns it with its content type.
func Render(format, room string, msgs []*store.Message) ([]byte, string, error) {
	switch format {
	case "", FormatMarkdown, "md":
		return []byte(Markdown(room, msgs)), "text/markdown; charset=utf-8", nil
	case FormatHTML:
		body, err := HTML(room, msgs)
		if err != nil {
			return nil, "", err
		}
		return body, "text/html; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("unknown transcript format %q", format)
	}
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"<", "&lt;",
	">", "&gt;",
	"\n", " ",
)

// escapeInline neutralizes Markdown emphasis and HTML in short inline fields.
func escapeInline(s string) string {
	return inlineEscaper.Replace(s)
}
