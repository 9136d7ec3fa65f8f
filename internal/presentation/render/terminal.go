package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"agentchat/internal/domain/chat"

	"github.com/charmbracelet/glamour"
)

const (
	defaultWrap = 80
	maxWrap     = 120
)

var imgTagPattern = regexp.MustCompile(`<img\s[^>]*src="([^"]*)"[^>]*>`)

// TerminalRenderer renders content for a terminal with glamour.
type TerminalRenderer struct {
	renderer *glamour.TermRenderer
}

// NewTerminalRenderer creates a renderer wrapping at width columns. Plain
// mode drops colors for non-TTY output.
func NewTerminalRenderer(width int, plain bool) (*TerminalRenderer, error) {
	if width <= 0 {
		width = defaultWrap
	}
	if width > maxWrap {
		width = maxWrap
	}

	style := glamour.WithStandardStyle("dark")
	if plain {
		style = glamour.WithStandardStyle("notty")
	}
	renderer, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	return &TerminalRenderer{renderer: renderer}, nil
}

// Render returns the styled text for content. Rendering errors fall back to
// the raw markdown.
func (r *TerminalRenderer) Render(content chat.Content) string {
	source := imagesAsLinks(Markdown(content))
	if strings.TrimSpace(source) == "" {
		return ""
	}
	out, err := r.renderer.Render(source)
	if err != nil {
		return source
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// imagesAsLinks swaps interleaved image tags for markdown images, which the
// terminal shows as links.
func imagesAsLinks(source string) string {
	return imgTagPattern.ReplaceAllStringFunc(source, func(tag string) string {
		match := imgTagPattern.FindStringSubmatch(tag)
		return "![image](" + html.UnescapeString(match[1]) + ")"
	})
}
