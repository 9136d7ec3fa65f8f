package render

import (
	"bytes"
	"fmt"
	"regexp"

	"agentchat/internal/domain/chat"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

const postImageClass = "bot-post-img"

// HTMLRenderer converts content to sanitized HTML. It is safe for concurrent
// use.
type HTMLRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewHTMLRenderer builds a GFM renderer whose output passes a UGC policy
// that also keeps the interleaved post image class.
func NewHTMLRenderer() *HTMLRenderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(regexp.MustCompile(`^` + postImageClass + `$`)).OnElements("img")

	return &HTMLRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			// Raw HTML is needed for interleaved images; the policy strips the rest.
			goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
		),
		policy: policy,
	}
}

// Render returns the HTML for content.
func (r *HTMLRenderer) Render(content chat.Content) (string, error) {
	return r.Markdown(Markdown(content))
}

// Markdown converts and sanitizes a markdown document.
func (r *HTMLRenderer) Markdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}
