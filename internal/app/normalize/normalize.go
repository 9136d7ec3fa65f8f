package normalize

import (
	"fmt"
	"strings"

	"agentchat/internal/domain/chat"
)

// ApologyText is shown and stored when the agent returns nothing usable.
const ApologyText = "Sorry, I couldn't generate a response. Please try again."

const blogToolType = "blog"

// Outcome is what one reply turns into.
type Outcome struct {
	Kind Kind
	// Messages are the assistant messages to display, in order.
	Messages []chat.Content
	// Stored is the text persisted as the turn's message column.
	Stored string
}

// Normalize maps a decoded reply to displayable content and stored text.
func Normalize(reply Reply) Outcome {
	switch reply.Kind {
	case KindTool:
		return normalizeTool(reply.Tool)
	case KindText:
		messages := []chat.Content{chat.Text(reply.Text)}
		if len(reply.Sources) > 0 {
			messages = append(messages, chat.Text(SourcesMarkdown(reply.Sources)))
		}
		return Outcome{Kind: KindText, Messages: messages, Stored: reply.Text}
	default:
		return Outcome{
			Kind:     KindEmpty,
			Messages: []chat.Content{chat.Text(ApologyText)},
			Stored:   ApologyText,
		}
	}
}

func normalizeTool(tool chat.ToolContent) Outcome {
	stored := chat.Tool(tool).String()
	if strings.EqualFold(tool.Type, blogToolType) && len(tool.Images) > 0 {
		if text, ok := tool.MessageString(); ok {
			return Outcome{
				Kind:     KindTool,
				Messages: []chat.Content{chat.Text(InterleaveImages(text, tool.Images))},
				Stored:   stored,
			}
		}
	}
	return Outcome{Kind: KindTool, Messages: []chat.Content{chat.Tool(tool)}, Stored: stored}
}

// SourcesMarkdown renders sources as a markdown bullet list of links.
func SourcesMarkdown(sources []string) string {
	var b strings.Builder
	for i, source := range sources {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- [%s](%s)", source, source)
	}
	return b.String()
}

// Body decodes and normalizes a raw response body in one step.
func Body(body []byte) (Outcome, error) {
	reply, err := Decode(body)
	if err != nil {
		return Outcome{}, err
	}
	return Normalize(reply), nil
}

// StoredContent rebuilds display content from a persisted message column.
// Tool objects come back as tool content, everything else as text.
func StoredContent(stored string) chat.Content {
	trimmed := strings.TrimSpace(stored)
	if strings.HasPrefix(trimmed, "{") {
		if tool, ok, err := chat.ParseToolContent([]byte(trimmed)); err == nil && ok {
			return Normalize(Reply{Kind: KindTool, Tool: tool}).Messages[0]
		}
	}
	return chat.Text(stored)
}
