package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"agentchat/internal/domain/chat"
)

// ToolView is the renderer-facing shape of a tool payload. The set of
// implementations is closed: VideoTable, ItemList, Markdown and Generic.
type ToolView interface {
	toolView()
}

// VideoTable lists video results (message.videos).
type VideoTable struct {
	Tool   string
	Videos []json.RawMessage
}

// ItemList lists generic result items (message.items).
type ItemList struct {
	Tool  string
	Items []json.RawMessage
}

// Markdown is a tool payload whose message is plain markdown.
type Markdown struct {
	Tool string
	Text string
}

// Generic is any other structured payload, kept whole.
type Generic struct {
	Tool string
	Raw  json.RawMessage
}

func (VideoTable) toolView() {}
func (ItemList) toolView()   {}
func (Markdown) toolView()   {}
func (Generic) toolView()    {}

// DecodeToolView picks the view for a tool payload. Raw elements are passed
// through unchanged.
func DecodeToolView(tool chat.ToolContent) (ToolView, error) {
	name := tool.Name
	if name == "" {
		name = tool.Type
	}
	if text, ok := tool.MessageString(); ok {
		return Markdown{Tool: name, Text: text}, nil
	}

	message := bytes.TrimSpace(tool.Message)
	if len(message) > 0 && message[0] == '{' {
		var fields struct {
			Videos json.RawMessage `json:"videos"`
			Items  json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(message, &fields); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", name, err)
		}
		if len(fields.Videos) > 0 {
			var videos []json.RawMessage
			if err := json.Unmarshal(fields.Videos, &videos); err != nil {
				return nil, fmt.Errorf("decode %s videos: %w", name, err)
			}
			return VideoTable{Tool: name, Videos: videos}, nil
		}
		if len(fields.Items) > 0 {
			var items []json.RawMessage
			if err := json.Unmarshal(fields.Items, &items); err != nil {
				return nil, fmt.Errorf("decode %s items: %w", name, err)
			}
			return ItemList{Tool: name, Items: items}, nil
		}
	}

	raw := tool.Raw
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage(chat.Tool(tool).String())
	}
	return Generic{Tool: name, Raw: raw}, nil
}
