package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContentKind discriminates Content.
type ContentKind string

const (
	ContentText ContentKind = "text"
	ContentTool ContentKind = "tool"
)

// ToolContent is a structured agent reply tagged with a tool name or type.
type ToolContent struct {
	Name    string          `json:"tool_name,omitempty"`
	Type    string          `json:"tool_type,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	Images  []string        `json:"images,omitempty"`
	// Raw is the whole object as received; it is what gets persisted.
	Raw json.RawMessage `json:"-"`
}

// MessageString returns the message field when it is a JSON string.
func (t ToolContent) MessageString() (string, bool) {
	trimmed := bytes.TrimSpace(t.Message)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}

// Content is the body of a message: markdown text or a tool payload.
type Content struct {
	Kind ContentKind
	Text string
	Tool *ToolContent
}

// Text builds a text content.
func Text(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// Tool builds a tool content.
func Tool(tool ToolContent) Content {
	return Content{Kind: ContentTool, Tool: &tool}
}

// IsTool reports whether the content carries a tool payload.
func (c Content) IsTool() bool {
	return c.Kind == ContentTool && c.Tool != nil
}

// String renders the content as it would be stored.
func (c Content) String() string {
	if !c.IsTool() {
		return c.Text
	}
	data, err := c.Tool.serialize()
	if err != nil {
		return ""
	}
	return string(data)
}

func (t *ToolContent) serialize() ([]byte, error) {
	if len(bytes.TrimSpace(t.Raw)) > 0 {
		return t.Raw, nil
	}
	return json.Marshal(struct {
		Name    string          `json:"tool_name,omitempty"`
		Type    string          `json:"tool_type,omitempty"`
		Message json.RawMessage `json:"message,omitempty"`
		Images  []string        `json:"images,omitempty"`
	}{t.Name, t.Type, t.Message, t.Images})
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsTool() {
		return c.Tool.serialize()
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Text("")
		return nil
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*c = Text(text)
		return nil
	case '{':
		tool, ok, err := ParseToolContent(trimmed)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("content object has no tool_name or tool_type")
		}
		*c = Tool(tool)
		return nil
	default:
		return fmt.Errorf("unsupported content json: %.32s", trimmed)
	}
}

// ParseToolContent decodes a JSON object carrying tool_name/toolName or
// tool_type/toolType. ok is false when neither discriminator is present.
func ParseToolContent(raw []byte) (ToolContent, bool, error) {
	var fields struct {
		ToolName      string          `json:"tool_name"`
		ToolNameCamel string          `json:"toolName"`
		ToolType      string          `json:"tool_type"`
		ToolTypeCamel string          `json:"toolType"`
		Message       json.RawMessage `json:"message"`
		Images        json.RawMessage `json:"images"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ToolContent{}, false, fmt.Errorf("decode tool content: %w", err)
	}
	tool := ToolContent{
		Name:    firstNonEmpty(fields.ToolName, fields.ToolNameCamel),
		Type:    firstNonEmpty(fields.ToolType, fields.ToolTypeCamel),
		Message: fields.Message,
		Images:  decodeImages(fields.Images),
		Raw:     append(json.RawMessage(nil), raw...),
	}
	if tool.Name == "" && tool.Type == "" {
		return ToolContent{}, false, nil
	}
	return tool, true, nil
}

// decodeImages accepts a list of strings or a single string; other shapes
// are ignored.
func decodeImages(raw json.RawMessage) []string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		images := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				images = append(images, s)
			}
		}
		return images
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
