// Package normalize turns agent endpoint replies into chat message content.
//
// Replies are decoded once at the boundary into a closed set of kinds
// (Reply), then mapped to the messages to display and the text to persist.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"agentchat/internal/domain/chat"

	"github.com/kaptinlin/jsonrepair"
)

// Kind classifies a decoded agent reply.
type Kind string

const (
	KindEmpty Kind = "empty"
	KindTool  Kind = "tool"
	KindText  Kind = "text"
)

// ErrAmbiguousReply is returned for arrays carrying more than one usable reply.
var ErrAmbiguousReply = errors.New("agent reply array has more than one element")

// Reply is a decoded agent response.
type Reply struct {
	Kind    Kind
	Text    string
	Sources []string
	Tool    chat.ToolContent
}

// Decode classifies a raw response body. Arrays of one element are unwrapped
// and malformed JSON is repaired before giving up.
func Decode(body []byte) (Reply, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Reply{Kind: KindEmpty}, nil
	}
	if !json.Valid(trimmed) {
		repaired, err := jsonrepair.JSONRepair(string(trimmed))
		if err != nil {
			return Reply{}, fmt.Errorf("decode agent reply: %w", err)
		}
		trimmed = bytes.TrimSpace([]byte(repaired))
	}
	return decodeValue(trimmed)
}

func decodeValue(raw []byte) (Reply, error) {
	if len(raw) == 0 {
		return Reply{Kind: KindEmpty}, nil
	}
	switch raw[0] {
	case 'n':
		return Reply{Kind: KindEmpty}, nil
	case '[':
		return decodeArray(raw)
	case '{':
		return decodeObject(raw)
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return Reply{}, fmt.Errorf("decode agent reply: %w", err)
		}
		return textReply(text, nil), nil
	default:
		return textReply(string(raw), nil), nil
	}
}

func decodeArray(raw []byte) (Reply, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return Reply{}, fmt.Errorf("decode agent reply array: %w", err)
	}
	switch len(elements) {
	case 0:
		return Reply{Kind: KindEmpty}, nil
	case 1:
		return decodeValue(bytes.TrimSpace(elements[0]))
	}
	for _, element := range elements {
		reply, err := decodeValue(bytes.TrimSpace(element))
		if err != nil {
			return Reply{}, err
		}
		if reply.Kind != KindEmpty {
			return Reply{}, ErrAmbiguousReply
		}
	}
	return Reply{Kind: KindEmpty}, nil
}

func decodeObject(raw []byte) (Reply, error) {
	tool, ok, err := chat.ParseToolContent(raw)
	if err != nil {
		return Reply{}, err
	}
	if ok {
		return Reply{Kind: KindTool, Tool: tool}, nil
	}

	var fields struct {
		Message json.RawMessage `json:"message"`
		Sources json.RawMessage `json:"sources"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Reply{}, fmt.Errorf("decode agent reply object: %w", err)
	}
	message := bytes.TrimSpace(fields.Message)
	if len(message) == 0 || bytes.Equal(message, []byte("null")) {
		return Reply{Kind: KindEmpty}, nil
	}
	text := string(message)
	if message[0] == '"' {
		if err := json.Unmarshal(message, &text); err != nil {
			return Reply{}, fmt.Errorf("decode agent reply message: %w", err)
		}
	}
	return textReply(text, decodeSources(fields.Sources)), nil
}

func textReply(text string, sources []string) Reply {
	if strings.TrimSpace(text) == "" {
		return Reply{Kind: KindEmpty}
	}
	return Reply{Kind: KindText, Text: text, Sources: sources}
}

// decodeSources accepts string entries and objects carrying a url field.
func decodeSources(raw json.RawMessage) []string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	sources := make([]string, 0, len(entries))
	for _, entry := range entries {
		var url string
		if err := json.Unmarshal(entry, &url); err == nil {
			if url = strings.TrimSpace(url); url != "" {
				sources = append(sources, url)
			}
			continue
		}
		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(entry, &obj); err == nil && strings.TrimSpace(obj.URL) != "" {
			sources = append(sources, strings.TrimSpace(obj.URL))
		}
	}
	if len(sources) == 0 {
		return nil
	}
	return sources
}
