// Package render turns message content into HTML for the web API and styled
// text for the terminal. Tool payloads are first reduced to markdown so both
// targets share one layout.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"agentchat/internal/app/normalize"
	"agentchat/internal/domain/chat"
)

// Column order for tabular tool payloads; remaining keys follow sorted.
var preferredColumns = []string{"title", "name", "url", "link", "channel", "duration", "views", "published_at", "description"}

// Markdown returns the markdown form of any content.
func Markdown(content chat.Content) string {
	if !content.IsTool() {
		return content.Text
	}
	return ToolMarkdown(*content.Tool)
}

// ToolMarkdown renders a tool payload through its view.
func ToolMarkdown(tool chat.ToolContent) string {
	view, err := normalize.DecodeToolView(tool)
	if err != nil {
		return codeBlock(chat.Tool(tool).String())
	}

	switch v := view.(type) {
	case normalize.VideoTable:
		return heading(v.Tool) + table(v.Videos)
	case normalize.ItemList:
		return heading(v.Tool) + bulletList(v.Items)
	case normalize.Markdown:
		return v.Text
	case normalize.Generic:
		return heading(v.Tool) + codeBlock(string(v.Raw))
	default:
		return codeBlock(chat.Tool(tool).String())
	}
}

func heading(tool string) string {
	if tool == "" {
		return ""
	}
	return "**" + escapeInline(tool) + "**\n\n"
}

func table(rows []json.RawMessage) string {
	if len(rows) == 0 {
		return "_No results._\n"
	}

	records := make([]map[string]any, 0, len(rows))
	present := map[string]struct{}{}
	for _, raw := range rows {
		record := decodeRecord(raw)
		for key := range record {
			present[key] = struct{}{}
		}
		records = append(records, record)
	}
	columns := orderColumns(present)

	var b strings.Builder
	b.WriteString("|")
	for _, column := range columns {
		b.WriteString(" " + escapeCell(column) + " |")
	}
	b.WriteString("\n|")
	for range columns {
		b.WriteString(" --- |")
	}
	b.WriteByte('\n')
	for _, record := range records {
		b.WriteString("|")
		for _, column := range columns {
			b.WriteString(" " + cell(column, record[column]) + " |")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func bulletList(items []json.RawMessage) string {
	if len(items) == 0 {
		return "_No results._\n"
	}
	var b strings.Builder
	for _, raw := range items {
		record := decodeRecord(raw)
		label := firstString(record, "title", "name", "text", "value")
		link := firstString(record, "url", "link")
		switch {
		case label != "" && link != "":
			fmt.Fprintf(&b, "- [%s](%s)", escapeInline(label), link)
		case label != "":
			b.WriteString("- " + escapeInline(label))
		case link != "":
			fmt.Fprintf(&b, "- <%s>", link)
		default:
			b.WriteString("- `" + compactJSON(raw) + "`")
		}
		if description := firstString(record, "description", "summary"); description != "" {
			b.WriteString(": " + escapeInline(description))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// decodeRecord reads an object payload; scalars become a "value" record.
func decodeRecord(raw json.RawMessage) map[string]any {
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err == nil && record != nil {
		return record
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return map[string]any{"value": string(raw)}
	}
	return map[string]any{"value": value}
}

func orderColumns(present map[string]struct{}) []string {
	columns := make([]string, 0, len(present))
	for _, key := range preferredColumns {
		if _, ok := present[key]; ok {
			columns = append(columns, key)
			delete(present, key)
		}
	}
	rest := make([]string, 0, len(present))
	for key := range present {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

func cell(column string, value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		if (column == "url" || column == "link") && isWebURL(v) {
			return "[" + escapeCell(v) + "](" + v + ")"
		}
		return escapeCell(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return escapeCell(string(data))
	}
}

func firstString(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := record[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func isWebURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func escapeInline(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`, "*", `\*`, "_", `\_`).Replace(s)
}

func codeBlock(raw string) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(raw), "", "  "); err == nil {
		raw = pretty.String()
	}
	return "```json\n" + strings.TrimRight(raw, "\n") + "\n```\n"
}

func compactJSON(raw json.RawMessage) string {
	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		return strings.ReplaceAll(string(raw), "`", "'")
	}
	return strings.ReplaceAll(out.String(), "`", "'")
}
