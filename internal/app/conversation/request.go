package conversation

import (
	"strings"

	"agentchat/internal/domain/chat"
	"agentchat/internal/infra/agentclient"
)

// Prompt template placeholders.
const (
	placeholderQuery          = "{{query}}"
	placeholderInitialMessage = "{{initial_message}}"
	placeholderLastResponse   = "{{last_response}}"
	placeholderUserID         = "{{user_id}}"
	placeholderSessionID      = "{{session_id}}"
)

// reservedBodyKeys cannot be overridden by configured body params.
var reservedBodyKeys = map[string]struct{}{
	"query":      {},
	"UID":        {},
	"session_id": {},
}

type turnInput struct {
	text      string
	userID    string
	sessionID string
	history   chat.CacheEntry
}

func (in turnInput) replacer() *strings.Replacer {
	lastResponse := ""
	if n := len(in.history.Responses); n > 0 {
		lastResponse = in.history.Responses[n-1].Content
	}
	initial := in.history.InitialMessage
	if initial == "" {
		initial = in.text
	}
	return strings.NewReplacer(
		placeholderQuery, in.text,
		placeholderInitialMessage, initial,
		placeholderLastResponse, lastResponse,
		placeholderUserID, in.userID,
		placeholderSessionID, in.sessionID,
	)
}

// buildRequest assembles the agent call: the rendered prompt as query, the
// identity fields, the optional agent role, history context and the
// configured body params and headers with placeholders substituted.
func buildRequest(agent chat.Agent, in turnInput) agentclient.Request {
	replacer := in.replacer()

	query := in.text
	if template := strings.TrimSpace(agent.Prompt); template != "" {
		if strings.Contains(template, placeholderQuery) {
			query = replacer.Replace(template)
		} else {
			query = replacer.Replace(template) + "\n\n" + in.text
		}
	}

	body := make(map[string]any, len(agent.Config.BodyParams)+5)
	for key, value := range agent.Config.BodyParams {
		if _, reserved := reservedBodyKeys[key]; reserved {
			continue
		}
		body[key] = substitute(value, replacer)
	}
	body["query"] = query
	body["UID"] = in.userID
	body["session_id"] = in.sessionID
	if role := strings.TrimSpace(agent.AgentRole); role != "" {
		body["agent_role"] = role
	}
	if in.history.InitialMessage != "" || len(in.history.Responses) > 0 {
		responses := make([]string, 0, len(in.history.Responses))
		for _, response := range in.history.Responses {
			responses = append(responses, response.Content)
		}
		body["history"] = map[string]any{
			"initial_message": in.history.InitialMessage,
			"responses":       responses,
		}
	}

	headers := make(map[string]string, len(agent.Config.Headers))
	for key, value := range agent.Config.Headers {
		headers[key] = replacer.Replace(value)
	}

	return agentclient.Request{
		AgentID: agent.ID,
		URL:     agent.APIURL,
		Headers: headers,
		Body:    body,
	}
}

func substitute(value any, replacer *strings.Replacer) any {
	switch v := value.(type) {
	case string:
		return replacer.Replace(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = substitute(inner, replacer)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = substitute(inner, replacer)
		}
		return out
	default:
		return value
	}
}
