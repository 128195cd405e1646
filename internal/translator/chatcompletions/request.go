package chatcompletions

import (
	"encoding/json"
	"fmt"

	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/toolname"
)

// FromAnthropic converts an Anthropic-dialect request into an OpenAI Chat
// Completions request (§4.2.1), recording any tool-name truncations in names.
func FromAnthropic(req *dialect.Request, defaultModel string, names *toolname.Map) (*Request, error) {
	out := &Request{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}
	if out.Model == "" {
		out.Model = defaultModel
	}

	if req.System != nil {
		if joined := req.System.Joined(); joined != "" {
			out.Messages = append(out.Messages, Message{Role: "system", Content: joined})
		}
	}

	for _, m := range req.Messages {
		msgs, err := convertMessage(m, names)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, msgs...)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, Tool{
			Type: "function",
			Function: ToolFunction{
				Name:        names.Put(t.Name),
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	if req.ToolChoice != nil {
		out.ToolChoice = convertToolChoice(*req.ToolChoice, names)
	}

	return out, nil
}

func convertToolChoice(tc dialect.ToolChoice, names *toolname.Map) any {
	switch tc.Mode {
	case "auto":
		return "auto"
	case "any":
		return "required"
	case "none":
		return "none"
	case "tool":
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": names.Put(tc.Name)},
		}
	default:
		return tc.Mode
	}
}

func convertMessage(m dialect.Message, names *toolname.Map) ([]Message, error) {
	switch m.Role {
	case dialect.RoleTool:
		// A tool result surfaced as its own message (§4.2.1).
		return []Message{{
			Role:       "tool",
			ToolCallID: m.ToolUseID,
			Content:    m.Content.TextOnly(),
		}}, nil

	case dialect.RoleUser:
		return convertUserMessage(m)

	case dialect.RoleAssistant:
		return convertAssistantMessage(m, names)
	}
	return nil, fmt.Errorf("chatcompletions: unknown role %q", m.Role)
}

func convertUserMessage(m dialect.Message) ([]Message, error) {
	if m.Content.IsText {
		return []Message{{Role: "user", Content: m.Content.Text}}, nil
	}

	var parts []ContentPart
	for _, b := range m.Content.Blocks {
		switch b.Type {
		case dialect.BlockText:
			parts = append(parts, ContentPart{Type: "text", Text: b.Text})
		case dialect.BlockImage:
			if b.Source == nil {
				continue
			}
			parts = append(parts, ContentPart{
				Type: "image_url",
				ImageURL: &ImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", b.Source.MediaType, b.Source.Data),
				},
			})
		case dialect.BlockToolResult:
			parts = append(parts, ContentPart{Type: "text", Text: b.FlattenText()})
		}
	}
	if len(parts) == 1 && parts[0].Type == "text" {
		return []Message{{Role: "user", Content: parts[0].Text}}, nil
	}
	return []Message{{Role: "user", Content: parts}}, nil
}

func convertAssistantMessage(m dialect.Message, names *toolname.Map) ([]Message, error) {
	if m.Content.IsText {
		return []Message{{Role: "assistant", Content: m.Content.Text}}, nil
	}

	var textParts []string
	var toolCalls []ToolCall
	for _, b := range m.Content.Blocks {
		switch b.Type {
		case dialect.BlockText:
			textParts = append(textParts, b.Text)
		case dialect.BlockToolUse:
			args := "{}"
			if len(b.Input) > 0 {
				args = string(b.Input)
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:   b.ID,
				Type: "function",
				Function: ToolCallFunc{
					Name:      names.Put(b.Name),
					Arguments: args,
				},
			})
		}
	}
	msg := Message{Role: "assistant", ToolCalls: toolCalls}
	if len(textParts) > 0 {
		joined := ""
		for i, t := range textParts {
			if i > 0 {
				joined += "\n"
			}
			joined += t
		}
		msg.Content = joined
	}
	return []Message{msg}, nil
}

// Marshal is a convenience wrapper for sending the translated request.
func (r *Request) Marshal() ([]byte, error) { return json.Marshal(r) }
