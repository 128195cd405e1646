package responses

import (
	"fmt"

	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/toolname"
)

// FromAnthropic converts an Anthropic-dialect request into an OpenAI
// Responses request (§4.2.3), recording any tool-name truncations in names.
// max_tokens is deliberately not forwarded; store is always false.
func FromAnthropic(req *dialect.Request, defaultModel string, names *toolname.Map) (*Request, error) {
	out := &Request{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
		Store:       false,
	}
	if out.Model == "" {
		out.Model = defaultModel
	}
	if req.System != nil {
		out.Instructions = req.System.Joined()
	}

	for _, m := range req.Messages {
		items, err := convertMessage(m, names)
		if err != nil {
			return nil, err
		}
		out.Input = append(out.Input, items...)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, ToolFunction{
			Type:        "function",
			Name:        names.Put(t.Name),
			Description: t.Description,
			Parameters:  t.InputSchema,
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
		return map[string]any{"type": "function", "name": names.Put(tc.Name)}
	default:
		return tc.Mode
	}
}

func convertMessage(m dialect.Message, names *toolname.Map) ([]InputItem, error) {
	switch m.Role {
	case dialect.RoleUser:
		return convertUserMessage(m)
	case dialect.RoleAssistant:
		return convertAssistantMessage(m, names)
	case dialect.RoleTool:
		return []InputItem{{
			Type:   "function_call_output",
			CallID: m.ToolUseID,
			Output: m.Content.TextOnly(),
		}}, nil
	}
	return nil, fmt.Errorf("responses: unknown role %q", m.Role)
}

// convertUserMessage implements the user-message rule of §4.2.3: tool
// results become function_call_output items, everything else becomes a
// single message item.
func convertUserMessage(m dialect.Message) ([]InputItem, error) {
	if m.Content.IsText {
		return []InputItem{{
			Type: "message",
			Role: "user",
			Content: []InputContent{{Type: "input_text", Text: m.Content.Text}},
		}}, nil
	}

	var items []InputItem
	var contentParts []InputContent
	for _, b := range m.Content.Blocks {
		switch b.Type {
		case dialect.BlockText:
			contentParts = append(contentParts, InputContent{Type: "input_text", Text: b.Text})
		case dialect.BlockImage:
			if b.Source == nil {
				continue
			}
			contentParts = append(contentParts, InputContent{
				Type:     "input_image",
				ImageURL: fmt.Sprintf("data:%s;base64,%s", b.Source.MediaType, b.Source.Data),
			})
		case dialect.BlockToolResult:
			items = append(items, InputItem{
				Type:   "function_call_output",
				CallID: b.ToolUseID,
				Output: b.FlattenText(),
			})
		}
	}
	if len(contentParts) > 0 {
		items = append([]InputItem{{Type: "message", Role: "user", Content: contentParts}}, items...)
	}
	return items, nil
}

// convertAssistantMessage implements the interleaving rule of §4.2.3: the
// text accumulator is flushed as a single message item whenever a tool_use
// block breaks the run, and again at the end.
func convertAssistantMessage(m dialect.Message, names *toolname.Map) ([]InputItem, error) {
	if m.Content.IsText {
		if m.Content.Text == "" {
			return nil, nil
		}
		return []InputItem{textItem(m.Content.Text)}, nil
	}

	var items []InputItem
	var textAcc string

	flush := func() {
		if textAcc == "" {
			return
		}
		items = append(items, textItem(textAcc))
		textAcc = ""
	}

	for _, b := range m.Content.Blocks {
		switch b.Type {
		case dialect.BlockText:
			if textAcc != "" {
				textAcc += "\n"
			}
			textAcc += b.Text
		case dialect.BlockToolUse:
			flush()
			args := "{}"
			if len(b.Input) > 0 {
				args = string(b.Input)
			}
			items = append(items, InputItem{
				Type:      "function_call",
				CallID:    b.ID,
				Name:      names.Put(b.Name),
				Arguments: args,
				Status:    "completed",
			})
		}
	}
	flush()
	return items, nil
}

// textItem builds an assistant message item holding a single output_text
// content entry (§4.2.3).
func textItem(text string) InputItem {
	return InputItem{
		Type:    "message",
		Role:    "assistant",
		Status:  "completed",
		Content: []InputContent{{Type: "output_text", Text: text}},
	}
}
