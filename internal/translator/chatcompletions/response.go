package chatcompletions

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/toolname"
)

// ToAnthropic converts an OpenAI Chat Completions response into the
// Anthropic dialect (§4.2.2).
func ToAnthropic(raw []byte, names *toolname.Map) (*dialect.Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	out := &dialect.Response{
		ID:    resp.ID,
		Type:  "message",
		Role:  dialect.RoleAssistant,
		Model: resp.Model,
		Usage: dialect.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	if out.ID == "" {
		out.ID = "msg_" + uuid.NewString()
	}

	var finishReason string
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		finishReason = choice.FinishReason

		if text, ok := choice.Message.Content.(string); ok && text != "" {
			out.Content = append(out.Content, dialect.ContentBlock{Type: dialect.BlockText, Text: text})
		}

		for _, tc := range choice.Message.ToolCalls {
			var input json.RawMessage
			if tc.Function.Arguments != "" {
				var parsed any
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &parsed); err == nil {
					input = json.RawMessage(tc.Function.Arguments)
				} else {
					input = json.RawMessage("{}")
				}
			} else {
				input = json.RawMessage("{}")
			}
			out.Content = append(out.Content, dialect.ContentBlock{
				Type:  dialect.BlockToolUse,
				ID:    tc.ID,
				Name:  names.Restore(tc.Function.Name),
				Input: input,
			})
		}
	}

	out.StopReason = mapFinishReason(finishReason)
	return out, nil
}

// mapFinishReason implements the §4.2.2 finish_reason mapping.
func mapFinishReason(reason string) dialect.StopReason {
	switch reason {
	case "stop":
		return dialect.StopEndTurn
	case "tool_calls":
		return dialect.StopToolUse
	case "length":
		return dialect.StopMaxTokens
	case "content_filter":
		return dialect.StopEndTurn
	case "":
		return dialect.StopEndTurn
	default:
		return dialect.StopReason(reason)
	}
}
