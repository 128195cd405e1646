package responses

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/toolname"
)

// ToAnthropic converts an OpenAI Responses response into the Anthropic
// dialect (§4.2.4).
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
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	if out.ID == "" {
		out.ID = "msg_" + uuid.NewString()
	}

	sawFunctionCall := false
	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, c := range item.Content {
				if c.Type == "output_text" {
					out.Content = append(out.Content, dialect.ContentBlock{Type: dialect.BlockText, Text: c.Text})
				}
			}
		case "function_call":
			sawFunctionCall = true
			var input json.RawMessage
			if item.Arguments != "" {
				var parsed any
				if err := json.Unmarshal([]byte(item.Arguments), &parsed); err == nil {
					input = json.RawMessage(item.Arguments)
				} else {
					input = json.RawMessage("{}")
				}
			} else {
				input = json.RawMessage("{}")
			}
			out.Content = append(out.Content, dialect.ContentBlock{
				Type:  dialect.BlockToolUse,
				ID:    item.CallID,
				Name:  names.Restore(item.Name),
				Input: input,
			})
		}
	}

	out.StopReason = mapStopReason(sawFunctionCall, resp.Status)
	return out, nil
}

// mapStopReason implements the §4.2.4 stop_reason derivation.
func mapStopReason(sawFunctionCall bool, status string) dialect.StopReason {
	if sawFunctionCall {
		return dialect.StopToolUse
	}
	switch status {
	case "completed":
		return dialect.StopEndTurn
	case "incomplete":
		return dialect.StopMaxTokens
	default:
		return dialect.StopEndTurn
	}
}
