package chatcompletions

import (
	"testing"

	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/toolname"
)

func TestToAnthropicTextRoundtrip(t *testing.T) {
	raw := []byte(`{"id":"c1","model":"gpt","choices":[{"message":{"role":"assistant","content":"Hello!"},"finish_reason":"stop"}],"usage":{"prompt_tokens":2,"completion_tokens":1}}`)
	out, err := ToAnthropic(raw, toolname.NewMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Content) != 1 || out.Content[0].Type != dialect.BlockText || out.Content[0].Text != "Hello!" {
		t.Fatalf("unexpected content: %+v", out.Content)
	}
	if out.StopReason != dialect.StopEndTurn {
		t.Errorf("stop_reason = %v, want end_turn", out.StopReason)
	}
	if out.Usage.InputTokens != 2 || out.Usage.OutputTokens != 1 {
		t.Errorf("usage = %+v", out.Usage)
	}
}

func TestToAnthropicToolCallRestoresTruncatedName(t *testing.T) {
	names := toolname.NewMap()
	original := "mcp__claude_in_chrome__validate_and_render_mermaid_diagram_extra_long"
	truncated := names.Put(original)

	raw := []byte(`{"id":"c1","choices":[{"message":{"role":"assistant","tool_calls":[{"id":"tc1","type":"function","function":{"name":"` + truncated + `","arguments":"{\"a\":1}"}}]},"finish_reason":"tool_calls"}]}`)
	out, err := ToAnthropic(raw, names)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.StopReason != dialect.StopToolUse {
		t.Errorf("stop_reason = %v, want tool_use", out.StopReason)
	}
	if len(out.Content) != 1 || out.Content[0].Name != original {
		t.Fatalf("expected restored name %q, got %+v", original, out.Content)
	}
}

func TestToAnthropicMalformedArgumentsFallsBackToEmptyObject(t *testing.T) {
	raw := []byte(`{"id":"c1","choices":[{"message":{"tool_calls":[{"id":"tc1","function":{"name":"x","arguments":"not json"}}]},"finish_reason":"tool_calls"}]}`)
	out, err := ToAnthropic(raw, toolname.NewMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out.Content[0].Input) != "{}" {
		t.Fatalf("expected fallback empty object, got %s", out.Content[0].Input)
	}
}

func TestMapFinishReasonMapping(t *testing.T) {
	tests := map[string]dialect.StopReason{
		"stop":           dialect.StopEndTurn,
		"tool_calls":     dialect.StopToolUse,
		"length":         dialect.StopMaxTokens,
		"content_filter": dialect.StopEndTurn,
	}
	for in, want := range tests {
		if got := mapFinishReason(in); got != want {
			t.Errorf("mapFinishReason(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestToAnthropicMissingIDGetsSynthesized(t *testing.T) {
	raw := []byte(`{"choices":[{"message":{"content":"hi"},"finish_reason":"stop"}]}`)
	out, err := ToAnthropic(raw, toolname.NewMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID == "" {
		t.Fatal("expected synthesized id when upstream omits it")
	}
}
