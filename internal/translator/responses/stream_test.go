package responses

import (
	"bytes"
	"strings"
	"testing"

	"github.com/claudex-proxy/claudex/internal/toolname"
)

// TestStreamTranslateFunctionCallRoundtrip reproduces spec §8 scenario 3:
// upstream emits an added function_call item, streamed arguments, a done
// marker, then completes; the proxy must emit the exact envelope sequence.
func TestStreamTranslateFunctionCallRoundtrip(t *testing.T) {
	upstream := strings.NewReader(
		"event: response.output_item.added\n" +
			"data: {\"item\":{\"type\":\"function_call\",\"call_id\":\"c1\",\"name\":\"get_weather\"}}\n\n" +
			"event: response.function_call_arguments.delta\n" +
			"data: {\"delta\":\"{\\\"loc\\\"\"}\n\n" +
			"event: response.function_call_arguments.done\n" +
			"data: {}\n\n" +
			"event: response.completed\n" +
			"data: {\"usage\":{\"output_tokens\":5}}\n\n",
	)
	var out bytes.Buffer
	if err := StreamTranslate(upstream, &out, "o", toolname.NewMap()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := out.String()

	order := []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}
	prev := -1
	for _, want := range order {
		idx := strings.Index(s, want)
		if idx == -1 {
			t.Fatalf("expected output to contain %q, got:\n%s", want, s)
		}
		if idx <= prev {
			t.Fatalf("event %q out of order, got:\n%s", want, s)
		}
		prev = idx
	}
	if !strings.Contains(s, "tool_use") {
		t.Errorf("expected tool_use block, got:\n%s", s)
	}
	if !strings.Contains(s, "input_json_delta") {
		t.Errorf("expected input_json_delta, got:\n%s", s)
	}
	if !strings.Contains(s, `"stop_reason":"tool_use"`) {
		t.Errorf("expected tool_use stop reason, got:\n%s", s)
	}
	if !strings.Contains(s, `"output_tokens":5`) {
		t.Errorf("expected output_tokens 5, got:\n%s", s)
	}
}

func TestStreamTranslateTextOnly(t *testing.T) {
	upstream := strings.NewReader(
		"event: response.output_text.delta\n" +
			"data: {\"delta\":\"Hello\"}\n\n" +
			"event: response.completed\n" +
			"data: {\"usage\":{\"output_tokens\":3}}\n\n",
	)
	var out bytes.Buffer
	if err := StreamTranslate(upstream, &out, "o", toolname.NewMap()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := out.String()
	if !strings.Contains(s, "text_delta") {
		t.Errorf("expected text_delta, got:\n%s", s)
	}
	if !strings.Contains(s, `"stop_reason":"end_turn"`) {
		t.Errorf("expected end_turn stop reason, got:\n%s", s)
	}
}
