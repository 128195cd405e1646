package responses

import (
	"io"

	"github.com/tidwall/gjson"

	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/toolname"
	"github.com/claudex-proxy/claudex/internal/translator/sse"
)

// StreamTranslate reads a Responses API SSE stream from upstream and writes
// the equivalent Anthropic SSE stream to w, restoring tool names via names
// (§4.2.5 Responses streaming machine, §8 scenario 3). It drives the shared
// sse.Emitter off the Responses-specific event-type switch:
// response.output_text.delta, response.output_item.added,
// response.function_call_arguments.delta/.done, response.completed/.failed.
func StreamTranslate(upstream io.Reader, w io.Writer, model string, names *toolname.Map) error {
	emitter := sse.NewEmitter(w, model)
	reader := sse.NewReader(upstream)

	stopReason := dialect.StopEndTurn
	outputTokens := 0
	sawFunctionCall := false

	for {
		evt, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if evt.Done {
			break
		}
		if !gjson.Valid(evt.Data) {
			continue
		}
		parsed := gjson.Parse(evt.Data)

		switch evt.Name {
		case "response.output_text.delta":
			if d := parsed.Get("delta"); d.Exists() {
				emitter.DeltaText(d.String())
			}
		case "response.output_item.added":
			item := parsed.Get("item")
			if item.Get("type").String() == "function_call" {
				sawFunctionCall = true
				emitter.OpenToolUse(item.Get("call_id").String(), names.Restore(item.Get("name").String()))
			}
		case "response.function_call_arguments.delta":
			if d := parsed.Get("delta"); d.Exists() {
				emitter.DeltaToolInput(d.String())
			}
		case "response.function_call_arguments.done":
			// Arguments are fully streamed via preceding delta events; no
			// additional emission needed.
		case "response.completed":
			if tok := parsed.Get("response.usage.output_tokens"); tok.Exists() {
				outputTokens = int(tok.Int())
			} else if tok := parsed.Get("usage.output_tokens"); tok.Exists() {
				outputTokens = int(tok.Int())
			}
			if sawFunctionCall {
				stopReason = dialect.StopToolUse
			} else {
				stopReason = dialect.StopEndTurn
			}
		case "response.failed", "response.incomplete":
			stopReason = dialect.StopMaxTokens
		}
	}

	emitter.Stop(stopReason, outputTokens)
	return emitter.Err()
}
