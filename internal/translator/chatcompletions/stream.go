package chatcompletions

import (
	"io"

	"github.com/tidwall/gjson"

	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/toolname"
	"github.com/claudex-proxy/claudex/internal/translator/sse"
)

// toolCallState tracks one in-progress tool_calls[] entry across deltas,
// keyed by its streaming index (§4.2.5 Chat-Completions transitions).
type toolCallState struct {
	id      string
	opened  bool
}

// StreamTranslate reads a Chat-Completions SSE stream from upstream and
// writes the equivalent Anthropic SSE stream to w, restoring tool names via
// names (§4.2.5). It returns once the upstream stream ends or a transport
// error occurs; malformed individual events are skipped, not fatal.
func StreamTranslate(upstream io.Reader, w io.Writer, model string, names *toolname.Map) error {
	emitter := sse.NewEmitter(w, model)
	reader := sse.NewReader(upstream)

	toolCalls := map[int]*toolCallState{}
	stopReason := dialect.StopEndTurn
	outputTokens := 0

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

		if usage := parsed.Get("usage.completion_tokens"); usage.Exists() {
			outputTokens = int(usage.Int())
		}

		choice := parsed.Get("choices.0")
		if !choice.Exists() {
			continue
		}

		if content := choice.Get("delta.content"); content.Exists() && content.String() != "" {
			emitter.DeltaText(content.String())
		}

		choice.Get("delta.tool_calls").ForEach(func(_, tc gjson.Result) bool {
			idx := int(tc.Get("index").Int())
			state, ok := toolCalls[idx]
			if !ok {
				state = &toolCallState{}
				toolCalls[idx] = state
			}
			if id := tc.Get("id").String(); id != "" {
				state.id = id
			}
			if name := tc.Get("function.name").String(); name != "" && !state.opened {
				emitter.OpenToolUse(state.id, names.Restore(name))
				state.opened = true
			}
			if args := tc.Get("function.arguments").String(); args != "" {
				emitter.DeltaToolInput(args)
			}
			return true
		})

		if fr := choice.Get("finish_reason"); fr.Exists() && fr.String() != "" {
			stopReason = mapFinishReason(fr.String())
		}
	}

	emitter.Stop(stopReason, outputTokens)
	return emitter.Err()
}
