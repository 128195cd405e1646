package sse

import (
	"encoding/json"
	"io"

	"github.com/google/uuid"

	"github.com/claudex-proxy/claudex/internal/dialect"
)

// Emitter owns the output side of the streaming state machine shared by
// both upstream dialects (§4.2.5 steps 1-4): it tracks the single open
// content block and emits Anthropic-dialect SSE frames to w.
type Emitter struct {
	w          io.Writer
	messageID  string
	model      string
	blockIndex int
	blockOpen  bool
	blockType  string // "text" or "tool_use"
	writeErr   error
}

// NewEmitter starts tracking a new outbound stream and immediately emits
// message_start (§4.2.5 step 1).
func NewEmitter(w io.Writer, model string) *Emitter {
	e := &Emitter{w: w, messageID: "msg_" + uuid.NewString(), model: model, blockIndex: -1}
	e.write("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":      e.messageID,
			"type":    "message",
			"role":    "assistant",
			"model":   e.model,
			"content": []any{},
			"usage":   map[string]any{"input_tokens": 0, "output_tokens": 0},
		},
	})
	return e
}

func (e *Emitter) write(name string, payload any) {
	if e.writeErr != nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.writeErr = err
		return
	}
	_, err = e.w.Write(Frame(name, data))
	if err != nil {
		e.writeErr = err
	}
}

// Err returns the first write error encountered, if any.
func (e *Emitter) Err() error { return e.writeErr }

// OpenText opens a new text content block if one isn't already open for
// this index (§4.2.5 step 2). No-op if a text block is already open.
func (e *Emitter) OpenText() {
	if e.blockOpen && e.blockType == "text" {
		return
	}
	e.closeIfOpen()
	e.blockIndex++
	e.blockOpen = true
	e.blockType = "text"
	e.write("content_block_start", map[string]any{
		"type":          "content_block_start",
		"index":         e.blockIndex,
		"content_block": map[string]any{"type": "text", "text": ""},
	})
}

// DeltaText streams a text fragment, opening a text block first if needed.
func (e *Emitter) DeltaText(text string) {
	if text == "" {
		return
	}
	e.OpenText()
	e.write("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": e.blockIndex,
		"delta": map[string]any{"type": "text_delta", "text": text},
	})
}

// OpenToolUse closes any open block and opens a tool_use block (§4.2.5
// step 3) with the given id and name; callers pass the already-restored
// original tool name.
func (e *Emitter) OpenToolUse(id, name string) {
	e.closeIfOpen()
	e.blockIndex++
	e.blockOpen = true
	e.blockType = "tool_use"
	e.write("content_block_start", map[string]any{
		"type":  "content_block_start",
		"index": e.blockIndex,
		"content_block": map[string]any{
			"type":  "tool_use",
			"id":    id,
			"name":  name,
			"input": map[string]any{},
		},
	})
}

// DeltaToolInput streams a fragment of a tool call's JSON-string arguments.
func (e *Emitter) DeltaToolInput(partialJSON string) {
	if partialJSON == "" {
		return
	}
	e.write("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": e.blockIndex,
		"delta": map[string]any{"type": "input_json_delta", "partial_json": partialJSON},
	})
}

func (e *Emitter) closeIfOpen() {
	if !e.blockOpen {
		return
	}
	e.write("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": e.blockIndex,
	})
	e.blockOpen = false
}

// Stop closes any open block and emits message_delta + message_stop
// (§4.2.5 step 4), finalizing the stream.
func (e *Emitter) Stop(stopReason dialect.StopReason, outputTokens int) {
	e.closeIfOpen()
	e.write("message_delta", map[string]any{
		"type": "message_delta",
		"delta": map[string]any{
			"stop_reason":   stopReason,
			"stop_sequence": nil,
		},
		"usage": map[string]any{"output_tokens": outputTokens},
	})
	e.write("message_stop", map[string]any{"type": "message_stop"})
}
