// Package responses translates between the Anthropic dialect and the
// OpenAI Responses API's flat input[]/output[] item model (§4.2.3, §4.2.4).
package responses

import "encoding/json"

// InputItem is one entry of the request-side input[] array. Only the
// fields relevant to Type are populated.
type InputItem struct {
	Type   string        `json:"type"`
	Role   string        `json:"role,omitempty"`
	Status string        `json:"status,omitempty"`
	Content []InputContent `json:"content,omitempty"`

	// function_call
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// function_call_output
	Output string `json:"output,omitempty"`
}

// InputContent is one entry of a message item's content array.
type InputContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ToolFunction describes one tools[] entry.
type ToolFunction struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Request is the Responses API request body (§4.2.3).
type Request struct {
	Model        string         `json:"model,omitempty"`
	Input        []InputItem    `json:"input"`
	Instructions string         `json:"instructions,omitempty"`
	Tools        []ToolFunction `json:"tools,omitempty"`
	ToolChoice   any            `json:"tool_choice,omitempty"`
	Temperature  *float64       `json:"temperature,omitempty"`
	TopP         *float64       `json:"top_p,omitempty"`
	Stream       bool           `json:"stream,omitempty"`
	Store        bool           `json:"store"`
}

// OutputContent is one entry of an output message item's content array.
type OutputContent struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Annotations []any  `json:"annotations,omitempty"`
}

// OutputItem is one entry of the response-side output[] array.
type OutputItem struct {
	Type    string          `json:"type"`
	Status  string          `json:"status,omitempty"`
	Content []OutputContent `json:"content,omitempty"`

	// function_call
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Usage is the Responses API usage block.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the Responses API response body (§4.2.4).
type Response struct {
	ID     string       `json:"id"`
	Model  string       `json:"model"`
	Status string       `json:"status"`
	Output []OutputItem `json:"output"`
	Usage  Usage        `json:"usage"`
}
