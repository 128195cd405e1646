// Package dialect defines the Anthropic Messages wire types that form
// claudex's canonical in-process representation (§3 "Request in flight").
// Every translator converts into and out of these types; the context
// middleware operates on them directly.
package dialect

import "encoding/json"

// Role is a message role in the Anthropic dialect.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockType tags a content block's shape.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ImageSource carries inline base64 image data (§4.2.1).
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ContentBlock is one block of a message's array-form content. Only the
// fields relevant to BlockType are populated; this mirrors a sum type via a
// tag field, per the spec's Design Notes preference for tagged variants.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockImage
	Source *ImageSource `json:"source,omitempty"`

	// BlockToolUse
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// BlockToolResult
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// FlattenText joins the plain-text content of a tool_result block, used
// when flattening to a single text part (§4.2.1).
func (b ContentBlock) FlattenText() string {
	if len(b.Content) == 0 {
		return ""
	}
	// tool_result content may be a bare string or an array of text blocks.
	var asString string
	if err := json.Unmarshal(b.Content, &asString); err == nil {
		return asString
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(b.Content, &blocks); err == nil {
		out := ""
		for _, blk := range blocks {
			out += blk.Text
		}
		return out
	}
	return string(b.Content)
}

// MessageContent is either a bare string or an ordered list of content
// blocks, matching Anthropic's polymorphic `content` field.
type MessageContent struct {
	Text   string
	Blocks []ContentBlock
	IsText bool
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.IsText = true
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	c.Blocks = blocks
	c.IsText = false
	return nil
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsText {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Blocks)
}

// TextOnly collapses content to its plain text, joining block text parts
// with newlines (used for classifier input and logging).
func (c MessageContent) TextOnly() string {
	if c.IsText {
		return c.Text
	}
	out := ""
	for i, b := range c.Blocks {
		if b.Type != BlockText {
			continue
		}
		if i > 0 && out != "" {
			out += "\n"
		}
		out += b.Text
	}
	return out
}

// Message is one entry in Request.Messages. ToolUseID carries the
// originating tool_use id for a standalone role:"tool" message (§4.2.1);
// it is absent from every other role.
type Message struct {
	Role      Role           `json:"role"`
	Content   MessageContent `json:"content"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
}

// SystemPrompt is either a bare string or an array of {type:text,text}
// blocks (§3 Request.system).
type SystemPrompt struct {
	Text    string
	Blocks  []ContentBlock
	IsText  bool
	IsEmpty bool
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Text = str
		s.IsText = true
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	s.Blocks = blocks
	return nil
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if s.IsText {
		return json.Marshal(s.Text)
	}
	return json.Marshal(s.Blocks)
}

// Joined collapses the system prompt to a single string, joining array
// blocks' text with "\n".
func (s SystemPrompt) Joined() string {
	if s.IsText {
		return s.Text
	}
	out := ""
	for i, b := range s.Blocks {
		if i > 0 {
			out += "\n"
		}
		out += b.Text
	}
	return out
}

// AppendContext implements the "system-injection semantics" of §4.9: append
// the context string to an existing system prompt, or set it if absent.
func AppendContext(s *SystemPrompt, context string) {
	if context == "" {
		return
	}
	if s.IsText || len(s.Blocks) > 0 {
		joined := s.Joined()
		s.Text = joined + "\n\n" + context
		s.IsText = true
		s.Blocks = nil
		return
	}
	s.Text = context
	s.IsText = true
	s.IsEmpty = false
}

// Tool is a tool definition (§3 Request.tools).
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ToolChoice is the polymorphic tool_choice field: a bare string
// ("auto"|"any"|"none") or an object naming a specific tool.
type ToolChoice struct {
	Mode string // "auto", "any", "none", "tool"
	Name string // populated when Mode == "tool"
}

func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Mode = s
		return nil
	}
	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.Mode = "tool"
	t.Name = obj.Name
	return nil
}

func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.Mode != "tool" {
		return json.Marshal(t.Mode)
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}{Type: "tool", Name: t.Name})
}

// Request is the parsed Anthropic-dialect request body (§3).
type Request struct {
	Model       string        `json:"model,omitempty"`
	Messages    []Message     `json:"messages"`
	System      *SystemPrompt `json:"system,omitempty"`
	Tools       []Tool        `json:"tools,omitempty"`
	ToolChoice  *ToolChoice   `json:"tool_choice,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// IsStream reports whether the request asked for a streaming response.
func (r *Request) IsStream() bool { return r != nil && r.Stream }

// StopReason enumerates Anthropic response stop reasons (§3).
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopSequence     StopReason = "stop_sequence"
)

// Usage is the Anthropic-dialect token usage block.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the Anthropic-dialect response body.
type Response struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       Role           `json:"role"`
	Model      string         `json:"model,omitempty"`
	Content    []ContentBlock `json:"content"`
	StopReason StopReason     `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}
