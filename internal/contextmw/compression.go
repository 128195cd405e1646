package contextmw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/dialect"
)

const compressionSystemPrompt = "Summarize the following conversation segment concisely, preserving any decisions, code changes, and open questions. Respond with only the summary."

// Compression applies §4.9 pass 3: when estimated token usage exceeds a
// threshold, summarize every message except the keep_recent most recent
// ones and replace them with a single synthetic message.
type Compression struct {
	cfg        config.CompressionConfig
	httpClient *http.Client
}

// NewCompression builds a Compression pass from config.
func NewCompression(cfg config.CompressionConfig) *Compression {
	return &Compression{cfg: cfg, httpClient: &http.Client{Timeout: 60 * time.Second}}
}

// Apply estimates token usage as sum(len(msg_json))/4 and, if over
// threshold_tokens, summarizes messages[:len-keep_recent] via the
// configured summarizer endpoint, replacing them with a single
// "[Previous conversation summary]" user message (§4.9 pass 3).
func (c *Compression) Apply(ctx context.Context, body *dialect.Request) error {
	if c == nil || !c.cfg.Enabled {
		return nil
	}
	if estimateTokens(body.Messages) <= c.cfg.ThresholdTokens {
		return nil
	}

	keepRecent := c.cfg.KeepRecent
	splitAt := len(body.Messages) - keepRecent
	if splitAt <= 0 {
		return nil
	}

	old := body.Messages[:splitAt]
	recent := body.Messages[splitAt:]

	summary, err := c.summarize(ctx, old)
	if err != nil {
		return fmt.Errorf("contextmw: compression: summarize: %w", err)
	}

	summaryMessage := dialect.Message{
		Role:    dialect.RoleUser,
		Content: dialect.MessageContent{IsText: true, Text: "[Previous conversation summary]\n" + summary},
	}
	body.Messages = append([]dialect.Message{summaryMessage}, recent...)
	return nil
}

// estimateTokens sums len(msg_json)/4 across messages (§4.9 pass 3).
func estimateTokens(messages []dialect.Message) int {
	total := 0
	for _, m := range messages {
		raw, err := json.Marshal(m)
		if err != nil {
			continue
		}
		total += len(raw) / 4
	}
	return total
}

type summarizeRequest struct {
	Model    string    `json:"model"`
	Messages []chatMsg `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type summarizeResponse struct {
	Choices []struct {
		Message chatMsg `json:"message"`
	} `json:"choices"`
}

func (c *Compression) summarize(ctx context.Context, segment []dialect.Message) (string, error) {
	var transcript string
	for _, m := range segment {
		transcript += fmt.Sprintf("%s: %s\n", m.Role, m.Content.TextOnly())
	}

	reqBody, err := json.Marshal(summarizeRequest{
		Model: c.cfg.SummarizerModel,
		Messages: []chatMsg{
			{Role: "system", Content: compressionSystemPrompt},
			{Role: "user", Content: transcript},
		},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SummarizerURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.SummarizerKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.SummarizerKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarizer request failed: %s", resp.Status)
	}

	var parsed summarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("summarizer returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
