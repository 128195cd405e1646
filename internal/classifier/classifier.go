// Package classifier implements the "auto" profile routing decision (§4.5):
// a one-word intent label drives a rules-table lookup to a profile name.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/dialect"
)

const systemPrompt = "Classify the user's request into exactly one word from this set: code, analysis, creative, search, math. Respond with only that word."

// Classifier resolves the "auto" profile alias to a concrete profile name.
type Classifier struct {
	cfg        config.ClassifierConfig
	profiles   *config.ProfileSet
	httpClient *http.Client
}

// New returns a Classifier bound to cfg and the loaded profile set.
func New(cfg config.ClassifierConfig, profiles *config.ProfileSet) *Classifier {
	return &Classifier{
		cfg:        cfg,
		profiles:   profiles,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// fallback returns the configured "default" rule, or the first enabled
// profile if that rule is absent or names an unknown profile.
func (c *Classifier) fallback() string {
	if name, ok := c.cfg.Rules["default"]; ok && c.profiles.Get(name) != nil {
		return name
	}
	if enabled := c.profiles.Enabled(); len(enabled) > 0 {
		return enabled[0].Name
	}
	return ""
}

// ClassifyIntent resolves body to a profile name (§4.5). Any transport or
// parse failure falls back without propagating an error, matching the
// "log and fall back" behavior described in the spec.
func (c *Classifier) ClassifyIntent(ctx context.Context, body *dialect.Request) string {
	if !c.cfg.Enabled {
		return c.fallback()
	}

	userText := lastUserMessageText(body)
	if userText == "" {
		return c.fallback()
	}

	label, err := c.classify(ctx, userText)
	if err != nil {
		logrus.WithError(err).Warn("classifier: falling back to default routing")
		return c.fallback()
	}

	if name, ok := c.cfg.Rules[label]; ok && c.profiles.Get(name) != nil {
		return name
	}
	return c.fallback()
}

func lastUserMessageText(body *dialect.Request) string {
	if body == nil {
		return ""
	}
	for i := len(body.Messages) - 1; i >= 0; i-- {
		if body.Messages[i].Role == dialect.RoleUser {
			return body.Messages[i].Content.TextOnly()
		}
	}
	return ""
}

type classifyRequest struct {
	Model       string    `json:"model"`
	Messages    []chatMsg `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Classifier) classify(ctx context.Context, userText string) (string, error) {
	reqBody := classifyRequest{
		Model: c.cfg.ClassifierModel,
		Messages: []chatMsg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
		MaxTokens:   10,
		Temperature: 0.0,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(c.cfg.ClassifierURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.ClassifierAPIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.ClassifierAPIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("classifier: upstream status %d", resp.StatusCode)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("classifier: empty choices")
	}

	return strings.ToLower(strings.TrimSpace(parsed.Choices[0].Message.Content)), nil
}
