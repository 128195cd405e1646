package contextmw

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/dialect"
)

func longMessages(n int) []dialect.Message {
	msgs := make([]dialect.Message, n)
	for i := range msgs {
		role := dialect.RoleUser
		if i%2 == 1 {
			role = dialect.RoleAssistant
		}
		msgs[i] = dialect.Message{Role: role, Content: dialect.MessageContent{IsText: true, Text: strings.Repeat("word ", 200)}}
	}
	return msgs
}

func TestCompressionApplyNoopBelowThreshold(t *testing.T) {
	c := NewCompression(config.CompressionConfig{Enabled: true, ThresholdTokens: 1000000, KeepRecent: 2})
	body := &dialect.Request{Messages: longMessages(4)}
	original := len(body.Messages)

	if err := c.Apply(context.Background(), body); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(body.Messages) != original {
		t.Errorf("expected no compression below threshold, messages changed from %d to %d", original, len(body.Messages))
	}
}

func TestCompressionApplySummarizesOldSegment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "summary of earlier turns"}},
			},
		})
	}))
	defer server.Close()

	c := NewCompression(config.CompressionConfig{
		Enabled:         true,
		ThresholdTokens: 10,
		KeepRecent:      2,
		SummarizerURL:   server.URL,
	})
	body := &dialect.Request{Messages: longMessages(8)}

	if err := c.Apply(context.Background(), body); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(body.Messages) != 3 {
		t.Fatalf("expected 1 summary message + 2 kept recent = 3, got %d", len(body.Messages))
	}
	if !strings.Contains(body.Messages[0].Content.Text, "[Previous conversation summary]") {
		t.Errorf("expected summary marker, got %q", body.Messages[0].Content.Text)
	}
	if !strings.Contains(body.Messages[0].Content.Text, "summary of earlier turns") {
		t.Error("expected summarizer output to be embedded")
	}
}

func TestCompressionApplyNoopWhenDisabled(t *testing.T) {
	c := NewCompression(config.CompressionConfig{Enabled: false})
	body := &dialect.Request{Messages: longMessages(8)}
	original := len(body.Messages)

	if err := c.Apply(context.Background(), body); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(body.Messages) != original {
		t.Error("expected no changes when compression disabled")
	}
}

func TestEstimateTokensSumsMessageJSONLengths(t *testing.T) {
	msgs := longMessages(2)
	got := estimateTokens(msgs)
	if got <= 0 {
		t.Error("expected positive token estimate")
	}
}
