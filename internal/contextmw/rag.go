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

// RAG applies §4.9 pass 1: embed the last user message, select the top-k
// similar indexed chunks, and append them to system as context.
type RAG struct {
	cfg        config.RAGConfig
	index      *Index
	httpClient *http.Client
}

// NewRAG wraps a pre-built index with the config needed to embed queries.
// A nil index disables the pass even if cfg.Enabled is true (no indexed
// directories, or the index failed to build at startup).
func NewRAG(cfg config.RAGConfig, index *Index) *RAG {
	return &RAG{cfg: cfg, index: index, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// Apply injects relevant code context into body.System, if enabled and an
// index exists and the request has a user message.
func (r *RAG) Apply(ctx context.Context, body *dialect.Request) {
	if r == nil || !r.cfg.Enabled || r.index == nil {
		return
	}
	query := lastUserText(body)
	if query == "" {
		return
	}

	vectors, err := r.embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		return
	}

	topK := r.cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	chunks := r.index.TopK(vectors[0], topK)
	if len(chunks) == 0 {
		return
	}

	formatted := formatChunks(chunks)
	injected := "[Relevant code context]\n" + formatted
	if body.System == nil {
		body.System = &dialect.SystemPrompt{}
	}
	dialect.AppendContext(body.System, injected)
}

func formatChunks(chunks []Chunk) string {
	out := ""
	for i, c := range chunks {
		if i > 0 {
			out += "\n\n"
		}
		out += fmt.Sprintf("// File: %s:%d\n%s", c.Path, c.StartLine, c.Text)
	}
	return out
}

func lastUserText(body *dialect.Request) string {
	for i := len(body.Messages) - 1; i >= 0; i-- {
		if body.Messages[i].Role == dialect.RoleUser {
			return body.Messages[i].Content.TextOnly()
		}
	}
	return ""
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// embed POSTs to <embedding_base_url>/embeddings, used both for query
// embedding and (via EmbedFunc) index construction.
func (r *RAG) embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedViaHTTP(ctx, r.httpClient, r.cfg.EmbeddingBaseURL, r.cfg.EmbeddingModel, r.cfg.EmbeddingAPIKey, texts)
}

// EmbedFunc returns an EmbedFunc bound to cfg, for use with BuildIndex.
func EmbedFunc(ctx context.Context, cfg config.RAGConfig) EmbedFunc {
	client := &http.Client{Timeout: 30 * time.Second}
	return func(texts []string) ([][]float32, error) {
		return embedViaHTTP(ctx, client, cfg.EmbeddingBaseURL, cfg.EmbeddingModel, cfg.EmbeddingAPIKey, texts)
	}
}

func embedViaHTTP(ctx context.Context, client *http.Client, baseURL, model, apiKey string, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(embeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("contextmw: embeddings request failed: %s", resp.Status)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
