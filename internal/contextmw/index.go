// Package contextmw implements the three optional ContextMiddleware passes
// (§4.9): RAG injection, cross-profile context sharing, and conversation
// compression, applied in order to the parsed Anthropic-dialect request
// body before it reaches an adapter.
package contextmw

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// allowedExtensions is the fixed allow-list of source extensions indexed
// for RAG (§4.9 pass 1).
var allowedExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".java": true, ".rb": true, ".rs": true, ".c": true, ".h": true, ".cpp": true,
	".hpp": true, ".cs": true, ".md": true, ".txt": true, ".json": true, ".yaml": true, ".yml": true,
}

var skippedDirs = map[string]bool{"node_modules": true, "target": true, "dist": true}

// Chunk is one line-windowed slice of an indexed file.
type Chunk struct {
	Path      string
	StartLine int
	Text      string
	Embedding []float32
	Norm      float32
}

// Index holds the in-memory chunk embeddings built once at startup for
// RAG injection (§4.9 pass 1).
type Index struct {
	chunks []Chunk
}

// BuildIndex walks dirs, skipping dot-dirs and node_modules/target/dist,
// splits allow-listed files into line windows, and embeds them in batches
// of 32 via embed.
func BuildIndex(dirs []string, chunkLines int, embed EmbedFunc) (*Index, error) {
	if chunkLines < 10 {
		chunkLines = 10
	}

	var pending []*Chunk
	idx := &Index{}

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		texts := make([]string, len(pending))
		for i, c := range pending {
			texts[i] = c.Text
		}
		vectors, err := embed(texts)
		if err != nil {
			return err
		}
		// On chunk/embedding length mismatch, truncate to the shorter
		// (§4.9 pass 1).
		n := len(pending)
		if len(vectors) < n {
			n = len(vectors)
		}
		for i := 0; i < n; i++ {
			pending[i].Embedding = vectors[i]
			pending[i].Norm = vectorNorm(vectors[i])
			idx.chunks = append(idx.chunks, *pending[i])
		}
		pending = pending[:0]
		return nil
	}

	for _, dir := range dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				name := info.Name()
				if strings.HasPrefix(name, ".") || skippedDirs[name] {
					return filepath.SkipDir
				}
				return nil
			}
			if !allowedExtensions[filepath.Ext(path)] {
				return nil
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			lines := strings.Split(string(raw), "\n")
			for start := 0; start < len(lines); start += chunkLines {
				end := start + chunkLines
				if end > len(lines) {
					end = len(lines)
				}
				text := strings.Join(lines[start:end], "\n")
				if strings.TrimSpace(text) == "" {
					continue
				}
				pending = append(pending, &Chunk{Path: path, StartLine: start + 1, Text: text})
				if len(pending) >= 32 {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return idx, nil
}

// EmbedFunc embeds a batch of texts, returning one vector per input in
// the same order.
type EmbedFunc func(texts []string) ([][]float32, error)

func vectorNorm(vec []float32) float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum <= 0 {
		return 0
	}
	return float32(math.Sqrt(sum))
}

func cosineSim(a []float32, aNorm float32, b []float32, bNorm float32) float32 {
	if aNorm <= 0 || bNorm <= 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot) / (aNorm * bNorm)
}

// scoredChunk pairs a chunk with its similarity score for top-k selection.
type scoredChunk struct {
	chunk Chunk
	score float32
}

// TopK returns the topK chunks most similar to queryVec with score above
// 0.3, highest first (§4.9 pass 1).
func (idx *Index) TopK(queryVec []float32, topK int) []Chunk {
	if idx == nil || len(idx.chunks) == 0 {
		return nil
	}
	queryNorm := vectorNorm(queryVec)

	scored := make([]scoredChunk, 0, len(idx.chunks))
	for _, c := range idx.chunks {
		score := cosineSim(queryVec, queryNorm, c.Embedding, c.Norm)
		if score > 0.3 {
			scored = append(scored, scoredChunk{chunk: c, score: score})
		}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	out := make([]Chunk, len(scored))
	for i, s := range scored {
		out[i] = s.chunk
	}
	return out
}
