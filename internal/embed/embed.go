// Package embed computes and ranks vector embeddings for indexed
// chunks. The client is the minimal slice of the OpenAI API the stage
// needs, so tests and OpenAI-compatible local backends can stand in
// for the real service.
package embed

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mkovacs/asnkit/internal/httputil"
	"github.com/mkovacs/asnkit/pkg/types"
)

const defaultBatchSize = 64

// Client is the minimal interface needed to embed text. It mirrors the
// CreateEmbeddings method of the OpenAI client so any compatible
// backend can be adapted.
type Client interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIProvider adapts *openai.Client to the Client interface.
type OpenAIProvider struct {
	Inner *openai.Client
}

func (p *OpenAIProvider) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return p.Inner.CreateEmbeddings(ctx, conv)
}

// NewClient builds an embeddings client from config. The HTTP client
// retries rate-limited requests with exponential backoff.
func NewClient(cfg types.EmbedConfig) Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{
		Transport: &httputil.RetryTransport{MaxRetries: cfg.MaxRetries},
	}
	return &OpenAIProvider{Inner: openai.NewClientWithConfig(apiCfg)}
}

// EmbedTexts returns one vector per input text, in input order. Texts
// are sent in batches of batchSize (default 64) to stay under request
// size limits.
func EmbedTexts(ctx context.Context, c Client, model string, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := c.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(model),
		})
		if err != nil {
			return nil, fmt.Errorf("embedding batch starting at %d: %w", start, err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding batch starting at %d: got %d vectors for %d inputs", start, len(resp.Data), end-start)
		}

		// Response order is not guaranteed; place by index.
		batch := make([][]float32, end-start)
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("embedding batch starting at %d: index %d out of range", start, d.Index)
			}
			batch[d.Index] = d.Embedding
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// Candidate is an embedded item to rank against a query vector.
type Candidate struct {
	ID     string
	Vector []float32
}

// Scored is a candidate with its cosine similarity to the query.
type Scored struct {
	ID    string
	Score float64
}

// Rank orders candidates by cosine similarity to the query vector,
// highest first. Candidates with a zero-magnitude or mismatched-length
// vector score zero rather than erroring; a corrupt stored vector
// should not sink the whole query.
func Rank(query []float32, candidates []Candidate) []Scored {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{ID: c.ID, Score: Cosine(query, c.Vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// Cosine returns the cosine similarity of a and b, or 0 when either
// vector is empty, zero-magnitude, or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
