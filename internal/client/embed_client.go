package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/reelty/clipper-api/internal/config"
)

// ClipScorer rates candidate texts against a query prompt. Scores are cosine
// similarities in [-1, 1]; the semantic filter applies its threshold on top.
type ClipScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// EmbedClient implements ClipScorer against an OpenAI-compatible embeddings
// endpoint.
type EmbedClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewEmbedClient(cfg *config.EmbeddingConfig) *EmbedClient {
	return &EmbedClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Score embeds the query and every text in one request and returns the cosine
// similarity of each text to the query, in input order.
func (c *EmbedClient) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	input := append([]string{query}, texts...)
	vectors, err := c.embed(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(input) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(vectors), len(input))
	}

	queryVec := vectors[0]
	scores := make([]float64, len(texts))
	for i, vec := range vectors[1:] {
		scores[i] = cosineSimilarity(queryVec, vec)
	}
	return scores, nil
}

func (c *EmbedClient) embed(ctx context.Context, input []string) ([][]float64, error) {
	bodyBytes, err := json.Marshal(embeddingRequest{Model: c.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log.Printf("[Embedding API] → POST %s (%d inputs)", req.URL.String(), len(input))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	vectors := make([][]float64, len(parsed.Data))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// IsConfigured returns true if an embedding endpoint is set
func (c *EmbedClient) IsConfigured() bool {
	return c.baseURL != ""
}
