package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"atlas-graph/application/ports"
	pkgerrors "atlas-graph/pkg/errors"
	"atlas-graph/pkg/observability"
)

// EmbeddingClient calls the embedding service that turns node content
// into vectors for semantic search.
type EmbeddingClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	tracer     *observability.Tracer
	logger     *zap.Logger
}

var _ ports.EmbeddingProvider = (*EmbeddingClient)(nil)

// NewEmbeddingClient creates an embedding client. The timeout bounds
// each embed call end to end; the tracer may be nil.
func NewEmbeddingClient(baseURL, apiKey, model string, timeout time.Duration, tracer *observability.Tracer, logger *zap.Logger) *EmbeddingClient {
	return &EmbeddingClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newBreaker("embedding", 30*time.Second, logger),
		tracer:     tracer,
		logger:     logger,
	}
}

type embedRequest struct {
	Model  string   `json:"model,omitempty"`
	Inputs []string `json:"inputs"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed vectorizes one text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch vectorizes several texts in one call. The response must
// carry one vector per input, in order.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var resp embedResponse
		err := capture(ctx, c.tracer, "embedding.embed", func(ctx context.Context) error {
			return c.post(ctx, "/v1/embeddings", embedRequest{Model: c.model, Inputs: texts}, &resp)
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
		}
		return resp.Embeddings, nil
	})
	if err != nil {
		return nil, pkgerrors.ProviderUnavailable("embedding", err)
	}
	return result.([][]float32), nil
}

// IsAvailable reports whether the circuit is accepting calls.
func (c *EmbeddingClient) IsAvailable(ctx context.Context) bool {
	return c.breaker.State() != gobreaker.StateOpen
}

func (c *EmbeddingClient) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, string(raw))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
