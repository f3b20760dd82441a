// Package providers implements the optional enrichment collaborators:
// the reasoning service that narrates paths and the embedding service
// that vectorizes node content. Both are JSON-over-HTTP clients wrapped
// in circuit breakers; the engine treats either being down as a degraded
// response, never a failed request.
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
	"atlas-graph/domain/core/entities"
	pkgerrors "atlas-graph/pkg/errors"
	"atlas-graph/pkg/observability"
)

// capture traces a remote call when a tracer is configured.
func capture(ctx context.Context, tracer *observability.Tracer, name string, fn func(context.Context) error) error {
	if tracer == nil {
		return fn(ctx)
	}
	return tracer.Capture(ctx, name, fn)
}

// newBreaker builds the circuit breaker shared by both providers: trip
// after 3 consecutive failures or a 60% failure ratio, probe again after
// the timeout.
func newBreaker(name string, timeout time.Duration, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Provider circuit state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// ReasoningClient calls the path narration service.
type ReasoningClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	tracer     *observability.Tracer
	logger     *zap.Logger
}

var _ ports.ReasoningProvider = (*ReasoningClient)(nil)

// NewReasoningClient creates a reasoning client. The timeout bounds each
// narration call end to end; the tracer may be nil.
func NewReasoningClient(baseURL, apiKey string, timeout time.Duration, tracer *observability.Tracer, logger *zap.Logger) *ReasoningClient {
	return &ReasoningClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newBreaker("reasoning", 30*time.Second, logger),
		tracer:     tracer,
		logger:     logger,
	}
}

type pathNodePayload struct {
	ID       string `json:"id"`
	NodeType string `json:"nodeType"`
	Label    string `json:"label"`
}

type pathEdgePayload struct {
	ID           string  `json:"id"`
	SourceNodeID string  `json:"sourceNodeId"`
	TargetNodeID string  `json:"targetNodeId"`
	EdgeType     string  `json:"edgeType"`
	Weight       float64 `json:"weight"`
}

type explainRequest struct {
	Nodes []pathNodePayload `json:"nodes"`
	Edges []pathEdgePayload `json:"edges"`
}

type explainResponse struct {
	Explanation string   `json:"explanation"`
	Reasoning   []string `json:"reasoning"`
	Confidence  float64  `json:"confidence"`
}

// Explain sends the ordered path to the reasoning service and returns
// its narration.
func (c *ReasoningClient) Explain(ctx context.Context, nodes []*entities.Node, edges []*entities.Edge) (*ports.PathExplanation, error) {
	payload := explainRequest{
		Nodes: make([]pathNodePayload, 0, len(nodes)),
		Edges: make([]pathEdgePayload, 0, len(edges)),
	}
	for _, node := range nodes {
		payload.Nodes = append(payload.Nodes, pathNodePayload{
			ID:       node.ID().String(),
			NodeType: node.Type().String(),
			Label:    node.Label().String(),
		})
	}
	for _, edge := range edges {
		payload.Edges = append(payload.Edges, pathEdgePayload{
			ID:           edge.ID().String(),
			SourceNodeID: edge.SourceID().String(),
			TargetNodeID: edge.TargetID().String(),
			EdgeType:     edge.Type().String(),
			Weight:       edge.Weight().Value(),
		})
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var resp explainResponse
		err := capture(ctx, c.tracer, "reasoning.explain", func(ctx context.Context) error {
			return c.post(ctx, "/v1/explain", payload, &resp)
		})
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, pkgerrors.ProviderUnavailable("reasoning", err)
	}

	resp := result.(*explainResponse)
	confidence := resp.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return &ports.PathExplanation{
		Explanation: resp.Explanation,
		Reasoning:   resp.Reasoning,
		Confidence:  confidence,
	}, nil
}

// IsAvailable reports whether the circuit is accepting calls.
func (c *ReasoningClient) IsAvailable(ctx context.Context) bool {
	return c.breaker.State() != gobreaker.StateOpen
}

func (c *ReasoningClient) post(ctx context.Context, path string, in, out interface{}) error {
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
		return fmt.Errorf("reasoning service returned %d: %s", resp.StatusCode, string(raw))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
