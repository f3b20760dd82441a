package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"atlas-graph/application/queries"
	"atlas-graph/infrastructure/config"
	"atlas-graph/infrastructure/di"
	"atlas-graph/infrastructure/messaging"
	"atlas-graph/infrastructure/persistence/memory"
	"atlas-graph/interfaces/http/rest"
	"atlas-graph/pkg/auth"
)

const (
	testSecret = "integration-test-secret"
	testIssuer = "atlas-graph-test"
)

// apiHarness runs the full HTTP API over in-memory persistence.
type apiHarness struct {
	t      *testing.T
	server *httptest.Server
	tokens map[string]string
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	cfg := &config.Config{Environment: "test"}
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.JWTIssuer = testIssuer
	logger := zap.NewNop()
	dcfg := cfg.DomainConfig()

	nodes := memory.NewNodeRepository()
	edges := memory.NewEdgeRepository()
	snapshots := memory.NewSnapshotRepository()
	audit := memory.NewAuditLogRepository()
	metricsRuns := memory.NewMetricsRepository()
	uow := memory.NewUnitOfWork(nodes, edges, snapshots, audit)
	eventBus := messaging.NewEventBus(nil, logger)
	cacheStore := di.NewInMemoryCache()

	services := di.ProvideServices(nodes, edges, snapshots, audit, metricsRuns, nil, nil, eventBus, cacheStore, nil, dcfg, logger)
	services.Snapshots.Start()
	t.Cleanup(services.Snapshots.Stop)

	commandBus, err := di.ProvideCommandBus(uow, nodes, edges, audit, nil, memory.NewLock(), eventBus, services, dcfg, logger)
	require.NoError(t, err)
	queryBus, err := di.ProvideQueryBus(nodes, edges, snapshots, audit, services, dcfg, logger)
	require.NoError(t, err)

	router := rest.NewRouter(commandBus, queryBus, cfg, nil, nil, logger)
	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)

	issuer, err := auth.NewJWTIssuer(auth.JWTConfig{Secret: testSecret, Issuer: testIssuer})
	require.NoError(t, err)
	tokens := make(map[string]string)
	for user, roles := range map[string][]string{
		"alice": {"admin"},
		"bob":   {"viewer"},
	} {
		token, err := issuer.IssueToken(user, user+"@example.com", roles)
		require.NoError(t, err)
		tokens[user] = token
	}

	return &apiHarness{t: t, server: server, tokens: tokens}
}

// do sends an authenticated request and returns the status plus the raw
// response body. A 204 response has an empty body.
func (h *apiHarness) do(t *testing.T, user, method, path string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+h.tokens[user])
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

// decodeData unwraps the success envelope and decodes its data field.
func decodeData(t *testing.T, raw []byte, out interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	require.True(t, env.Success, "expected a success envelope, got: %s", raw)
	require.NotNil(t, env.Data)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// errorCode extracts the machine-readable code from either error body
// shape the API produces: the middleware envelope wraps an error object,
// the application error handler writes a flat document.
func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var body struct {
		Error   json.RawMessage `json:"error"`
		Code    string          `json:"code"`
		Type    string          `json:"type"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	if body.Code != "" {
		return body.Code
	}
	if body.Type != "" {
		return body.Type
	}
	var info struct {
		Code string `json:"code"`
	}
	if len(body.Error) > 0 && json.Unmarshal(body.Error, &info) == nil {
		return info.Code
	}
	t.Fatalf("no error code in body: %s", raw)
	return ""
}

func (h *apiHarness) createNode(t *testing.T, nodeType, label string) queries.NodeView {
	t.Helper()
	status, raw := h.do(t, "alice", http.MethodPost, "/api/v1/nodes", map[string]interface{}{
		"nodeType": nodeType,
		"label":    label,
	})
	require.Equal(t, http.StatusCreated, status, "create node: %s", raw)
	var node queries.NodeView
	decodeData(t, raw, &node)
	require.NotEmpty(t, node.ID)
	return node
}

func (h *apiHarness) createEdge(t *testing.T, sourceID, targetID, edgeType string, weight float64) queries.EdgeView {
	t.Helper()
	status, raw := h.do(t, "alice", http.MethodPost, "/api/v1/edges", map[string]interface{}{
		"sourceNodeId": sourceID,
		"targetNodeId": targetID,
		"edgeType":     edgeType,
		"weight":       weight,
	})
	require.Equal(t, http.StatusCreated, status, "create edge: %s", raw)
	var edge queries.EdgeView
	decodeData(t, raw, &edge)
	require.NotEmpty(t, edge.ID)
	return edge
}

func (h *apiHarness) getNode(t *testing.T, id string) queries.NodeView {
	t.Helper()
	status, raw := h.do(t, "alice", http.MethodGet, "/api/v1/nodes/"+id, nil)
	require.Equal(t, http.StatusOK, status, "get node: %s", raw)
	var node queries.NodeView
	decodeData(t, raw, &node)
	return node
}

func TestAuthenticationRequired(t *testing.T) {
	h := newAPIHarness(t)

	status, raw := h.do(t, "", http.MethodGet, "/api/v1/nodes", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, raw))
}

func TestNodeLifecycleOverHTTP(t *testing.T) {
	h := newAPIHarness(t)

	created := h.createNode(t, "journalist", "Jane Reporter")
	assert.Equal(t, "journalist", created.NodeType)
	assert.Equal(t, "Jane Reporter", created.Label)
	assert.True(t, created.IsActive)
	assert.Equal(t, 1, created.Version)

	fetched := h.getNode(t, created.ID)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "Jane Reporter", fetched.Label)

	status, raw := h.do(t, "alice", http.MethodPut, "/api/v1/nodes/"+created.ID, map[string]interface{}{
		"label": "Jane Senior Reporter",
	})
	require.Equal(t, http.StatusOK, status, "update node: %s", raw)
	var updated queries.NodeView
	decodeData(t, raw, &updated)
	assert.Equal(t, "Jane Senior Reporter", updated.Label)
	assert.Equal(t, 2, updated.Version)

	status, _ = h.do(t, "alice", http.MethodDelete, "/api/v1/nodes/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, status)
	assert.False(t, h.getNode(t, created.ID).IsActive)

	status, _ = h.do(t, "alice", http.MethodPost, "/api/v1/nodes", map[string]interface{}{
		"nodeType": "unicorn",
		"label":    "Nope",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuthoredContentFlow(t *testing.T) {
	h := newAPIHarness(t)

	article := h.createNode(t, "content_piece", "X")
	author := h.createNode(t, "journalist", "Y")
	edge := h.createEdge(t, article.ID, author.ID, "authored_by", 1.5)

	t.Run("traverse one hop both directions", func(t *testing.T) {
		status, raw := h.do(t, "alice", http.MethodPost, "/api/v1/graph/traverse", map[string]interface{}{
			"startNodeId": article.ID,
			"direction":   "both",
			"maxDepth":    1,
		})
		require.Equal(t, http.StatusOK, status, "traverse: %s", raw)
		var result queries.TraverseResult
		decodeData(t, raw, &result)

		assert.Equal(t, article.ID, result.StartNode.ID)
		assert.Equal(t, 2, result.TotalNodesVisited)
		visited := make([]string, 0, len(result.VisitedNodes))
		for _, node := range result.VisitedNodes {
			visited = append(visited, node.ID)
		}
		assert.ElementsMatch(t, []string{article.ID, author.ID}, visited)
	})

	t.Run("shortest path uses the single edge", func(t *testing.T) {
		status, raw := h.do(t, "alice", http.MethodPost, "/api/v1/graph/path", map[string]interface{}{
			"startNodeId": article.ID,
			"endNodeId":   author.ID,
			"maxDepth":    6,
		})
		require.Equal(t, http.StatusOK, status, "find path: %s", raw)
		var result queries.FindPathResult
		decodeData(t, raw, &result)

		require.NotNil(t, result.Path)
		assert.Equal(t, 1, result.Path.Length)
		assert.InDelta(t, 1.5, result.Path.TotalWeight, 1e-9)
		require.Len(t, result.Path.Edges, 1)
		assert.Equal(t, edge.ID, result.Path.Edges[0].ID)
	})

	t.Run("deleted edge disappears", func(t *testing.T) {
		status, _ := h.do(t, "alice", http.MethodDelete, "/api/v1/edges/"+edge.ID, nil)
		require.Equal(t, http.StatusNoContent, status)

		status, raw := h.do(t, "alice", http.MethodGet, "/api/v1/edges/"+edge.ID, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "EDGE_NOT_FOUND", errorCode(t, raw))
	})
}

func TestNoPathBetweenDisconnectedNodes(t *testing.T) {
	h := newAPIHarness(t)

	a := h.createNode(t, "topic", "Island A")
	b := h.createNode(t, "topic", "Island B")

	status, raw := h.do(t, "alice", http.MethodPost, "/api/v1/graph/path", map[string]interface{}{
		"startNodeId": a.ID,
		"endNodeId":   b.ID,
		"maxDepth":    10,
	})
	require.Equal(t, http.StatusOK, status, "find path: %s", raw)
	var result queries.FindPathResult
	decodeData(t, raw, &result)
	assert.Nil(t, result.Path)
}

func TestMergeDuplicateJournalists(t *testing.T) {
	h := newAPIHarness(t)

	j1 := h.createNode(t, "journalist", "John Doe")
	j2 := h.createNode(t, "journalist", "J. Doe")
	outlet := h.createNode(t, "media_outlet", "The Gazette")
	h.createEdge(t, j1.ID, outlet.ID, "published_by", 1.0)

	mergeBody := map[string]interface{}{
		"sourceNodeIds": []string{j1.ID, j2.ID},
		"strategy":      "create_new",
		"newLabel":      "John Doe (Merged)",
		"preserveEdges": true,
	}

	t.Run("viewer role is rejected", func(t *testing.T) {
		status, _ := h.do(t, "bob", http.MethodPost, "/api/v1/graph/merge", mergeBody)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("admin merges into a new node", func(t *testing.T) {
		status, raw := h.do(t, "alice", http.MethodPost, "/api/v1/graph/merge", mergeBody)
		require.Equal(t, http.StatusOK, status, "merge: %s", raw)

		var result struct {
			MergedNode     queries.NodeView `json:"mergedNode"`
			MergedNodeIDs  []string         `json:"mergedNodeIds"`
			EdgesPreserved int              `json:"edgesPreserved"`
			EdgesRemoved   int              `json:"edgesRemoved"`
		}
		decodeData(t, raw, &result)

		assert.Equal(t, "John Doe (Merged)", result.MergedNode.Label)
		assert.True(t, result.MergedNode.IsActive)
		assert.NotEqual(t, j1.ID, result.MergedNode.ID)
		assert.NotEqual(t, j2.ID, result.MergedNode.ID)
		assert.ElementsMatch(t, []string{j1.ID, j2.ID}, result.MergedNodeIDs)
		assert.Equal(t, 1, result.EdgesPreserved)
		assert.Equal(t, 0, result.EdgesRemoved)

		assert.False(t, h.getNode(t, j1.ID).IsActive)
		assert.False(t, h.getNode(t, j2.ID).IsActive)

		status, raw = h.do(t, "alice", http.MethodGet,
			fmt.Sprintf("/api/v1/nodes/%s/connections", result.MergedNode.ID), nil)
		require.Equal(t, http.StatusOK, status, "connections: %s", raw)
	})
}

func TestSnapshotCaptureOverHTTP(t *testing.T) {
	h := newAPIHarness(t)

	a := h.createNode(t, "topic", "Alpha")
	b := h.createNode(t, "topic", "Beta")
	h.createEdge(t, a.ID, b.ID, "related_to", 1.0)

	status, raw := h.do(t, "alice", http.MethodPost, "/api/v1/snapshots", map[string]interface{}{
		"name":         "baseline",
		"snapshotType": "full",
	})
	require.Equal(t, http.StatusCreated, status, "create snapshot: %s", raw)
	var created queries.SnapshotView
	decodeData(t, raw, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "baseline", created.Name)

	var final queries.SnapshotView
	require.Eventually(t, func() bool {
		status, raw := h.do(t, "alice", http.MethodGet, "/api/v1/snapshots/"+created.ID, nil)
		if status != http.StatusOK {
			return false
		}
		decodeData(t, raw, &final)
		return final.Status == "complete" || final.Status == "failed"
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "complete", final.Status)
	assert.Equal(t, 2, final.NodeCount)
	assert.Equal(t, 1, final.EdgeCount)
	assert.NotEmpty(t, final.Checksum)
}

func TestAuditTrailOverHTTP(t *testing.T) {
	h := newAPIHarness(t)

	node := h.createNode(t, "topic", "Audited")
	status, _ := h.do(t, "alice", http.MethodDelete, "/api/v1/nodes/"+node.ID, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, raw := h.do(t, "alice", http.MethodGet, "/api/v1/audit?entityId="+node.ID, nil)
	require.Equal(t, http.StatusOK, status, "audit: %s", raw)

	var result struct {
		Logs []struct {
			EventType string `json:"eventType"`
			EntityID  string `json:"entityId"`
			Actor     string `json:"actorContext"`
		} `json:"logs"`
		Total int `json:"total"`
	}
	decodeData(t, raw, &result)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Logs, 2)
	for _, entry := range result.Logs {
		assert.Equal(t, node.ID, entry.EntityID)
		assert.Equal(t, "alice", entry.Actor)
	}
}
