package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
)

type fakeEmbedding struct {
	available bool
	vector    []float32
	err       error
}

func (f *fakeEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (f *fakeEmbedding) IsAvailable(ctx context.Context) bool {
	return f.available
}

func (f *graphFixture) addEmbeddedNode(t *testing.T, label string, vector []float32) *entities.Node {
	t.Helper()

	node := f.addNode(t, valueobjects.NodeTypeTopic, label)
	require.NoError(t, node.AttachEmbedding(vector))
	require.NoError(t, f.nodes.Update(context.Background(), node))
	return node
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	f := newGraphFixture()
	aligned := f.addEmbeddedNode(t, "aligned", []float32{1, 0, 0})
	near := f.addEmbeddedNode(t, "near", []float32{0.9, 0.1, 0})
	orthogonal := f.addEmbeddedNode(t, "orthogonal", []float32{0, 1, 0})
	f.addNode(t, valueobjects.NodeTypeTopic, "no-embedding")

	svc := NewSearchService(f.nodes, nil, config.DefaultDomainConfig(), zap.NewNop())

	threshold := 0.5
	results, err := svc.Search(context.Background(), SearchRequest{
		Embedding: []float32{1, 0, 0},
		Threshold: &threshold,
	})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, aligned.ID().String(), results[0].Node.ID().String())
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Equal(t, near.ID().String(), results[1].Node.ID().String())
	assert.Greater(t, results[0].Similarity, results[1].Similarity)

	for _, r := range results {
		assert.NotEqual(t, orthogonal.ID().String(), r.Node.ID().String())
	}
}

func TestSearchHonorsLimitAndNodeTypeFilter(t *testing.T) {
	f := newGraphFixture()
	f.addEmbeddedNode(t, "one", []float32{1, 0})
	f.addEmbeddedNode(t, "two", []float32{1, 0.1})
	f.addEmbeddedNode(t, "three", []float32{1, 0.2})

	svc := NewSearchService(f.nodes, nil, config.DefaultDomainConfig(), zap.NewNop())

	threshold := 0.1
	results, err := svc.Search(context.Background(), SearchRequest{
		Embedding: []float32{1, 0},
		Threshold: &threshold,
		Limit:     2,
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = svc.Search(context.Background(), SearchRequest{
		Embedding: []float32{1, 0},
		Threshold: &threshold,
		NodeTypes: []valueobjects.NodeType{valueobjects.NodeTypeJournalist},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchEmbedsTextQuery(t *testing.T) {
	f := newGraphFixture()
	match := f.addEmbeddedNode(t, "match", []float32{1, 0})

	provider := &fakeEmbedding{available: true, vector: []float32{1, 0}}
	svc := NewSearchService(f.nodes, provider, config.DefaultDomainConfig(), zap.NewNop())

	results, err := svc.Search(context.Background(), SearchRequest{Query: "something topical"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, match.ID().String(), results[0].Node.ID().String())
}

func TestSearchDegradesWhenEmbeddingUnavailable(t *testing.T) {
	f := newGraphFixture()
	f.addEmbeddedNode(t, "match", []float32{1, 0})

	// No provider at all.
	svc := NewSearchService(f.nodes, nil, config.DefaultDomainConfig(), zap.NewNop())
	results, err := svc.Search(context.Background(), SearchRequest{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, results)

	// Provider reports itself down.
	svc = NewSearchService(f.nodes, &fakeEmbedding{available: false}, config.DefaultDomainConfig(), zap.NewNop())
	results, err = svc.Search(context.Background(), SearchRequest{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, results)

	// Provider errors on the call.
	svc = NewSearchService(f.nodes, &fakeEmbedding{available: true, err: errors.New("quota exceeded")}, config.DefaultDomainConfig(), zap.NewNop())
	results, err = svc.Search(context.Background(), SearchRequest{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchValidation(t *testing.T) {
	f := newGraphFixture()
	svc := NewSearchService(f.nodes, nil, config.DefaultDomainConfig(), zap.NewNop())

	_, err := svc.Search(context.Background(), SearchRequest{})
	require.Error(t, err)

	bad := 1.5
	_, err = svc.Search(context.Background(), SearchRequest{
		Embedding: []float32{1},
		Threshold: &bad,
	})
	require.Error(t, err)
}
