package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureOutsideSegmentPassesThrough(t *testing.T) {
	tracer := NewTracer("atlas-graph")

	ran := false
	err := tracer.Capture(context.Background(), "reasoning.explain", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	boom := errors.New("remote call failed")
	err = tracer.Capture(context.Background(), "embedding.embed", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// No segment in the context: annotations are dropped, not panics.
	tracer.AddAnnotation(context.Background(), "nodeId", "n-1")
}
