package mock

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedder_Deterministic(t *testing.T) {
	e := NewEmbedder(16)
	texts := []string{"the quick brown fox", "lorem ipsum", ""}

	a, err := e.EmbedBatch(context.Background(), "m", texts)
	require.NoError(t, err)
	b, err := e.EmbedBatch(context.Background(), "m", texts)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	require.Len(t, a, 3)
	for _, v := range a {
		assert.Len(t, v, 16)
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	}
	assert.NotEqual(t, a[0], a[1])
}

func TestEmbedder_ModelChangesVectors(t *testing.T) {
	e := NewEmbedder(64)
	a, _ := e.EmbedBatch(context.Background(), "model-a", []string{"same text here"})
	b, _ := e.EmbedBatch(context.Background(), "model-b", []string{"same text here"})
	assert.NotEqual(t, a, b)
}

func TestEmbedder_DefaultDimension(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
}

func TestEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).EmbedBatch(ctx, "m", []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}
