package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Limmita2/FaseWatch/internal/config"
	"github.com/Limmita2/FaseWatch/internal/vectorindex"
)

func TestOpenIndex_Memory(t *testing.T) {
	d := &Deps{Config: &config.Config{
		VectorIndex: config.VectorIndexConfig{Backend: "memory", Dimension: 8},
	}}

	require.NoError(t, d.openIndex(context.Background()))
	assert.IsType(t, &vectorindex.Memory{}, d.Index)
	assert.NotNil(t, d.Matcher())
}

func TestOpenIndex_Unsupported(t *testing.T) {
	d := &Deps{Config: &config.Config{
		VectorIndex: config.VectorIndexConfig{Backend: "qdrant", Dimension: 8},
	}}

	assert.ErrorContains(t, d.openIndex(context.Background()), "not supported")
	d.Close()
}
