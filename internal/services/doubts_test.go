package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoubts(t *testing.T) {
	ctx := context.Background()
	doubts := NewDoubtService(newTestDB(t))

	first, err := doubts.Create(ctx, "What is 2x = 4?", "x = 2", "", true)
	require.NoError(t, err)
	assert.Equal(t, "general", first.Subject)

	_, err = doubts.Create(ctx, "Define osmosis", "Diffusion of water", "biology", false)
	require.NoError(t, err)

	list, err := doubts.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "biology", list[0].Subject)
	assert.True(t, list[1].HasImage)
}
