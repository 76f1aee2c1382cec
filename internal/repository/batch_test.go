package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}

	chunks := Chunk(items, BatchSize)
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 450)
	assert.Len(t, chunks[1], 450)
	assert.Len(t, chunks[2], 100)
	assert.Equal(t, 450, chunks[1][0])
	assert.Equal(t, 999, chunks[2][99])
}

func TestChunkEdgeCases(t *testing.T) {
	assert.Empty(t, Chunk([]string{}, 10))
	assert.Len(t, Chunk([]string{"a", "b"}, 0), 1)
	assert.Equal(t, [][]string{{"a", "b"}}, Chunk([]string{"a", "b"}, 2))
}
