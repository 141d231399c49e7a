package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	t.Parallel()

	keys := make([]int, 250)
	for i := range keys {
		keys[i] = i
	}

	chunks := Chunk(keys, MaxKeysPerQuery)
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 50)
	assert.Equal(t, 249, chunks[2][49])

	assert.Nil(t, Chunk([]string{}, 10))
	assert.Len(t, Chunk([]string{"a", "b"}, 0), 1)
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("insert call: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "42P01"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
