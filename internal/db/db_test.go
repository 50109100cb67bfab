package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/example/post-scheduler/internal/internaltypes"
)

func TestWrapNotFound(t *testing.T) {
	assert.NoError(t, WrapNotFound(nil))
	assert.Equal(t, internaltypes.ErrNotFound, WrapNotFound(pgx.ErrNoRows))

	boom := errors.New("connection reset")
	err := WrapNotFound(boom)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, internaltypes.ErrNotFound)
}
