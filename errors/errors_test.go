package errors_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/search-clone/errors"
)

type kindError struct {
	kind string
}

func (e *kindError) Error() string { return e.kind }

func TestWrap(t *testing.T) {
	t.Parallel()

	assert.NoError(t, errors.Wrap(nil, "ignored"))
	assert.Equal(t, io.EOF, errors.Wrap(io.EOF, ""))

	err := errors.Wrap(errors.Wrapf(io.EOF, "batch %d", 3), "clone data")
	require.Error(t, err)
	assert.Equal(t, "clone data: batch 3: EOF", err.Error())
	assert.ErrorIs(t, err, io.EOF)
}

func TestAsType(t *testing.T) {
	t.Parallel()

	err := errors.Wrap(&kindError{kind: "schema"}, "clone schema")

	got, ok := errors.AsType[*kindError](err)
	require.True(t, ok)
	assert.Equal(t, "schema", got.kind)

	_, ok = errors.AsType[*kindError](io.EOF)
	assert.False(t, ok)
}
