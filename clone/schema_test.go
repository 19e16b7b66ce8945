package clone //nolint:testpackage

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/search-clone/errors"
	"github.com/percona/search-clone/search"
)

func testIndex() search.Index {
	return search.Index{
		"name":   json.RawMessage(`"products"`),
		"fields": json.RawMessage(`[{"name":"id","key":true},{"name":"ObjectID"},{"name":"title"}]`),
	}
}

func TestSchemaClone(t *testing.T) {
	t.Parallel()

	src := &mockIndexReader{index: testIndex()}
	dst := &mockIndexWriter{created: true}

	res, err := NewSchemaCloner(src, dst).Clone(t.Context(), "products")
	require.NoError(t, err)

	assert.Equal(t, &SchemaResult{Index: "products", FieldCount: 3, Created: true}, res)
	assert.Equal(t, testIndex(), dst.written)
}

func TestSchemaCloneIsRepeatable(t *testing.T) {
	t.Parallel()

	src := &mockIndexReader{index: testIndex()}
	dst := &mockIndexWriter{}

	for range 2 {
		res, err := NewSchemaCloner(src, dst).Clone(t.Context(), "products")
		require.NoError(t, err)
		assert.False(t, res.Created)
	}

	assert.Equal(t, 2, dst.calls)
}

func TestSchemaCloneErrors(t *testing.T) {
	t.Parallel()

	t.Run("source index missing", func(t *testing.T) {
		t.Parallel()

		src := &mockIndexReader{err: responseError(http.StatusNotFound)}
		dst := &mockIndexWriter{}

		_, err := NewSchemaCloner(src, dst).Clone(t.Context(), "products")

		nf, ok := errors.AsType[*SchemaNotFoundError](err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, "products", nf.Index)
		assert.True(t, search.IsNotFound(err))
		assert.Zero(t, dst.calls)
	})

	t.Run("source read failure", func(t *testing.T) {
		t.Parallel()

		src := &mockIndexReader{err: responseError(http.StatusServiceUnavailable)}
		dst := &mockIndexWriter{}

		_, err := NewSchemaCloner(src, dst).Clone(t.Context(), "products")

		_, ok := errors.AsType[*SchemaReadError](err)
		require.True(t, ok, "got %v", err)
		assert.Zero(t, dst.calls)
	})

	t.Run("target rejects definition", func(t *testing.T) {
		t.Parallel()

		src := &mockIndexReader{index: testIndex()}
		dst := &mockIndexWriter{err: responseError(http.StatusBadRequest)}

		_, err := NewSchemaCloner(src, dst).Clone(t.Context(), "products")

		_, ok := errors.AsType[*SchemaWriteError](err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, http.StatusBadRequest, search.StatusCode(err))
	})
}
