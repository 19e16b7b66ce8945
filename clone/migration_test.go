package clone //nolint:testpackage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/search-clone/config"
	"github.com/percona/search-clone/errors"
	"github.com/percona/search-clone/registry"
	"github.com/percona/search-clone/search"
	"github.com/percona/search-clone/search/searchtest"
)

const (
	sourceKey = "source-admin-key"
	targetKey = "target-admin-key"
)

// serverBuilder builds clients that trust the fake service at their endpoint.
type serverBuilder map[string]*searchtest.Server

func (b serverBuilder) NewIndexClient(endpoint, key string) (*search.IndexClient, error) {
	return search.NewIndexClient(endpoint, key, b[endpoint].ClientOptions())
}

func (b serverBuilder) NewDocumentClient(endpoint, key, index string) (*search.DocumentClient, error) {
	return search.NewDocumentClient(endpoint, key, index, b[endpoint].ClientOptions())
}

type env struct {
	source *searchtest.Server
	target *searchtest.Server
	cfg    *config.Config
	reg    *registry.Registry
}

func productsDefinition() search.Index {
	return search.Index{
		"name": json.RawMessage(`"products"`),
		"fields": json.RawMessage(`[
			{"name": "id", "type": "Edm.String", "key": true},
			{"name": "ObjectID", "type": "Edm.Int64", "filterable": true, "sortable": true},
			{"name": "title", "type": "Edm.String", "searchable": true}
		]`),
		"suggesters": json.RawMessage(`[{"name": "sg", "searchMode": "analyzingInfixMatching", "sourceFields": ["title"]}]`),
	}
}

func product(i int) search.Document {
	return search.Document{
		"id":       search.String(fmt.Sprintf("p-%d", i)),
		"ObjectID": search.Int(int64(i)),
		"title":    search.String(fmt.Sprintf("Product %d", i)),
	}
}

func newEnv(t *testing.T, products int) *env {
	t.Helper()

	source := searchtest.NewServer(t, sourceKey)
	target := searchtest.NewServer(t, targetKey)

	source.PutIndex(productsDefinition())

	for i := 1; i <= products; i++ {
		source.AddDocuments("products", product(i))
	}

	cfg := &config.Config{
		SourceEndpoint: source.URL,
		SourceKey:      sourceKey,
		SourceIndex:    "products",
		TargetEndpoint: target.URL,
		TargetKey:      targetKey,
	}

	return &env{
		source: source,
		target: target,
		cfg:    cfg,
		reg:    registry.New(cfg, serverBuilder{source.URL: source, target.URL: target}),
	}
}

type recorder struct {
	mu      sync.Mutex
	states  []State
	batches []BatchProgress
}

func (r *recorder) options() *Options {
	return &Options{
		OnStateChanged: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
		OnBatch: func(p BatchProgress) {
			r.mu.Lock()
			r.batches = append(r.batches, p)
			r.mu.Unlock()
		},
	}
}

func TestMigrationProducts(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 2500)
	rec := &recorder{}

	m := NewMigration(e.reg, "products", rec.options())
	require.NoError(t, m.Run(t.Context()))

	st := m.Status()
	assert.Equal(t, StateDone, st.State)
	require.NoError(t, st.Err)
	assert.EqualValues(t, 2500, st.Copied)
	assert.EqualValues(t, 2500, st.EstimatedTotal)
	assert.Equal(t, 3, st.Batches)
	assert.Equal(t, CursorAt(search.Int(2500)), st.Cursor)
	assert.Equal(t, &SchemaResult{Index: "products", FieldCount: 3, Created: true}, st.Schema)

	require.Len(t, rec.batches, 3)

	for i, want := range []struct {
		size   int
		cursor int64
	}{{1000, 1000}, {1000, 2000}, {500, 2500}} {
		assert.Equal(t, i+1, rec.batches[i].Batch)
		assert.Equal(t, want.size, rec.batches[i].Size)
		assert.Equal(t, CursorAt(search.Int(want.cursor)), rec.batches[i].Cursor)
	}

	assert.Equal(t, []State{
		StateSchemaCloning,
		StatePaginating, StateUploading,
		StatePaginating, StateUploading,
		StatePaginating, StateUploading,
		StatePaginating,
		StateDone,
	}, rec.states)

	// three full cycles and one empty fetch
	assert.Equal(t, 4, e.source.SearchCalls())
	assert.Equal(t, 3, e.target.IndexCalls())

	def, ok := e.target.Index("products")
	require.True(t, ok)
	assert.JSONEq(t, string(productsDefinition()["suggesters"]), string(def["suggesters"]))

	assert.Equal(t, e.source.Documents("products"), e.target.Documents("products"))
}

func TestMigrationRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 1200)

	require.NoError(t, NewMigration(e.reg, "products", nil).Run(t.Context()))

	m := NewMigration(e.reg, "products", nil)
	require.NoError(t, m.Run(t.Context()))

	st := m.Status()
	assert.False(t, st.Schema.Created)
	assert.EqualValues(t, 1200, st.Copied)
	assert.Len(t, e.target.Documents("products"), 1200)
}

func TestMigrationEmptyIndex(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 0)
	rec := &recorder{}

	m := NewMigration(e.reg, "products", rec.options())
	require.NoError(t, m.Run(t.Context()))

	st := m.Status()
	assert.Equal(t, StateDone, st.State)
	assert.Zero(t, st.Copied)
	assert.Zero(t, st.Batches)
	assert.True(t, st.Cursor.IsStart())
	assert.Empty(t, rec.batches)
	assert.Equal(t, 1, e.source.SearchCalls())
	assert.Zero(t, e.target.IndexCalls())

	_, ok := e.target.Index("products")
	assert.True(t, ok)
}

func TestMigrationSmallPages(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 25)

	m := NewMigration(e.reg, "products", &Options{PageSize: 10})
	require.NoError(t, m.Run(t.Context()))

	assert.Equal(t, 3, m.Status().Batches)
	assert.Equal(t, 4, e.source.SearchCalls())
	assert.Len(t, e.target.Documents("products"), 25)
}

func TestMigrationMissingOption(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 10)
	e.cfg.TargetKey = ""

	rec := &recorder{}
	m := NewMigration(e.reg, "products", rec.options())

	err := m.Run(t.Context())

	cerr, ok := errors.AsType[*config.ConfigurationError](err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, config.FieldTargetKey, cerr.Field)

	assert.Equal(t, StateAborted, m.Status().State)
	assert.Equal(t, []State{StateAborted}, rec.states)
	assert.Zero(t, e.source.SearchCalls())

	_, created := e.target.Index("products")
	assert.False(t, created)
}

func TestMigrationSourceIndexMissing(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 0)
	e.cfg.SourceIndex = "orders"

	m := NewMigration(e.reg, "orders", nil)

	err := m.Run(t.Context())
	require.Error(t, err)

	_, ok := errors.AsType[*SchemaNotFoundError](err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, err.Error(), "clone schema")
	assert.Equal(t, StateAborted, m.Status().State)
	assert.Zero(t, e.source.SearchCalls())
}

func TestMigrationSchemaRejected(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 10)
	e.target.FailIndexes(http.StatusBadRequest)

	err := NewMigration(e.reg, "products", nil).Run(t.Context())

	_, ok := errors.AsType[*SchemaWriteError](err)
	require.True(t, ok, "got %v", err)
	assert.Zero(t, e.source.SearchCalls())
}

func TestMigrationSourceQueryFails(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 10)
	e.source.FailSearch(http.StatusForbidden)

	m := NewMigration(e.reg, "products", nil)
	err := m.Run(t.Context())

	_, ok := errors.AsType[*SourceQueryError](err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, err.Error(), "batch 1")
	assert.Equal(t, StateAborted, m.Status().State)
}

func TestMigrationPartialUploadAborts(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 2500)
	e.target.FailDocument("p-1500", "document is malformed")

	rec := &recorder{}
	m := NewMigration(e.reg, "products", rec.options())

	err := m.Run(t.Context())

	werr, ok := errors.AsType[*TargetWriteError](err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, []string{"p-1500"}, werr.FailedKeys)
	assert.Contains(t, err.Error(), "batch 2")

	st := m.Status()
	assert.Equal(t, StateAborted, st.State)
	assert.EqualValues(t, 1000, st.Copied)
	assert.Equal(t, CursorAt(search.Int(1000)), st.Cursor)
	assert.Len(t, rec.batches, 1)
	assert.Equal(t, StateAborted, rec.states[len(rec.states)-1])

	// no rollback: the first batch and the accepted part of the second stay
	assert.Len(t, e.target.Documents("products"), 1999)
}

func TestMigrationCursorMustAdvance(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 1500)
	e.source.IgnoreFilter()

	m := NewMigration(e.reg, "products", nil)
	err := m.Run(t.Context())

	_, ok := errors.AsType[*SourceQueryError](err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, err.Error(), "batch 2")
	assert.Equal(t, 2, e.source.SearchCalls())
	assert.Equal(t, 1, e.target.IndexCalls())
}

func TestMigrationFollowsSplitPages(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 1500)
	e.source.SplitPages(300)

	m := NewMigration(e.reg, "products", nil)
	require.NoError(t, m.Run(t.Context()))

	assert.Equal(t, 2, m.Status().Batches)
	assert.Len(t, e.target.Documents("products"), 1500)
}

func TestMigrationRunsOnce(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 5)

	m := NewMigration(e.reg, "products", nil)
	require.NoError(t, m.Run(t.Context()))

	err := m.Run(t.Context())
	require.ErrorContains(t, err, "migration is done")
}

func TestMigrationCanceled(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 5)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	m := NewMigration(e.reg, "products", nil)
	err := m.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateAborted, m.Status().State)
}
