package clone

import (
	"context"
	"time"

	"github.com/percona/search-clone/log"
	"github.com/percona/search-clone/search"
)

// IndexReader reads index definitions.
type IndexReader interface {
	GetIndex(ctx context.Context, name string) (search.Index, error)
}

// IndexWriter creates or replaces index definitions.
type IndexWriter interface {
	CreateOrUpdateIndex(ctx context.Context, index search.Index) (bool, error)
}

// SchemaResult describes a cloned index definition.
type SchemaResult struct {
	Index      string
	FieldCount int
	// Created is false when an existing target index was replaced.
	Created bool
}

// SchemaCloner copies an index definition from the source to the target.
type SchemaCloner struct {
	source IndexReader
	target IndexWriter
}

func NewSchemaCloner(source IndexReader, target IndexWriter) *SchemaCloner {
	return &SchemaCloner{source: source, target: target}
}

// Clone reads the definition of index from the source and creates or
// replaces it on the target. Running it again is harmless.
func (sc *SchemaCloner) Clone(ctx context.Context, index string) (*SchemaResult, error) {
	lg := log.Ctx(ctx).With(log.Index(index))
	startTime := time.Now()

	def, err := sc.source.GetIndex(ctx, index)
	if err != nil {
		if search.IsNotFound(err) {
			return nil, &SchemaNotFoundError{Index: index, Err: err}
		}

		return nil, &SchemaReadError{Index: index, Err: err}
	}

	created, err := sc.target.CreateOrUpdateIndex(ctx, def)
	if err != nil {
		return nil, &SchemaWriteError{Index: index, Err: err}
	}

	res := &SchemaResult{
		Index:      index,
		FieldCount: def.FieldCount(),
		Created:    created,
	}

	action := "replaced"
	if created {
		action = "created"
	}

	lg.With(log.Elapsed(time.Since(startTime))).
		Infof("Cloned index %q into target: %s, %d fields", index, action, res.FieldCount)

	return res, nil
}
