package clone

import (
	"context"

	"github.com/percona/search-clone/errors"
	"github.com/percona/search-clone/search"
)

// DocumentSearcher runs document queries.
type DocumentSearcher interface {
	Search(ctx context.Context, text string, opts *search.SearchOptions) (*search.SearchResults, error)
}

// Batch is one page of documents in key order.
type Batch struct {
	Documents []search.Document
	// TotalCount is the number of documents after the cursor the source
	// reported for the query, when it did.
	TotalCount *int64
}

// Len returns the number of documents.
func (b *Batch) Len() int {
	return len(b.Documents)
}

// Paginator fetches the documents of the source index in pages ordered by
// the key field.
type Paginator struct {
	source   DocumentSearcher
	keyField string
	pageSize int
}

// NewPaginator returns a Paginator. pageSize is capped to
// [search.MaxBatchSize].
func NewPaginator(source DocumentSearcher, keyField string, pageSize int) *Paginator {
	if pageSize <= 0 || pageSize > search.MaxBatchSize {
		pageSize = search.MaxBatchSize
	}

	return &Paginator{source: source, keyField: keyField, pageSize: pageSize}
}

// Next returns the page of documents whose key is greater than cursor. An
// empty batch means there is nothing left to copy.
func (p *Paginator) Next(ctx context.Context, cursor Cursor) (*Batch, error) {
	filter, err := cursor.Filter(p.keyField)
	if err != nil {
		return nil, &SourceQueryError{Cursor: cursor, Err: err}
	}

	res, err := p.source.Search(ctx, "*", &search.SearchOptions{
		Filter:            filter,
		OrderBy:           []string{p.keyField + " asc"},
		Top:               p.pageSize,
		IncludeTotalCount: true,
	})
	if err != nil {
		return nil, &SourceQueryError{Cursor: cursor, Err: err}
	}

	if len(res.Documents) > p.pageSize {
		return nil, &SourceQueryError{
			Cursor: cursor,
			Err: errors.Errorf("got %d documents, requested at most %d",
				len(res.Documents), p.pageSize),
		}
	}

	for i, doc := range res.Documents {
		_, err := documentKey(doc, p.keyField)
		if err != nil {
			return nil, &SourceQueryError{Cursor: cursor, Err: errors.Wrapf(err, "document %d", i)}
		}
	}

	return &Batch{Documents: res.Documents, TotalCount: res.Count}, nil
}

// documentKey returns the key of doc. Only string and number keys can be
// used in a range filter.
func documentKey(doc search.Document, keyField string) (search.Value, error) {
	key, ok := doc.Get(keyField)
	if !ok {
		return search.Value{}, errors.Errorf("missing key field %q", keyField)
	}

	switch key.Kind() {
	case search.KindString, search.KindNumber:
		return key, nil
	}

	return search.Value{}, errors.Errorf("key field %q has %s value", keyField, key.Kind())
}
