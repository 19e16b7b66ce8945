package clone //nolint:testpackage

import (
	"context"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/percona/search-clone/search"
)

// mockIndexReader is a test double for the IndexReader interface.
type mockIndexReader struct {
	index search.Index
	err   error
	calls int
}

func (m *mockIndexReader) GetIndex(context.Context, string) (search.Index, error) {
	m.calls++

	return m.index, m.err
}

// mockIndexWriter is a test double for the IndexWriter interface.
type mockIndexWriter struct {
	created bool
	err     error
	written search.Index
	calls   int
}

func (m *mockIndexWriter) CreateOrUpdateIndex(_ context.Context, index search.Index) (bool, error) {
	m.calls++
	m.written = index

	return m.created, m.err
}

// mockSearcher is a test double for the DocumentSearcher interface.
type mockSearcher struct {
	results *search.SearchResults
	err     error
	opts    []*search.SearchOptions
}

func (m *mockSearcher) Search(_ context.Context, _ string, opts *search.SearchOptions) (*search.SearchResults, error) {
	m.opts = append(m.opts, opts)

	return m.results, m.err
}

// mockUploader is a test double for the DocumentUploader interface.
type mockUploader struct {
	result *search.IndexDocumentsResult
	err    error
	docs   []search.Document
}

func (m *mockUploader) UploadDocuments(
	_ context.Context,
	docs []search.Document,
) (*search.IndexDocumentsResult, error) {
	m.docs = append(m.docs, docs...)

	if m.err != nil {
		return nil, m.err
	}

	if m.result != nil {
		return m.result, nil
	}

	res := &search.IndexDocumentsResult{}
	for _, doc := range docs {
		res.Results = append(res.Results, search.IndexingResult{
			Key:        doc["ObjectID"].String(),
			Succeeded:  true,
			StatusCode: http.StatusCreated,
		})
	}

	return res, nil
}

func responseError(status int) error {
	return &azcore.ResponseError{StatusCode: status, ErrorCode: http.StatusText(status)}
}

func docs(keys ...int64) []search.Document {
	rv := make([]search.Document, len(keys))
	for i, k := range keys {
		rv[i] = search.Document{"ObjectID": search.Int(k)}
	}

	return rv
}
