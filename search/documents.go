package search

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/percona/search-clone/errors"
)

// MaxBatchSize is the largest number of documents the service accepts in one
// indexing request and returns in one page of results.
const MaxBatchSize = 1000

// DocumentClient queries and writes the documents of one index.
type DocumentClient struct {
	*client

	index string
}

// NewDocumentClient returns a DocumentClient for index on the service at
// endpoint.
func NewDocumentClient(endpoint, key, index string, opts *ClientOptions) (*DocumentClient, error) {
	if index == "" {
		return nil, errors.New("empty index name")
	}

	c, err := newClient(endpoint, key, opts)
	if err != nil {
		return nil, err
	}

	return &DocumentClient{client: c, index: index}, nil
}

// Index returns the name of the index the client works on.
func (c *DocumentClient) Index() string {
	return c.index
}

// SearchOptions are the query parameters of [DocumentClient.Search].
type SearchOptions struct {
	// Filter is an OData $filter expression.
	Filter string
	// OrderBy lists "field [asc|desc]" clauses.
	OrderBy []string
	// Top limits the number of results. Zero leaves it to the service.
	Top int
	// IncludeTotalCount asks for the total number of matching documents.
	IncludeTotalCount bool
	// Select limits the returned fields.
	Select []string
}

// SearchResults holds all results of a query.
type SearchResults struct {
	// Count is the total number of matching documents, when requested.
	Count *int64
	// Documents are the results without @search annotations.
	Documents []Document
}

type searchRequest struct {
	Search  string `json:"search"`
	Filter  string `json:"filter,omitempty"`
	OrderBy string `json:"orderby,omitempty"`
	Top     int    `json:"top,omitempty"`
	Count   bool   `json:"count,omitempty"`
	Select  string `json:"select,omitempty"`
	Skip    int    `json:"skip,omitempty"`
}

type searchResponse struct {
	Count              *int64         `json:"@odata.count"`
	Value              []Document     `json:"value"`
	NextPageParameters *searchRequest `json:"@search.nextPageParameters"`
}

// Search runs a query and returns all its results. When the service splits
// the results, the continuation pages are fetched before returning.
func (c *DocumentClient) Search(
	ctx context.Context,
	text string,
	opts *SearchOptions,
) (*SearchResults, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}

	body := &searchRequest{
		Search:  text,
		Filter:  opts.Filter,
		OrderBy: strings.Join(opts.OrderBy, ","),
		Top:     opts.Top,
		Count:   opts.IncludeTotalCount,
		Select:  strings.Join(opts.Select, ","),
	}

	results := &SearchResults{}

	for page := 0; body != nil; page++ {
		resp, err := c.searchPage(ctx, body)
		if err != nil {
			if page != 0 {
				return nil, errors.Wrapf(err, "page %d", page)
			}

			return nil, err
		}

		if page == 0 {
			results.Count = resp.Count
		}

		for _, doc := range resp.Value {
			results.Documents = append(results.Documents, doc.withoutAnnotations())
		}

		body = resp.NextPageParameters
	}

	return results, nil
}

func (c *DocumentClient) searchPage(ctx context.Context, body *searchRequest) (*searchResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "indexes", c.index, "docs", "search.post.search")
	if err != nil {
		return nil, err
	}

	err = runtime.MarshalAsJSON(req, body)
	if err != nil {
		return nil, errors.Wrap(err, "encode query")
	}

	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var rv searchResponse

	err = runtime.UnmarshalAsJSON(resp, &rv)
	if err != nil {
		return nil, errors.Wrap(err, "decode results")
	}

	return &rv, nil
}

// ActionType is the @search.action of an [IndexAction].
type ActionType string

const (
	ActionUpload        ActionType = "upload"
	ActionMerge         ActionType = "merge"
	ActionMergeOrUpload ActionType = "mergeOrUpload"
	ActionDelete        ActionType = "delete"
)

// IndexAction is one document operation of an indexing batch.
type IndexAction struct {
	Type     ActionType
	Document Document
}

func (a IndexAction) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(a.Document)+1)
	for k, v := range a.Document {
		m[k] = v
	}

	m["@search.action"] = a.Type

	return json.Marshal(m) //nolint:wrapcheck
}

// IndexingResult is the outcome of one [IndexAction].
type IndexingResult struct {
	Key          string `json:"key"`
	Succeeded    bool   `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	StatusCode   int    `json:"statusCode"`
}

// IndexDocumentsResult holds one result per action, in no particular order.
type IndexDocumentsResult struct {
	Results []IndexingResult `json:"value"`
}

// Failed returns the results of the actions that did not succeed.
func (r *IndexDocumentsResult) Failed() []IndexingResult {
	var failed []IndexingResult

	for _, res := range r.Results {
		if !res.Succeeded {
			failed = append(failed, res)
		}
	}

	return failed
}

// IndexDocuments submits a batch of actions. A response where only some
// actions failed (207 Multi-Status) is not an error: inspect
// [IndexDocumentsResult.Failed].
func (c *DocumentClient) IndexDocuments(
	ctx context.Context,
	actions []IndexAction,
) (*IndexDocumentsResult, error) {
	if len(actions) > MaxBatchSize {
		return nil, errors.Errorf("batch of %d actions exceeds the limit of %d",
			len(actions), MaxBatchSize)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "indexes", c.index, "docs", "search.index")
	if err != nil {
		return nil, err
	}

	err = runtime.MarshalAsJSON(req, struct {
		Value []IndexAction `json:"value"`
	}{actions})
	if err != nil {
		return nil, errors.Wrap(err, "encode batch")
	}

	resp, err := c.do(req, http.StatusOK, http.StatusMultiStatus)
	if err != nil {
		return nil, err
	}

	var rv IndexDocumentsResult

	err = runtime.UnmarshalAsJSON(resp, &rv)
	if err != nil {
		return nil, errors.Wrap(err, "decode indexing results")
	}

	return &rv, nil
}

// UploadDocuments uploads docs, replacing documents with the same key.
func (c *DocumentClient) UploadDocuments(
	ctx context.Context,
	docs []Document,
) (*IndexDocumentsResult, error) {
	actions := make([]IndexAction, len(docs))
	for i, doc := range docs {
		actions[i] = IndexAction{Type: ActionUpload, Document: doc}
	}

	return c.IndexDocuments(ctx, actions)
}
