package search

import (
	"context"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/percona/search-clone/errors"
)

// IndexClient manages index definitions of one search service.
type IndexClient struct {
	*client
}

// NewIndexClient returns an IndexClient for the service at endpoint,
// authenticated with an admin api key.
func NewIndexClient(endpoint, key string, opts *ClientOptions) (*IndexClient, error) {
	c, err := newClient(endpoint, key, opts)
	if err != nil {
		return nil, err
	}

	return &IndexClient{client: c}, nil
}

// GetIndex returns the definition of the named index. A missing index is an
// error for which [IsNotFound] reports true.
func (c *IndexClient) GetIndex(ctx context.Context, name string) (Index, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "indexes", name)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var index Index

	err = runtime.UnmarshalAsJSON(resp, &index)
	if err != nil {
		return nil, errors.Wrap(err, "decode index")
	}

	return index.withoutAnnotations(), nil
}

// CreateOrUpdateIndex creates the index or replaces the definition of an
// existing index with the same name. It reports whether the index was created.
func (c *IndexClient) CreateOrUpdateIndex(ctx context.Context, index Index) (bool, error) {
	name := index.Name()
	if name == "" {
		return false, errors.New("index has no name")
	}

	req, err := c.newRequest(ctx, http.MethodPut, "indexes", name)
	if err != nil {
		return false, err
	}

	err = runtime.MarshalAsJSON(req, index.withoutAnnotations())
	if err != nil {
		return false, errors.Wrap(err, "encode index")
	}

	resp, err := c.do(req, http.StatusOK, http.StatusCreated)
	if err != nil {
		return false, err
	}

	runtime.Drain(resp)

	return resp.StatusCode == http.StatusCreated, nil
}
