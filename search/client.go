/*
Package search is a minimal client for the Azure AI Search REST API, built on
the azcore HTTP pipeline.

It covers the four calls the clone needs:

  - IndexClient: get an index definition and create-or-replace one.
  - DocumentClient: query documents (filter, order, top, count) and submit
    document batches.

Documents are schema-less: every field holds a [Value].
*/
package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/percona/search-clone/errors"
)

const (
	moduleName    = "search-clone"
	moduleVersion = "v0.1.0"

	// DefaultAPIVersion is the REST API version used when none is configured.
	DefaultAPIVersion = "2024-07-01"

	apiKeyHeader = "api-key"
)

// ClientOptions configures the HTTP pipeline of a client.
type ClientOptions struct {
	policy.ClientOptions

	// APIVersion overrides [DefaultAPIVersion].
	APIVersion string
}

// client holds what every request needs: the service URL, the pipeline and
// the API version.
type client struct {
	endpoint   string
	apiVersion string
	pl         runtime.Pipeline
}

func newClient(endpoint, key string, opts *ClientOptions) (*client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parse endpoint %q", endpoint)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("endpoint %q is not an absolute URL", endpoint)
	}

	apiVersion := opts.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	cred := azcore.NewKeyCredential(key)
	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerCall: []policy.Policy{runtime.NewKeyCredentialPolicy(cred, apiKeyHeader, nil)},
	}, &opts.ClientOptions)

	return &client{
		endpoint:   strings.TrimSuffix(u.String(), "/"),
		apiVersion: apiVersion,
		pl:         pl,
	}, nil
}

// Endpoint returns the service URL the client talks to.
func (c *client) Endpoint() string {
	return c.endpoint
}

func (c *client) newRequest(ctx context.Context, method string, paths ...string) (*policy.Request, error) {
	escaped := make([]string, len(paths))
	for i, p := range paths {
		escaped[i] = url.PathEscape(p)
	}

	req, err := runtime.NewRequest(ctx, method, runtime.JoinPaths(c.endpoint, escaped...))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}

	q := req.Raw().URL.Query()
	q.Set("api-version", c.apiVersion)
	req.Raw().URL.RawQuery = q.Encode()
	req.Raw().Header.Set("Accept", "application/json")

	return req, nil
}

// do sends req and turns any status outside want into an *azcore.ResponseError.
func (c *client) do(req *policy.Request, want ...int) (*http.Response, error) {
	resp, err := c.pl.Do(req)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if !runtime.HasStatusCode(resp, want...) {
		return nil, runtime.NewResponseError(resp) //nolint:wrapcheck
	}

	return resp, nil
}
