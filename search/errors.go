package search

import (
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/percona/search-clone/errors"
)

// IsNotFound reports whether err is a 404 response from the service.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status of a service error, 0 for any other error.
func StatusCode(err error) int {
	re, ok := errors.AsType[*azcore.ResponseError](err)
	if !ok {
		return 0
	}

	return re.StatusCode
}
