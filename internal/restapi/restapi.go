// Package restapi defines the request interface the transfer packages depend
// on. The public client implements it; tests substitute mocks.
package restapi

import (
	"context"
	"io"
	"net/http"
)

// Doer issues one signed request against the storage service. path is the
// object key, optionally carrying a sub-resource query string; body may be
// nil for bodiless methods. Implementations attach authentication and return
// the raw response; callers own closing the response body.
type Doer interface {
	Do(ctx context.Context, method, path string, hdr http.Header, body io.Reader, length int64) (*http.Response, error)
}
