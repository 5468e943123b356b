// Package request assembles signed outbound HTTP requests for the storage
// service: correct URL construction, default headers, and the Authorization
// header computed from the final merged header set.
package request

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/staer/knox/errors"
	"github.com/staer/knox/internal/sign"
)

// Builder constructs signed requests against one bucket on one endpoint.
// All fields are immutable for the builder's lifetime.
type Builder struct {
	// Key is the access key identifier.
	Key string

	// Secret is the signing secret.
	Secret string

	// Bucket is the bucket name prefixed onto every resource path.
	Bucket string

	// Endpoint is the service host, with port when non-default.
	Endpoint string

	// Secure selects https.
	Secure bool
}

// Resource returns the bucket-prefixed resource path for key, preserving any
// query string carried by key.
func (b *Builder) Resource(key string) string {
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	return "/" + b.Bucket + key
}

func (b *Builder) scheme() string {
	if b.Secure {
		return "https"
	}
	return "http"
}

// URL returns the plain object URL for key.
func (b *Builder) URL(key string) string {
	u := url.URL{
		Scheme: b.scheme(),
		Host:   b.Endpoint,
		Path:   b.Resource(key),
	}
	return u.String()
}

// SignedURL returns a pre-signed URL granting access to key until expires.
// The signature covers the expiry epoch and the canonical resource; the
// access key and expiry travel in the query string alongside it.
func (b *Builder) SignedURL(key string, expires time.Time) string {
	epoch := expires.Unix()
	signature := sign.QuerySignature(b.Secret, epoch, b.Resource(key))
	return fmt.Sprintf("%s?Expires=%d&AWSAccessKeyId=%s&Signature=%s",
		b.URL(key), epoch, b.Key, url.QueryEscape(signature))
}

// New builds an outbound request for method on path, which may carry a query
// string (e.g. "big.bin?uploads"). Defaults are merged under the caller's
// headers: Date is always set to construction time, and PUT requests default
// Expect: 100-continue and a public-read ACL. Caller headers win on
// collision, except Authorization, which is always computed here from the
// final merged set. The returned request has no body; the caller attaches
// one before sending.
func (b *Builder) New(ctx context.Context, method, path string, hdr http.Header) (*http.Request, error) {
	resource := b.Resource(path)

	urlPath := resource
	rawQuery := ""
	if i := strings.Index(resource, "?"); i != -1 {
		urlPath, rawQuery = resource[:i], resource[i+1:]
	}
	u := url.URL{
		Scheme:   b.scheme(),
		Host:     b.Endpoint,
		Path:     urlPath,
		RawQuery: rawQuery,
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, errors.NewError("request", err).WithBucket(b.Bucket)
	}

	merged := make(http.Header)
	merged.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	if method == http.MethodPut {
		merged.Set("Expect", "100-continue")
		merged.Set("X-Amz-Acl", "public-read")
	}
	for name, vv := range hdr {
		merged[http.CanonicalHeaderKey(name)] = vv
	}

	// Signed last, over exactly the headers that will be transmitted.
	merged.Set("Authorization", sign.Authorization(b.Key, b.Secret, method, resource, merged))

	req.Header = merged
	return req, nil
}
