package knox

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/staer/knox/knoxtypes"
)

// WithCredentials sets the access key and secret key used to sign
// requests. Required.
func WithCredentials(key, secret string) knoxtypes.Option {
	return func(c *knoxtypes.ClientConfig) {
		c.Key = key
		c.Secret = secret
	}
}

// WithBucket sets the bucket the client operates on. Required.
func WithBucket(bucket string) knoxtypes.Option {
	return func(c *knoxtypes.ClientConfig) {
		c.Bucket = bucket
	}
}

// WithEndpoint sets the service host. Defaults to DefaultEndpoint.
func WithEndpoint(endpoint string) knoxtypes.Option {
	return func(c *knoxtypes.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithPort sets a non-standard port on the endpoint.
func WithPort(port int) knoxtypes.Option {
	return func(c *knoxtypes.ClientConfig) {
		c.Port = port
	}
}

// WithSecure toggles HTTPS. Enabled by default.
func WithSecure(secure bool) knoxtypes.Option {
	return func(c *knoxtypes.ClientConfig) {
		c.Secure = secure
	}
}

// WithHTTPClient sets a custom HTTP client for all requests.
func WithHTTPClient(client *http.Client) knoxtypes.Option {
	return func(c *knoxtypes.ClientConfig) {
		c.HTTPClient = client
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
// Ignored when WithHTTPClient is also given.
func WithTimeout(timeout time.Duration) knoxtypes.Option {
	return func(c *knoxtypes.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithConcurrency sets the default number of concurrent part uploads
// for multipart transfers.
func WithConcurrency(n int) knoxtypes.Option {
	return func(c *knoxtypes.ClientConfig) {
		if n > 0 {
			c.Concurrency = n
		}
	}
}

// WithPartSize sets the default preferred part size in bytes for
// multipart transfers. Values below the service minimum are raised to
// the minimum at plan time.
func WithPartSize(size int64) knoxtypes.Option {
	return func(c *knoxtypes.ClientConfig) {
		if size > 0 {
			c.PartSize = size
		}
	}
}

// WithLogger sets a structured logger. Logging is discarded by default.
func WithLogger(logger *slog.Logger) knoxtypes.Option {
	return func(c *knoxtypes.ClientConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets the filesystem used by file-based operations such
// as PutFile. Defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) knoxtypes.Option {
	return func(c *knoxtypes.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithContentType sets the Content-Type for an upload, overriding
// detection.
func WithContentType(contentType string) knoxtypes.UploadOption {
	return func(c *knoxtypes.UploadOptionConfig) {
		c.ContentType = contentType
	}
}

// WithACL sets the canned ACL applied to the uploaded object.
func WithACL(acl knoxtypes.ObjectACL) knoxtypes.UploadOption {
	return func(c *knoxtypes.UploadOptionConfig) {
		c.ACL = acl
	}
}

// WithHeaders sets additional headers sent with the upload request.
// Caller headers take precedence over computed defaults.
func WithHeaders(headers http.Header) knoxtypes.UploadOption {
	return func(c *knoxtypes.UploadOptionConfig) {
		c.Headers = headers
	}
}

// WithUploadPartSize overrides the client's preferred part size for a
// single upload.
func WithUploadPartSize(size int64) knoxtypes.UploadOption {
	return func(c *knoxtypes.UploadOptionConfig) {
		if size > 0 {
			c.PartSize = size
		}
	}
}

// WithUploadConcurrency overrides the client's part upload concurrency
// for a single upload.
func WithUploadConcurrency(n int) knoxtypes.UploadOption {
	return func(c *knoxtypes.UploadOptionConfig) {
		if n > 0 {
			c.Concurrency = n
		}
	}
}
