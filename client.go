// Package knox provides client initialization and configuration.
//
// The Client provides a high-level interface for a bucket on an
// S3-compatible object storage service, supporting single-shot object
// operations, multipart uploads, and pre-signed URL generation over the
// service's REST protocol with Signature V2 request authentication.
package knox

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/staer/knox/errors"
	"github.com/staer/knox/internal/request"
	"github.com/staer/knox/internal/validation"
	"github.com/staer/knox/knoxtypes"
)

const (
	// DefaultEndpoint is the service host used when none is configured.
	DefaultEndpoint = "s3.amazonaws.com"

	// DefaultConcurrency bounds in-flight part uploads during multipart
	// transfers unless overridden.
	DefaultConcurrency = 5
)

// Client represents a client bound to one bucket with fixed credentials.
// It is safe for concurrent use; credentials and bucket context are
// immutable for the client's lifetime.
type Client struct {
	// builder assembles and signs every outbound request
	builder *request.Builder

	// httpClient is the underlying HTTP transport
	httpClient *http.Client

	// config holds the resolved client configuration
	config knoxtypes.ClientConfig

	// logger receives debug and failure logging; never nil
	logger *slog.Logger

	// fs is the filesystem abstraction for file operations
	fs fs.Filesystem
}

// New creates a new client with the provided options. The access key,
// secret key, and bucket are required; a missing field fails construction
// synchronously with ErrInvalidConfig, before any I/O.
//
// Example:
//
//	client, err := knox.New(
//	    knox.WithCredentials(accessKey, secretKey),
//	    knox.WithBucket("my-bucket"),
//	)
func New(opts ...knoxtypes.Option) (*Client, error) {
	cfg := knoxtypes.ClientConfig{
		Endpoint:    DefaultEndpoint,
		Secure:      true,
		Concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Key == "" {
		return nil, errors.NewError("new", errors.ErrInvalidConfig).
			WithMessage("access key is required")
	}
	if cfg.Secret == "" {
		return nil, errors.NewError("new", errors.ErrInvalidConfig).
			WithMessage("secret key is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.NewError("new", errors.ErrInvalidConfig).
			WithMessage("bucket is required")
	}
	if err := validation.ValidateBucketName(cfg.Bucket); err != nil {
		return nil, err
	}

	endpoint := cfg.Endpoint
	if cfg.Port != 0 {
		endpoint = net.JoinHostPort(cfg.Endpoint, strconv.Itoa(cfg.Port))
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	filesystem := cfg.Filesystem
	if filesystem == nil {
		// Default to OS filesystem rooted at /
		filesystem = billy.NewOSFS("/")
	}

	return &Client{
		builder: &request.Builder{
			Key:      cfg.Key,
			Secret:   cfg.Secret,
			Bucket:   cfg.Bucket,
			Endpoint: endpoint,
			Secure:   cfg.Secure,
		},
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
		fs:         filesystem,
	}, nil
}

// Bucket returns the bucket the client is bound to.
func (c *Client) Bucket() string {
	return c.config.Bucket
}

// Do issues one signed request against the service. It implements the
// request interface the transfer packages depend on. The caller owns
// closing the response body.
func (c *Client) Do(ctx context.Context, method, path string, hdr http.Header, body io.Reader, length int64) (*http.Response, error) {
	req, err := c.builder.New(ctx, method, path, hdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		// net/http sends a non-nil body with ContentLength 0 as unknown
		// length (chunked); NoBody marks it explicitly empty.
		if length == 0 {
			req.Body = http.NoBody
		} else {
			req.Body = io.NopCloser(body)
			req.ContentLength = length
		}
	}
	return c.httpClient.Do(req)
}
