// Package knoxtypes provides shared type definitions for the knox module.
package knoxtypes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// ObjectACL represents the canned access control list applied to objects.
type ObjectACL string

// Predefined object ACLs
const (
	// ACLPrivate grants private access
	ACLPrivate ObjectACL = "private"

	// ACLPublicRead grants public read access (the default for uploads)
	ACLPublicRead ObjectACL = "public-read"

	// ACLPublicReadWrite grants public read and write access
	ACLPublicReadWrite ObjectACL = "public-read-write"

	// ACLAuthenticatedRead grants authenticated users read access
	ACLAuthenticatedRead ObjectACL = "authenticated-read"

	// ACLOwnerRead grants bucket owner read access
	ACLOwnerRead ObjectACL = "bucket-owner-read"

	// ACLOwnerFullControl grants bucket owner full control
	ACLOwnerFullControl ObjectACL = "bucket-owner-full-control"
)

// ClientConfig holds configuration for the knox client.
type ClientConfig struct {
	// Key is the access key identifier. Required.
	Key string

	// Secret is the opaque signing secret. Required.
	Secret string

	// Bucket is the bucket all operations address. Required.
	Bucket string

	// Endpoint is the service host, without scheme or port.
	Endpoint string

	// Port is an optional non-default service port.
	Port int

	// Secure selects https when true.
	Secure bool

	// Concurrency bounds in-flight part uploads during multipart transfers.
	Concurrency int

	// PartSize overrides the planned multipart part size when positive.
	// Values below the service minimum are raised to it.
	PartSize int64

	// Timeout applies to individual HTTP requests when positive.
	Timeout time.Duration

	// HTTPClient overrides the default transport.
	HTTPClient *http.Client

	// Logger receives debug and part-failure logging. Nil disables logging.
	Logger *slog.Logger

	// Filesystem backs file-path operations. Defaults to the OS filesystem.
	Filesystem fs.Filesystem
}

// Option is a functional option for configuring the client.
type Option func(*ClientConfig)

// UploadOptionConfig holds configuration for upload operations.
type UploadOptionConfig struct {
	// ContentType for the stored object. Detected when empty.
	ContentType string

	// ACL applied to the stored object. Defaults to public-read.
	ACL ObjectACL

	// Headers are extra request headers; they win over computed defaults.
	Headers http.Header

	// PartSize overrides the planned multipart part size for this upload.
	PartSize int64

	// Concurrency overrides the client-level part upload concurrency.
	Concurrency int
}

// UploadOption is a functional option for configuring uploads.
type UploadOption func(*UploadOptionConfig)

// UploadConfig is the resolved configuration handed to the transfer layer.
type UploadConfig struct {
	ContentType string
	ACL         ObjectACL
	Headers     http.Header
	PartSize    int64
	Concurrency int
}

// UploadResult contains the outcome of an upload operation.
type UploadResult struct {
	// Key is the object key that was uploaded
	Key string

	// Size is the number of bytes uploaded
	Size int64

	// ETag is the entity tag returned by the service. For multipart uploads
	// this is the tag of the assembled object, not of any single part.
	ETag string

	// Parts is the number of parts uploaded; 1 for single-shot uploads.
	Parts int

	// Multipart reports whether the multipart protocol was used.
	Multipart bool

	// Duration is how long the upload took
	Duration time.Duration
}

// ObjectMetadata contains metadata about a stored object, as returned by a
// HEAD request.
type ObjectMetadata struct {
	// ContentType is the MIME type of the object
	ContentType string

	// ContentLength is the size of the object in bytes
	ContentLength int64

	// LastModified is when the object was last modified
	LastModified time.Time

	// ETag is the entity tag for the object
	ETag string
}
