// Package errors provides error types and handling for knox storage operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a storage operation error with context about the operation
// that failed. It wraps the underlying transport or protocol error with
// additional context for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "put", "get", "uploadPart")
	Op string

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// Err is the underlying error from the transport or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("knox.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("knox.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("knox.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("knox.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for common operation failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidConfig indicates a missing or invalid client configuration
	// field, detected at construction before any I/O.
	ErrInvalidConfig = errors.New("knox: invalid configuration")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("knox: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("knox: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("knox: invalid object key")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("knox: object not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("knox: access denied")

	// ErrUnexpectedStatus indicates the service returned a status the
	// operation does not treat as success.
	ErrUnexpectedStatus = errors.New("knox: unexpected response status")

	// ErrPartUpload indicates that a multipart part upload failed. A single
	// failed part fails the whole session; a missing part would otherwise
	// corrupt the completion request.
	ErrPartUpload = errors.New("knox: part upload failed")

	// ErrCompletion indicates that the multipart completion request failed.
	ErrCompletion = errors.New("knox: multipart completion failed")

	// ErrShortRead indicates that reading a part's byte range returned fewer
	// bytes than the plan requires.
	ErrShortRead = errors.New("knox: short read from source")
)

// IsInvalidConfig checks if an error indicates an invalid client configuration.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsObjectNotFound checks if an error indicates that an object was not found.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsAccessDenied checks if an error indicates access was denied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsPartUpload checks if an error came from a failed part upload.
func IsPartUpload(err error) bool {
	return errors.Is(err, ErrPartUpload)
}

// IsCompletion checks if an error came from a failed multipart completion.
func IsCompletion(err error) bool {
	return errors.Is(err, ErrCompletion)
}
