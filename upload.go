package knox

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/staer/knox/errors"
	"github.com/staer/knox/internal/transfer/multipart"
	"github.com/staer/knox/internal/validation"
	"github.com/staer/knox/knoxtypes"
)

// DefaultContentType is used when content type detection fails.
const DefaultContentType = "application/octet-stream"

// Put uploads a byte slice as an object. Content is buffered in memory;
// use PutFile for large payloads so they go through the multipart path.
func (c *Client) Put(ctx context.Context, key string, data []byte, opts ...knoxtypes.UploadOption) (*knoxtypes.UploadResult, error) {
	start := time.Now()

	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}

	cfg := applyUploadOptions(opts)
	if cfg.ContentType == "" {
		cfg.ContentType = detectContentType(key, data)
	}

	return c.putObject(ctx, key, data, cfg, start)
}

// PutReader uploads an object from a stream of known length. The content
// is sent in a single request without an integrity checksum; callers that
// need one should use Put or PutFile.
func (c *Client) PutReader(ctx context.Context, key string, r io.Reader, length int64, opts ...knoxtypes.UploadOption) (*knoxtypes.UploadResult, error) {
	start := time.Now()

	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, errors.NewObjectError("put", c.config.Bucket, key,
			errors.ErrInvalidInput).WithMessage("length must be non-negative")
	}

	cfg := applyUploadOptions(opts)
	if cfg.ContentType == "" {
		cfg.ContentType = detectContentTypeFromExtension(key)
	}

	hdr := uploadHeaders(cfg)
	resp, err := c.Do(ctx, http.MethodPut, key, hdr, r, length)
	if err != nil {
		return nil, errors.NewObjectError("put", c.config.Bucket, key, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("put", key, resp.StatusCode)
	}

	return &knoxtypes.UploadResult{
		Key:      key,
		Size:     length,
		ETag:     resp.Header.Get("ETag"),
		Parts:    1,
		Duration: time.Since(start),
	}, nil
}

// PutFile uploads a file from the configured filesystem. Files at or
// above the multipart threshold are uploaded in concurrent parts; smaller
// files go up in a single request.
func (c *Client) PutFile(ctx context.Context, key, path string, opts ...knoxtypes.UploadOption) (*knoxtypes.UploadResult, error) {
	start := time.Now()

	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}

	info, err := c.fs.Stat(path)
	if err != nil {
		return nil, errors.NewObjectError("putFile", c.config.Bucket, key, err)
	}
	if info.IsDir() {
		return nil, errors.NewObjectError("putFile", c.config.Bucket, key,
			errors.ErrInvalidInput).WithMessage("path is a directory")
	}
	size := info.Size()

	file, err := c.fs.Open(path)
	if err != nil {
		return nil, errors.NewObjectError("putFile", c.config.Bucket, key, err)
	}
	defer func() { _ = file.Close() }()

	cfg := applyUploadOptions(opts)
	if cfg.ContentType == "" {
		cfg.ContentType = c.detectFileContentType(file, path, size)
	}
	if cfg.PartSize == 0 {
		cfg.PartSize = c.config.PartSize
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = c.config.Concurrency
	}

	if size < multipart.MinPartSize {
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, errors.NewObjectError("putFile", c.config.Bucket, key, err)
		}
		return c.putObject(ctx, key, data, cfg, start)
	}

	c.logger.Debug("multipart upload",
		"bucket", c.config.Bucket, "key", key, "size", size)

	uploader := multipart.NewUploader(c, c.logger)
	result, err := uploader.Upload(ctx, key, file, size, resolveUploadConfig(cfg), start)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// putObject issues a single-request PUT with a Content-Md5 integrity
// checksum over the full payload.
func (c *Client) putObject(ctx context.Context, key string, data []byte, cfg *knoxtypes.UploadOptionConfig, start time.Time) (*knoxtypes.UploadResult, error) {
	sum := md5.Sum(data)

	hdr := uploadHeaders(cfg)
	hdr.Set("Content-Md5", base64.StdEncoding.EncodeToString(sum[:]))

	resp, err := c.Do(ctx, http.MethodPut, key, hdr, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.NewObjectError("put", c.config.Bucket, key, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("put", key, resp.StatusCode)
	}

	c.logger.Debug("object uploaded",
		"bucket", c.config.Bucket, "key", key, "size", len(data))

	return &knoxtypes.UploadResult{
		Key:      key,
		Size:     int64(len(data)),
		ETag:     resp.Header.Get("ETag"),
		Parts:    1,
		Duration: time.Since(start),
	}, nil
}

// applyUploadOptions resolves functional upload options into a config.
func applyUploadOptions(opts []knoxtypes.UploadOption) *knoxtypes.UploadOptionConfig {
	cfg := &knoxtypes.UploadOptionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// resolveUploadConfig converts the option-level config into the form the
// transfer layer consumes.
func resolveUploadConfig(cfg *knoxtypes.UploadOptionConfig) *knoxtypes.UploadConfig {
	return &knoxtypes.UploadConfig{
		ContentType: cfg.ContentType,
		ACL:         cfg.ACL,
		Headers:     cfg.Headers,
		PartSize:    cfg.PartSize,
		Concurrency: cfg.Concurrency,
	}
}

// uploadHeaders builds the request headers for a single-shot upload.
func uploadHeaders(cfg *knoxtypes.UploadOptionConfig) http.Header {
	hdr := make(http.Header)
	for name, vv := range cfg.Headers {
		hdr[http.CanonicalHeaderKey(name)] = vv
	}
	if cfg.ContentType != "" && hdr.Get("Content-Type") == "" {
		hdr.Set("Content-Type", cfg.ContentType)
	}
	if cfg.ACL != "" {
		hdr.Set("X-Amz-Acl", string(cfg.ACL))
	}
	return hdr
}

// detectContentType determines the MIME type for in-memory content,
// preferring the file extension and falling back to content sniffing.
func detectContentType(key string, data []byte) string {
	if ct := detectContentTypeFromExtension(key); ct != DefaultContentType {
		return ct
	}
	if mtype := mimetype.Detect(data); mtype != nil {
		return mtype.String()
	}
	return DefaultContentType
}

// detectContentTypeFromExtension maps a key's extension to a MIME type.
func detectContentTypeFromExtension(key string) string {
	ext := filepath.Ext(key)
	if ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return DefaultContentType
}

// detectFileContentType sniffs the MIME type from the head of a file,
// falling back to the path's extension. Sniffing uses ReadAt so the
// file's read offset is left untouched for the upload.
func (c *Client) detectFileContentType(file io.ReaderAt, path string, size int64) string {
	head := make([]byte, 3072)
	if size < int64(len(head)) {
		head = head[:size]
	}
	n, err := file.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return detectContentTypeFromExtension(path)
	}
	if mtype := mimetype.Detect(head[:n]); mtype != nil && mtype.String() != DefaultContentType {
		return mtype.String()
	}
	return detectContentTypeFromExtension(path)
}
