package knox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/staer/knox/errors"
	"github.com/staer/knox/internal/validation"
	"github.com/staer/knox/knoxtypes"
)

// Get downloads an object and returns its content.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	reader, _, err := c.GetReader(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.NewObjectError("get", c.config.Bucket, key, err)
	}
	return data, nil
}

// GetReader downloads an object as a stream. The caller must close the
// returned reader; metadata is parsed from the response headers.
func (c *Client) GetReader(ctx context.Context, key string) (io.ReadCloser, *knoxtypes.ObjectMetadata, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, nil, err
	}

	resp, err := c.Do(ctx, http.MethodGet, key, nil, nil, 0)
	if err != nil {
		return nil, nil, errors.NewObjectError("get", c.config.Bucket, key, err)
	}
	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		return nil, nil, c.statusError("get", key, resp.StatusCode)
	}

	return resp.Body, metadataFromHeader(resp.Header), nil
}

// Head retrieves object metadata without downloading the content.
func (c *Client) Head(ctx context.Context, key string) (*knoxtypes.ObjectMetadata, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}

	resp, err := c.Do(ctx, http.MethodHead, key, nil, nil, 0)
	if err != nil {
		return nil, errors.NewObjectError("head", c.config.Bucket, key, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("head", key, resp.StatusCode)
	}
	return metadataFromHeader(resp.Header), nil
}

// Exists reports whether an object is present in the bucket.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Head(ctx, key)
	if err != nil {
		if errors.IsObjectNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes an object. Deleting a missing object is not an error;
// the service responds identically either way.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := validation.ValidateObjectKey(key); err != nil {
		return err
	}

	resp, err := c.Do(ctx, http.MethodDelete, key, nil, nil, 0)
	if err != nil {
		return errors.NewObjectError("delete", c.config.Bucket, key, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return c.statusError("delete", key, resp.StatusCode)
	}

	c.logger.Debug("object deleted", "bucket", c.config.Bucket, "key", key)
	return nil
}

// Copy duplicates an object within the bucket without re-uploading the
// content. The copy is performed server-side.
func (c *Client) Copy(ctx context.Context, srcKey, dstKey string, opts ...knoxtypes.UploadOption) error {
	if err := validation.ValidateObjectKey(srcKey); err != nil {
		return err
	}
	if err := validation.ValidateObjectKey(dstKey); err != nil {
		return err
	}

	cfg := applyUploadOptions(opts)

	hdr := make(http.Header)
	for name, vv := range cfg.Headers {
		hdr[http.CanonicalHeaderKey(name)] = vv
	}
	hdr.Set("X-Amz-Copy-Source", "/"+c.config.Bucket+"/"+srcKey)
	if cfg.ACL != "" {
		hdr.Set("X-Amz-Acl", string(cfg.ACL))
	}

	resp, err := c.Do(ctx, http.MethodPut, dstKey, hdr, nil, 0)
	if err != nil {
		return errors.NewObjectError("copy", c.config.Bucket, dstKey, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return c.statusError("copy", dstKey, resp.StatusCode)
	}

	c.logger.Debug("object copied",
		"bucket", c.config.Bucket, "src", srcKey, "dst", dstKey)
	return nil
}

// statusError maps a non-success response status onto the package's
// sentinel errors.
func (c *Client) statusError(op, key string, status int) error {
	var err error
	switch status {
	case http.StatusNotFound:
		err = errors.ErrObjectNotFound
	case http.StatusForbidden:
		err = errors.ErrAccessDenied
	default:
		err = fmt.Errorf("%w: %d", errors.ErrUnexpectedStatus, status)
	}
	return errors.NewObjectError(op, c.config.Bucket, key, err)
}

// metadataFromHeader extracts object metadata from response headers.
// Fields the service omits are left zero.
func metadataFromHeader(h http.Header) *knoxtypes.ObjectMetadata {
	meta := &knoxtypes.ObjectMetadata{
		ContentType: h.Get("Content-Type"),
		ETag:        h.Get("ETag"),
	}
	if v := h.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			meta.ContentLength = n
		}
	}
	if v := h.Get("Last-Modified"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			meta.LastModified = t
		}
	}
	return meta
}

// drainAndClose consumes the remainder of a response body so the
// underlying connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
