// Package multipart drives the multipart upload protocol: one initiation
// call, concurrent bounded part uploads, and a final completion call listing
// every part's tag in ascending part-number order.
//
// A session either completes with every part recorded or fails as a whole.
// Any part failure cancels the remaining in-flight parts and aborts the
// upload server-side; proceeding with a missing part would corrupt the
// assembled object.
package multipart

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/staer/knox/errors"
	"github.com/staer/knox/internal/pool"
	"github.com/staer/knox/internal/restapi"
	"github.com/staer/knox/knoxtypes"
)

const (
	// MinPartSize is the smallest part the service accepts, except for the
	// final part of an upload.
	MinPartSize = 5 * 1024 * 1024

	// MaxParts is the service's ceiling on parts per upload.
	MaxParts = 10000

	// defaultConcurrency bounds in-flight part uploads when the caller does
	// not configure a limit.
	defaultConcurrency = 5
)

// The initiation response carries the upload id between these fixed markers.
// The body has no other structure worth a full parser.
const (
	uploadIDStart = "<UploadId>"
	uploadIDEnd   = "</UploadId>"
)

// Plan chooses the part count and size for a payload of size bytes such that
// partSize >= MinPartSize, numParts <= MaxParts, and numParts*partSize >= size.
// When the payload exceeds MaxParts at the minimum size, the part size grows
// instead of the part count.
func Plan(size int64) (numParts int, partSize int64) {
	return PlanWithPartSize(size, MinPartSize)
}

// PlanWithPartSize is Plan with a caller-preferred part size. Sizes below
// the service minimum are raised to it; sizes that would exceed the part
// ceiling are grown further.
func PlanWithPartSize(size, preferred int64) (numParts int, partSize int64) {
	partSize = preferred
	if partSize < MinPartSize {
		partSize = MinPartSize
	}
	if size > MaxParts*partSize {
		partSize = (size + MaxParts - 1) / MaxParts
	}
	numParts = int((size + partSize - 1) / partSize)
	if numParts < 1 {
		numParts = 1
	}
	return numParts, partSize
}

// completedPart is one entry of the completion request body.
type completedPart struct {
	XMLName    xml.Name `xml:"Part"`
	PartNumber int      `xml:"PartNumber"`
	ETag       string   `xml:"ETag"`
}

// completeUpload is the completion request body wrapper element.
type completeUpload struct {
	XMLName xml.Name        `xml:"CompleteMultipartUpload"`
	Parts   []completedPart `xml:"Part"`
}

// session tracks one in-flight multipart upload. Part tags are recorded
// under the mutex; completion is gated on every slot being filled.
type session struct {
	uploadID string
	numParts int
	partSize int64

	mu    sync.Mutex
	etags []string // indexed by partNumber-1; "" until recorded
}

func (s *session) record(partNumber int, etag string) {
	s.mu.Lock()
	s.etags[partNumber-1] = etag
	s.mu.Unlock()
}

// completedParts returns the recorded parts in ascending part-number order,
// failing if any slot is still empty.
func (s *session) completedParts() ([]completedPart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := make([]completedPart, s.numParts)
	for i, etag := range s.etags {
		if etag == "" {
			return nil, fmt.Errorf("part %d has no etag recorded", i+1)
		}
		parts[i] = completedPart{PartNumber: i + 1, ETag: etag}
	}
	return parts, nil
}

// Uploader orchestrates multipart uploads over a signed-request issuer.
type Uploader struct {
	api    restapi.Doer
	logger *slog.Logger
}

// NewUploader creates a new multipart uploader. logger may be nil.
func NewUploader(api restapi.Doer, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Uploader{api: api, logger: logger}
}

// Upload runs a full multipart session for key: initiate, concurrent part
// uploads reading disjoint ranges from r, and completion. On any failure the
// session is failed as a whole and a best-effort abort is issued.
func (u *Uploader) Upload(
	ctx context.Context,
	key string,
	r io.ReaderAt,
	size int64,
	cfg *knoxtypes.UploadConfig,
	startTime time.Time,
) (*knoxtypes.UploadResult, error) {
	numParts, partSize := PlanWithPartSize(size, cfg.PartSize)

	uploadID, err := u.initiate(ctx, key, cfg)
	if err != nil {
		return nil, err
	}

	sess := &session{
		uploadID: uploadID,
		numParts: numParts,
		partSize: partSize,
		etags:    make([]string, numParts),
	}

	u.logger.Debug("multipart upload initiated",
		"key", key, "uploadId", uploadID, "parts", numParts, "partSize", partSize)

	if err := u.uploadParts(ctx, key, r, size, sess, cfg.Concurrency); err != nil {
		u.abort(context.WithoutCancel(ctx), key, uploadID)
		return nil, err
	}

	etag, err := u.complete(ctx, key, sess)
	if err != nil {
		u.abort(context.WithoutCancel(ctx), key, uploadID)
		return nil, err
	}

	return &knoxtypes.UploadResult{
		Key:       key,
		Size:      size,
		ETag:      etag,
		Parts:     numParts,
		Multipart: true,
		Duration:  time.Since(startTime),
	}, nil
}

// initiate issues the upload-initiation POST and extracts the service-issued
// upload id from the response body.
func (u *Uploader) initiate(ctx context.Context, key string, cfg *knoxtypes.UploadConfig) (string, error) {
	hdr := make(http.Header)
	if cfg.ContentType != "" {
		hdr.Set("Content-Type", cfg.ContentType)
	}
	// The assembled object's ACL is fixed at initiation; part PUTs cannot
	// change it. The default matches single-shot uploads.
	acl := cfg.ACL
	if acl == "" {
		acl = knoxtypes.ACLPublicRead
	}
	hdr.Set("X-Amz-Acl", string(acl))
	mergeHeaders(hdr, cfg.Headers)

	resp, err := u.api.Do(ctx, http.MethodPost, key+"?uploads", hdr, nil, 0)
	if err != nil {
		return "", errors.NewError("initiateUpload", err).WithKey(key)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewError("initiateUpload", err).WithKey(key)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.NewError("initiateUpload", errors.ErrUnexpectedStatus).
			WithKey(key).
			WithMessage(fmt.Sprintf("status %d", resp.StatusCode))
	}
	return extractUploadID(body)
}

// extractUploadID locates the upload id between the fixed markers. It
// tolerates arbitrary surrounding content.
func extractUploadID(body []byte) (string, error) {
	s := string(body)
	start := strings.Index(s, uploadIDStart)
	if start == -1 {
		return "", errors.NewError("initiateUpload", errors.ErrUnexpectedStatus).
			WithMessage("no upload id in initiation response")
	}
	start += len(uploadIDStart)
	end := strings.Index(s[start:], uploadIDEnd)
	if end == -1 {
		return "", errors.NewError("initiateUpload", errors.ErrUnexpectedStatus).
			WithMessage("unterminated upload id in initiation response")
	}
	id := s[start : start+end]
	if id == "" {
		return "", errors.NewError("initiateUpload", errors.ErrUnexpectedStatus).
			WithMessage("empty upload id in initiation response")
	}
	return id, nil
}

// uploadParts uploads every part concurrently. The first failure cancels the
// group; remaining parts stop as their requests observe the cancelled
// context.
func (u *Uploader) uploadParts(
	ctx context.Context,
	key string,
	r io.ReaderAt,
	size int64,
	sess *session,
	concurrency int,
) error {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	buffers := pool.NewPartPool(sess.partSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for n := 1; n <= sess.numParts; n++ {
		g.Go(func() error {
			offset := int64(n-1) * sess.partSize
			length := sess.partSize
			if offset+length > size {
				length = size - offset
			}

			buf := buffers.Get()[:length]
			defer buffers.Put(buf)

			read, err := r.ReadAt(buf, offset)
			if int64(read) != length {
				if err == nil || err == io.EOF {
					err = errors.ErrShortRead
				}
				return errors.NewError("readPart", err).
					WithKey(key).
					WithMessage(fmt.Sprintf("part %d: read %d of %d bytes", n, read, length))
			}

			etag, err := u.putPart(gctx, key, sess.uploadID, n, buf)
			if err != nil {
				return err
			}
			sess.record(n, etag)
			return nil
		})
	}

	return g.Wait()
}

// putPart uploads one part's bytes, addressed by part number and upload id,
// carrying the part's content MD5 and exact length.
func (u *Uploader) putPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (string, error) {
	sum := md5.Sum(data)
	hdr := make(http.Header)
	hdr.Set("Content-Md5", base64.StdEncoding.EncodeToString(sum[:]))

	path := fmt.Sprintf("%s?partNumber=%d&uploadId=%s", key, partNumber, uploadID)
	resp, err := u.api.Do(ctx, http.MethodPut, path, hdr, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewError("uploadPart", err).
			WithKey(key).
			WithMessage(fmt.Sprintf("part %d", partNumber))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		u.logger.Warn("part upload failed",
			"key", key, "part", partNumber, "status", resp.StatusCode)
		return "", errors.NewError("uploadPart", errors.ErrPartUpload).
			WithKey(key).
			WithMessage(fmt.Sprintf("part %d: status %d", partNumber, resp.StatusCode))
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		return "", errors.NewError("uploadPart", errors.ErrPartUpload).
			WithKey(key).
			WithMessage(fmt.Sprintf("part %d: no etag in response", partNumber))
	}
	return etag, nil
}

// complete issues the completion POST once every part's tag is recorded. The
// body lists parts in ascending part-number order regardless of the order in
// which they finished uploading.
func (u *Uploader) complete(ctx context.Context, key string, sess *session) (string, error) {
	parts, err := sess.completedParts()
	if err != nil {
		return "", errors.NewError("completeUpload", errors.ErrCompletion).
			WithKey(key).
			WithMessage(err.Error())
	}

	body, err := xml.Marshal(completeUpload{Parts: parts})
	if err != nil {
		return "", errors.NewError("completeUpload", err).WithKey(key)
	}

	hdr := make(http.Header)
	hdr.Set("Content-Type", "application/xml")

	resp, err := u.api.Do(ctx, http.MethodPost, key+"?uploadId="+sess.uploadID,
		hdr, bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", errors.NewError("completeUpload", err).WithKey(key)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewError("completeUpload", err).WithKey(key)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.NewError("completeUpload", errors.ErrCompletion).
			WithKey(key).
			WithMessage(fmt.Sprintf("status %d", resp.StatusCode))
	}

	return extractCompletionETag(respBody), nil
}

// extractCompletionETag pulls the assembled object's tag out of the
// completion response, if present.
func extractCompletionETag(body []byte) string {
	s := string(body)
	start := strings.Index(s, "<ETag>")
	if start == -1 {
		return ""
	}
	start += len("<ETag>")
	end := strings.Index(s[start:], "</ETag>")
	if end == -1 {
		return ""
	}
	return xmlUnescape(s[start : start+end])
}

func xmlUnescape(s string) string {
	r := strings.NewReplacer("&quot;", `"`, "&amp;", "&", "&lt;", "<", "&gt;", ">")
	return r.Replace(s)
}

// abort tears down a failed session server-side so the service can reclaim
// stored parts. Best effort: failures are logged, not returned.
func (u *Uploader) abort(ctx context.Context, key, uploadID string) {
	resp, err := u.api.Do(ctx, http.MethodDelete, key+"?uploadId="+uploadID, nil, nil, 0)
	if err != nil {
		u.logger.Debug("abort failed", "key", key, "uploadId", uploadID, "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func mergeHeaders(dst, src http.Header) {
	for name, vv := range src {
		dst[http.CanonicalHeaderKey(name)] = vv
	}
}
