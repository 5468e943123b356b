package multipart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staer/knox/errors"
	"github.com/staer/knox/knoxtypes"
)

const mib = 1024 * 1024

// mockDoer implements restapi.Doer via a function field.
type mockDoer struct {
	DoFunc func(ctx context.Context, method, path string, hdr http.Header, body io.Reader, length int64) (*http.Response, error)
}

func (m *mockDoer) Do(ctx context.Context, method, path string, hdr http.Header, body io.Reader, length int64) (*http.Response, error) {
	return m.DoFunc(ctx, method, path, hdr, body, length)
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func etagResponse(etag string) *http.Response {
	resp := xmlResponse(http.StatusOK, "")
	resp.Header.Set("ETag", etag)
	return resp
}

func TestPlan(t *testing.T) {
	const m = int64(MinPartSize)
	tests := []struct {
		name         string
		size         int64
		wantParts    int
		wantPartSize int64
	}{
		{name: "exactly minimum", size: m, wantParts: 1, wantPartSize: m},
		{name: "minimum plus one", size: m + 1, wantParts: 2, wantPartSize: m},
		{name: "twelve megabytes", size: 12 * mib, wantParts: 3, wantPartSize: m},
		{name: "max parts at minimum size", size: MaxParts * m, wantParts: MaxParts, wantPartSize: m},
		{name: "one byte past the ceiling", size: MaxParts*m + 1, wantParts: MaxParts, wantPartSize: m + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, partSize := Plan(tt.size)
			assert.Equal(t, tt.wantParts, parts)
			assert.Equal(t, tt.wantPartSize, partSize)

			// Invariants hold for every planned size.
			assert.GreaterOrEqual(t, partSize, m)
			assert.LessOrEqual(t, parts, MaxParts)
			assert.GreaterOrEqual(t, int64(parts)*partSize, tt.size)
		})
	}
}

func TestPlanWithPartSize(t *testing.T) {
	// Preferred sizes below the service minimum are raised to it.
	parts, partSize := PlanWithPartSize(20*mib, 1*mib)
	assert.Equal(t, int64(MinPartSize), partSize)
	assert.Equal(t, 4, parts)

	// Larger preferred sizes are honored.
	parts, partSize = PlanWithPartSize(20*mib, 10*mib)
	assert.Equal(t, int64(10*mib), partSize)
	assert.Equal(t, 2, parts)
}

func TestExtractUploadID(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "well formed response",
			body: `<?xml version="1.0"?><InitiateMultipartUploadResult>` +
				`<Bucket>test</Bucket><Key>big.bin</Key>` +
				`<UploadId>VXBsb2FkIElEIGZvciBlbHZpbmcncyBteS1tb3ZpZS5tMnRz</UploadId>` +
				`</InitiateMultipartUploadResult>`,
			want: "VXBsb2FkIElEIGZvciBlbHZpbmcncyBteS1tb3ZpZS5tMnRz",
		},
		{
			name: "markers with no other structure",
			body: "garbage<UploadId>abc-123</UploadId>garbage",
			want: "abc-123",
		},
		{name: "missing start marker", body: "<NoId/>", wantErr: true},
		{name: "missing end marker", body: "<UploadId>abc", wantErr: true},
		{name: "empty id", body: "<UploadId></UploadId>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractUploadID([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The completion body lists parts in ascending part-number order even when
// parts are recorded out of order.
func TestSession_CompletionOrdering(t *testing.T) {
	sess := &session{numParts: 3, etags: make([]string, 3)}
	sess.record(3, `"etag-3"`)
	sess.record(1, `"etag-1"`)
	sess.record(2, `"etag-2"`)

	parts, err := sess.completedParts()
	require.NoError(t, err)
	require.Len(t, parts, 3)
	for i, p := range parts {
		assert.Equal(t, i+1, p.PartNumber)
		assert.Equal(t, fmt.Sprintf(`"etag-%d"`, i+1), p.ETag)
	}
}

func TestSession_CompletionGate(t *testing.T) {
	sess := &session{numParts: 2, etags: make([]string, 2)}
	sess.record(2, `"etag-2"`)

	_, err := sess.completedParts()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "part 1")
}

// End-to-end: 12 MB with a 5 MB minimum part size plans three parts
// (5+5+2 MB); the completion body lists all three tags in order.
func TestUploader_Upload(t *testing.T) {
	size := int64(12 * mib)
	source := bytes.NewReader(bytes.Repeat([]byte("k"), int(size)))

	var mu sync.Mutex
	partLengths := make(map[int]int64)
	var completionBody []byte

	api := &mockDoer{
		DoFunc: func(ctx context.Context, method, path string, hdr http.Header, body io.Reader, length int64) (*http.Response, error) {
			switch {
			case method == http.MethodPost && strings.HasSuffix(path, "?uploads"):
				return xmlResponse(http.StatusOK, "<UploadId>upload-1</UploadId>"), nil

			case method == http.MethodPut:
				var n int
				var id string
				_, err := fmt.Sscanf(path, "big.bin?partNumber=%d&uploadId=%s", &n, &id)
				require.NoError(t, err)
				assert.Equal(t, "upload-1", id)
				assert.NotEmpty(t, hdr.Get("Content-Md5"))

				mu.Lock()
				partLengths[n] = length
				mu.Unlock()
				return etagResponse(fmt.Sprintf(`"etag-%d"`, n)), nil

			case method == http.MethodPost && strings.Contains(path, "uploadId="):
				data, err := io.ReadAll(body)
				require.NoError(t, err)
				mu.Lock()
				completionBody = data
				mu.Unlock()
				return xmlResponse(http.StatusOK,
					"<CompleteMultipartUploadResult><ETag>&quot;final-etag&quot;</ETag></CompleteMultipartUploadResult>"), nil
			}
			t.Fatalf("unexpected request %s %s", method, path)
			return nil, nil
		},
	}

	u := NewUploader(api, nil)
	result, err := u.Upload(context.Background(), "big.bin", source, size,
		&knoxtypes.UploadConfig{Concurrency: 3}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Parts)
	assert.True(t, result.Multipart)
	assert.Equal(t, size, result.Size)
	assert.Equal(t, `"final-etag"`, result.ETag)

	assert.Equal(t, int64(5*mib), partLengths[1])
	assert.Equal(t, int64(5*mib), partLengths[2])
	assert.Equal(t, int64(2*mib), partLengths[3])

	want := `<CompleteMultipartUpload>` +
		`<Part><PartNumber>1</PartNumber><ETag>&#34;etag-1&#34;</ETag></Part>` +
		`<Part><PartNumber>2</PartNumber><ETag>&#34;etag-2&#34;</ETag></Part>` +
		`<Part><PartNumber>3</PartNumber><ETag>&#34;etag-3&#34;</ETag></Part>` +
		`</CompleteMultipartUpload>`
	assert.Equal(t, want, string(completionBody))
}

// A failed part fails the whole session and triggers a server-side abort;
// completion is never attempted.
func TestUploader_PartFailureFailsSession(t *testing.T) {
	size := int64(12 * mib)
	source := bytes.NewReader(make([]byte, size))

	var mu sync.Mutex
	var aborted bool
	var completed bool

	api := &mockDoer{
		DoFunc: func(ctx context.Context, method, path string, hdr http.Header, body io.Reader, length int64) (*http.Response, error) {
			switch {
			case method == http.MethodPost && strings.HasSuffix(path, "?uploads"):
				return xmlResponse(http.StatusOK, "<UploadId>upload-2</UploadId>"), nil

			case method == http.MethodPut:
				if strings.Contains(path, "partNumber=2") {
					return xmlResponse(http.StatusInternalServerError, "<Error/>"), nil
				}
				return etagResponse(`"ok"`), nil

			case method == http.MethodDelete:
				mu.Lock()
				aborted = true
				mu.Unlock()
				return xmlResponse(http.StatusNoContent, ""), nil

			case method == http.MethodPost:
				mu.Lock()
				completed = true
				mu.Unlock()
				return xmlResponse(http.StatusOK, ""), nil
			}
			return nil, nil
		},
	}

	u := NewUploader(api, nil)
	_, err := u.Upload(context.Background(), "big.bin", source, size,
		&knoxtypes.UploadConfig{}, time.Now())

	require.Error(t, err)
	assert.True(t, errors.IsPartUpload(err))
	assert.True(t, aborted, "failed session should be aborted server-side")
	assert.False(t, completed, "completion must not run with a missing part")
}

// The initiation POST fixes the assembled object's ACL: public-read by
// default, the configured ACL otherwise.
func TestUploader_InitiateACL(t *testing.T) {
	tests := []struct {
		name string
		acl  knoxtypes.ObjectACL
		want string
	}{
		{name: "defaults to public-read", acl: "", want: "public-read"},
		{name: "configured ACL wins", acl: knoxtypes.ACLPrivate, want: "private"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var initiateACL string
			api := &mockDoer{
				DoFunc: func(ctx context.Context, method, path string, hdr http.Header, body io.Reader, length int64) (*http.Response, error) {
					switch {
					case method == http.MethodPost && strings.HasSuffix(path, "?uploads"):
						initiateACL = hdr.Get("X-Amz-Acl")
						return xmlResponse(http.StatusOK, "<UploadId>upload-4</UploadId>"), nil
					case method == http.MethodPut:
						return etagResponse(`"ok"`), nil
					}
					return xmlResponse(http.StatusOK, "<ETag>&quot;done&quot;</ETag>"), nil
				},
			}

			u := NewUploader(api, nil)
			_, err := u.Upload(context.Background(), "big.bin", bytes.NewReader(make([]byte, 6*mib)),
				6*mib, &knoxtypes.UploadConfig{ACL: tt.acl}, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.want, initiateACL)
		})
	}
}

func TestUploader_InitiateFailure(t *testing.T) {
	api := &mockDoer{
		DoFunc: func(ctx context.Context, method, path string, hdr http.Header, body io.Reader, length int64) (*http.Response, error) {
			return xmlResponse(http.StatusForbidden, "<Error/>"), nil
		},
	}

	u := NewUploader(api, nil)
	_, err := u.Upload(context.Background(), "big.bin", bytes.NewReader(make([]byte, 6*mib)),
		6*mib, &knoxtypes.UploadConfig{}, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnexpectedStatus)
}

func TestUploader_CompletionFailure(t *testing.T) {
	size := int64(6 * mib)

	api := &mockDoer{
		DoFunc: func(ctx context.Context, method, path string, hdr http.Header, body io.Reader, length int64) (*http.Response, error) {
			switch {
			case method == http.MethodPost && strings.HasSuffix(path, "?uploads"):
				return xmlResponse(http.StatusOK, "<UploadId>upload-3</UploadId>"), nil
			case method == http.MethodPut:
				return etagResponse(`"ok"`), nil
			case method == http.MethodPost:
				return xmlResponse(http.StatusInternalServerError, "<Error/>"), nil
			}
			return xmlResponse(http.StatusNoContent, ""), nil
		},
	}

	u := NewUploader(api, nil)
	_, err := u.Upload(context.Background(), "big.bin", bytes.NewReader(make([]byte, size)),
		size, &knoxtypes.UploadConfig{}, time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsCompletion(err))
}

func TestExtractCompletionETag(t *testing.T) {
	body := `<CompleteMultipartUploadResult><Location>x</Location>` +
		`<ETag>&quot;3858f62230ac3c915f300c664312c11f-3&quot;</ETag></CompleteMultipartUploadResult>`
	assert.Equal(t, `"3858f62230ac3c915f300c664312c11f-3"`, extractCompletionETag([]byte(body)))
	assert.Empty(t, extractCompletionETag([]byte("<NoTag/>")))
}
