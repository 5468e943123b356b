// Package testutil provides test helpers for exercising the client
// against a scripted HTTP transport.
package testutil

import (
	"bytes"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
)

// RecordedRequest captures one request seen by a RecordingTransport,
// with the body already drained so handlers and assertions can both
// inspect it.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// RecordingTransport is an http.RoundTripper that records every request
// and answers from a scripted handler. It is safe for concurrent use, so
// multipart part uploads can run against it in parallel.
type RecordingTransport struct {
	// Handler produces the response for a recorded request. When nil,
	// every request gets a 200 with an empty body.
	Handler func(req RecordedRequest) *http.Response

	mu       sync.Mutex
	requests []RecordedRequest
}

// RoundTrip implements http.RoundTripper.
func (t *RecordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
	}

	rec := RecordedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Header: req.Header.Clone(),
		Body:   body,
	}

	t.mu.Lock()
	t.requests = append(t.requests, rec)
	t.mu.Unlock()

	if t.Handler == nil {
		return Response(http.StatusOK, nil, ""), nil
	}
	return t.Handler(rec), nil
}

// Requests returns a copy of every request recorded so far.
func (t *RecordingTransport) Requests() []RecordedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RecordedRequest, len(t.requests))
	copy(out, t.requests)
	return out
}

// Find returns the recorded requests whose query contains the given
// substring, preserving arrival order.
func (t *RecordingTransport) Find(querySubstring string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range t.Requests() {
		if querySubstring == "" || strings.Contains(r.Query, querySubstring) {
			out = append(out, r)
		}
	}
	return out
}

// Client returns an http.Client backed by the transport.
func (t *RecordingTransport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Response builds an *http.Response with the given status, body, and an
// optional ETag header.
func Response(status int, body []byte, etag string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
	if etag != "" {
		resp.Header.Set("ETag", etag)
	}
	return resp
}

// GenerateRandomData returns size bytes from a seeded source, so test
// payloads are reproducible.
func GenerateRandomData(seed int64, size int) []byte {
	r := rand.New(rand.NewSource(seed))
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(r.Intn(256))
	}
	return data
}
