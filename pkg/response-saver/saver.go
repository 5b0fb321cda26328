// Package responsesaver records a handler's response in memory.
package responsesaver

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

// ResponseSaver is an http.ResponseWriter that saves the response to a buffer
// instead of sending it, so it can be inspected before reaching the client.
type ResponseSaver struct {
	b            *bytes.Buffer
	header       http.Header
	status       int
	wroteHeaders bool
}

// NewResponseSaver returns a new ResponseSaver.
func NewResponseSaver() *ResponseSaver {
	return &ResponseSaver{
		b:      &bytes.Buffer{},
		header: http.Header{},
	}
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Header() http.Header {
	return t.header
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) WriteHeader(statusCode int) {
	if t.wroteHeaders {
		return
	}
	t.wroteHeaders = true
	t.status = statusCode
	// headers set after this point are not part of the response
	t.header = t.header.Clone()
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Write(b []byte) (int, error) {
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	return t.b.Write(b)
}

// StatusCode returns the status code of the response.
// It is 200 if the handler wrote nothing at all.
func (t *ResponseSaver) StatusCode() int {
	if !t.wroteHeaders {
		return http.StatusOK
	}
	return t.status
}

// Body returns the bytes written so far.
func (t *ResponseSaver) Body() []byte {
	return t.b.Bytes()
}

// Response returns the recorded response as a fully read http.Response.
func (t *ResponseSaver) Response(r *http.Request) *http.Response {
	body := t.Body()
	header := t.header.Clone()
	if header == nil {
		header = http.Header{}
	}
	// a HEAD response has no body to measure
	headRequest := r != nil && r.Method == http.MethodHead
	if !headRequest && header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}
	return &http.Response{
		Status:        strconv.Itoa(t.StatusCode()) + " " + http.StatusText(t.StatusCode()),
		StatusCode:    t.StatusCode(),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}
