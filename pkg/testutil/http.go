// Package testutil provides common helpers for handler and integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Envelope mirrors the service's response shape.
type Envelope struct {
	StatusCode    int             `json:"statusCode"`
	StatusMessage string          `json:"statusMessage"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// NewJSONRequest creates an HTTP request with a JSON-marshaled body.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRequest creates a simple HTTP request without a body.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// ReadEnvelope parses the response body into the service envelope.
func ReadEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "failed to unmarshal response envelope")
	return env
}

// ReadData unmarshals the envelope's data field into T.
func ReadData[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	env := ReadEnvelope(t, rr)
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), "failed to unmarshal envelope data")
	return &out
}

// AssertStatus asserts the HTTP status code and the echoed envelope code.
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code")
	assert.Equal(t, expected, ReadEnvelope(t, rr).StatusCode, "envelope statusCode disagrees with HTTP status")
}

// AssertErrorMessage asserts a failed response carries the expected message.
func AssertErrorMessage(t *testing.T, rr *httptest.ResponseRecorder, expected string) {
	t.Helper()
	assert.Equal(t, expected, ReadEnvelope(t, rr).StatusMessage, "unexpected error message")
}
