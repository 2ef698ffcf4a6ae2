// Package testutil holds helpers shared by handler and integration tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solsignal/pkg/platform/httputil"
)

func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRequestWithBody builds a JSON request from a raw body, which may be
// deliberately malformed.
func NewRequestWithBody(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest serves req on handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse decodes the JSON response body into a T.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result), "decode response: %s", rr.Body.String())
	return &result
}

// ErrorBody decodes an httputil.ErrorResponse.
func ErrorBody(t *testing.T, rr *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	return *UnmarshalResponse[httputil.ErrorResponse](t, rr)
}

func AssertStatusOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())
}

// AssertStatusAndError checks the status and the error code of an error
// response and returns the decoded body for further assertions.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) httputil.ErrorResponse {
	t.Helper()
	assert.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
	body := ErrorBody(t, rr)
	assert.Equal(t, code, body.Error)
	return body
}
