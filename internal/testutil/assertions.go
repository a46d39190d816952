package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ErrorBody matches the JSON body of a rejected form submission
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
	Form   map[string]string `json:"form"`
}

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertJSONResponse decodes JSON response into v and verifies success
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// AssertErrorResponse verifies a plain-text error response
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	assert.Contains(t, string(body), expectedMessage, "error message mismatch")
}

// AssertFormError verifies a JSON form rejection and returns its body
func AssertFormError(t *testing.T, resp *http.Response, expectedStatus int) ErrorBody {
	t.Helper()

	require.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	var body ErrorBody
	AssertJSONResponse(t, resp, &body)
	assert.NotEmpty(t, body.Error, "error message missing")
	assert.NotContains(t, body.Form, "password", "password must never be echoed")

	return body
}

// AssertNoSessionCookie verifies resp did not set the named cookie
func AssertNoSessionCookie(t *testing.T, resp *http.Response, name string) {
	t.Helper()
	assert.Nil(t, SessionCookie(resp, name), "unexpected %s cookie", name)
}
