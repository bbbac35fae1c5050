package testhttp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

/*
DoGet sends GET request to "url" and decodes JSON response into "response".
Returns nil when the request fails, allows to use it for polling until
the server becomes available.
*/
func DoGet(t testing.TB, url string, response any) *http.Response {
	t.Helper()
	httpRes, err := http.Get(url) // #nosec G107
	if err != nil {
		t.Logf("GET %s: %v", url, err)
		return nil
	}
	defer func() { _ = httpRes.Body.Close() }()
	resBytes, err := io.ReadAll(httpRes.Body)
	require.NoError(t, err)
	t.Logf("GET %s response: %s", url, resBytes)
	if response != nil {
		require.NoError(t, json.NewDecoder(bytes.NewReader(resBytes)).Decode(response))
	}
	return httpRes
}

// DoPost sends "req" as JSON body to "url" and decodes JSON response into "res".
func DoPost(t testing.TB, url string, req any, res any) *http.Response {
	t.Helper()
	var body io.Reader = http.NoBody
	if req != nil {
		reqBodyBytes, err := json.Marshal(req)
		require.NoError(t, err)
		body = bytes.NewReader(reqBodyBytes)
	}
	httpRes, err := http.Post(url, "application/json", body) // #nosec G107
	require.NoError(t, err)
	defer func() { _ = httpRes.Body.Close() }()
	resBytes, err := io.ReadAll(httpRes.Body)
	require.NoError(t, err)
	t.Logf("POST %s response: %s", url, resBytes)
	if res != nil {
		require.NoError(t, json.NewDecoder(bytes.NewReader(resBytes)).Decode(res))
	}
	return httpRes
}
