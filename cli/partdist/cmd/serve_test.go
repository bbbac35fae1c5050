package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	testhttp "github.com/alphabill-org/partdist/internal/testutils/http"
	testlogr "github.com/alphabill-org/partdist/internal/testutils/logger"
)

func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServe(t *testing.T) {
	homeDir := t.TempDir()
	addr := freeAddress(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := New(testlogr.LoggerBuilder(t))
	app.baseCmd.SetArgs([]string{"--home", homeDir, "--metrics", "prometheus", "serve", "--address", addr})
	done := make(chan error, 1)
	go func() { done <- app.Execute(ctx) }()

	baseURL := "http://" + addr
	require.Eventually(t, func() bool {
		var ids []string
		resp := testhttp.DoGet(t, baseURL+"/api/v1/partitions", &ids)
		return resp != nil && resp.StatusCode == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)

	appendReq := map[string]any{"nodes": []map[string]any{{"consistentId": "a", "peer": true}}}
	resp := testhttp.DoPost(t, baseURL+"/api/v1/partitions/1/2/assignments", appendReq, &struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// verification job is executed by the worker
	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	resp = testhttp.DoPost(t, baseURL+"/api/v1/jobs/verify-chains", nil, &job)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Eventually(t, func() bool {
		resp := testhttp.DoGet(t, fmt.Sprintf("%s/api/v1/jobs/%s", baseURL, job.ID), &job)
		return resp != nil && job.Status == "completed"
	}, 3*time.Second, 50*time.Millisecond)

	// prometheus metrics are exposed
	resp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Contains(t, string(body), "pd_chain_ops")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve didn't exit after ctx was canceled")
	}
}

func TestServe_InvalidFlags(t *testing.T) {
	_, err := execCommand(t, t.TempDir(), "serve", "--job-retention", "0s")
	require.EqualError(t, err, "job retention must be positive, got 0s")

	_, err = execCommand(t, t.TempDir(), "serve", "--max-job-queue", "0")
	require.ErrorContains(t, err, "queue max size must be greater than zero, got 0")
}
