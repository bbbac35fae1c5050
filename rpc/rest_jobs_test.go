package rpc

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/partdist/compute"
	testobserve "github.com/alphabill-org/partdist/internal/testutils/observability"
)

func newJobServer(t *testing.T, maxQueue int) (*testServer, *compute.Registry) {
	t.Helper()
	obs := testobserve.Default(t)
	jobs, err := compute.NewRegistry(maxQueue, obs)
	require.NoError(t, err)
	srv := NewRESTServer("", MaxBodySize, obs, obs.Logger(), JobEndpoints(jobs, obs.Logger()))
	return &testServer{handler: srv.Handler}, jobs
}

func TestJobEndpoints_Submit(t *testing.T) {
	ts, jobs := newJobServer(t, 1)

	rec := ts.do(t, http.MethodPost, "/api/v1/jobs/verify-chains", []byte(`{"priority":3}`), nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decodeBody[jobResponse](t, rec)
	require.Equal(t, JobVerifyChains, resp.Name)
	require.Equal(t, "queued", resp.Status)
	require.Equal(t, 3, resp.Priority)
	require.Nil(t, resp.StartedAt)

	state, err := jobs.Status(context.Background(), resp.ID)
	require.NoError(t, err)
	require.True(t, state.Found)

	// queue is full, body is optional
	rec = ts.do(t, http.MethodPost, "/api/v1/jobs/verify-chains", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, decodeBody[errorResponse](t, rec).Message, compute.ErrQueueFull.Error())

	rec = ts.do(t, http.MethodPost, "/api/v1/jobs/verify-chains", []byte(`{"priority":"high"}`), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobEndpoints_Status(t *testing.T) {
	ts, jobs := newJobServer(t, 5)
	ctx := context.Background()

	rec := ts.do(t, http.MethodGet, "/api/v1/jobs/foo", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeBody[errorResponse](t, rec).Message, "invalid job id")

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	id, err := jobs.Submit(ctx, JobVerifyChains, 0, nil)
	require.NoError(t, err)
	job, err := jobs.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, compute.Applied, jobs.Finish(ctx, job.ID, errors.New("chain 1_1 is broken")))

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs/"+id.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[jobResponse](t, rec)
	require.Equal(t, id, resp.ID)
	require.Equal(t, "failed", resp.Status)
	require.Equal(t, "chain 1_1 is broken", resp.Error)
	require.NotNil(t, resp.StartedAt)
	require.NotNil(t, resp.FinishedAt)
}

func TestJobEndpoints_CancelAndPriority(t *testing.T) {
	ts, jobs := newJobServer(t, 5)
	ctx := context.Background()

	unknown := uuid.NewString()
	rec := ts.do(t, http.MethodDelete, "/api/v1/jobs/"+unknown, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodPut, "/api/v1/jobs/"+unknown+"/priority", []byte(`{"priority":1}`), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	id, err := jobs.Submit(ctx, JobVerifyChains, 0, nil)
	require.NoError(t, err)

	rec = ts.do(t, http.MethodPut, "/api/v1/jobs/"+id.String()+"/priority", []byte(`{"priority":7}`), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	state, err := jobs.Status(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 7, state.Priority)

	rec = ts.do(t, http.MethodDelete, "/api/v1/jobs/"+id.String(), nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// job is already canceled
	rec = ts.do(t, http.MethodDelete, "/api/v1/jobs/"+id.String(), nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	rec = ts.do(t, http.MethodPut, "/api/v1/jobs/"+id.String()+"/priority", []byte(`{"priority":1}`), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}
