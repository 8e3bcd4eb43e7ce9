package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobs struct {
	reconciled int
	cleaned    int
}

func (f *fakeJobs) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{"running": true, "job_count": 2}
}

func (f *fakeJobs) RunReconciliationNow() { f.reconciled++ }

func (f *fakeJobs) RunCleanupNow() { f.cleaned++ }

func TestJobsHandler(t *testing.T) {
	jobs := &fakeJobs{}
	h := NewJobsHandler(jobs)

	router := gin.New()
	router.GET("/jobs", h.Status)
	router.POST("/jobs/reconcile", h.Reconcile)
	router.POST("/jobs/cleanup", h.Cleanup)

	w := doJSON(t, router, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"running": true, "job_count": 2}`, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/jobs/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, jobs.reconciled)

	w = doJSON(t, router, http.MethodPost, "/jobs/cleanup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, jobs.cleaned)
}
