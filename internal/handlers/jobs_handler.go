package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JobRunner exposes the scheduled jobs to admins
type JobRunner interface {
	GetJobStatus() map[string]interface{}
	RunReconciliationNow()
	RunCleanupNow()
}

// JobsHandler lets admins inspect and trigger background jobs
type JobsHandler struct {
	jobs JobRunner
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(jobs JobRunner) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// Status handles GET /api/v1/admin/jobs
func (h *JobsHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.GetJobStatus())
}

// Reconcile handles POST /api/v1/admin/jobs/reconcile. The sweep runs synchronously.
func (h *JobsHandler) Reconcile(c *gin.Context) {
	h.jobs.RunReconciliationNow()
	c.JSON(http.StatusOK, gin.H{"success": true, "job": "reconciliation"})
}

// Cleanup handles POST /api/v1/admin/jobs/cleanup
func (h *JobsHandler) Cleanup(c *gin.Context) {
	h.jobs.RunCleanupNow()
	c.JSON(http.StatusOK, gin.H{"success": true, "job": "cleanup"})
}
