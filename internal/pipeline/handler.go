package pipeline

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"knowledge-backend/internal/jobs"
	"knowledge-backend/internal/shared/server/middleware"
	"knowledge-backend/internal/shared/server/respond"
	"knowledge-backend/internal/usage"
	"knowledge-backend/internal/workflow"
)

// MaxUploadBytes caps the accepted PDF size.
const MaxUploadBytes = 50 << 20

// Handler exposes pipeline endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches pipeline routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/process", h.startProcessing)
	rg.GET("/jobs/:id", h.getJob)
	rg.GET("/jobs/:id/workflow", h.getWorkflow)
	rg.POST("/jobs/:id/retry", h.retryJob)
}

type startResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

func (h *Handler) startProcessing(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "multipart field 'file' is required", nil)
		return
	}
	defer file.Close()

	job, err := h.Svc.StartProcessing(c.Request.Context(), userID, header.Filename, file)
	if err != nil {
		h.writeStartError(c, err)
		return
	}
	c.Set("jobId", job.ID)
	respond.JSON(c, http.StatusAccepted, startResponse{JobID: job.ID, Status: job.Status})
}

func (h *Handler) writeStartError(c *gin.Context, err error) {
	var authErr *AuthError
	var validationErr *ValidationError
	switch {
	case errors.As(err, &authErr):
		respond.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	case errors.As(err, &validationErr):
		respond.Error(c, http.StatusBadRequest, "INVALID_FILE", sanitizeError(err), nil)
	case errors.Is(err, usage.ErrLimitReached):
		respond.Error(c, http.StatusTooManyRequests, "LIMIT_REACHED", "processing limit reached for the current period", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to start processing", nil)
	}
}

type jobResponse struct {
	Job      jobs.Job      `json:"job"`
	Workflow *workflow.Job `json:"workflow,omitempty"`
}

func (h *Handler) getJob(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Set("jobId", c.Param("id"))
	job, snap, err := h.Svc.GetJob(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "NOT_FOUND", "job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to load job", nil)
		return
	}
	respond.OK(c, jobResponse{Job: job, Workflow: snap})
}

func (h *Handler) retryJob(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	jobID := c.Param("id")
	c.Set("jobId", jobID)
	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	if err := h.Svc.RetryJob(ctx, userID, jobID); err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "NOT_FOUND", "job not found", nil)
		case err.Error() == "job is still processing":
			respond.Error(c, http.StatusConflict, "CONFLICT", "job is still processing", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to retry job", nil)
		}
		return
	}
	c.Set("statusTransition", jobs.StatusFailed+"->"+jobs.StatusProcessing)
	respond.JSON(c, http.StatusAccepted, startResponse{JobID: jobID, Status: jobs.StatusProcessing})
}

func (h *Handler) getWorkflow(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	jobID := c.Param("id")
	c.Set("jobId", jobID)
	// ownership check against the persisted record before exposing the
	// in-memory mirror
	if _, err := h.Svc.Jobs.GetByID(c.Request.Context(), userID, jobID); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "NOT_FOUND", "job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to load job", nil)
		return
	}
	snap, ok := h.Svc.Workflow.GetJob(jobID)
	if !ok {
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "workflow state no longer available", nil)
		return
	}
	respond.OK(c, snap)
}
