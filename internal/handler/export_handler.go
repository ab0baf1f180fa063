package handler

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
	"github.com/noah-isme/sma-adp-api/internal/repository"
	"github.com/noah-isme/sma-adp-api/internal/service"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
	"github.com/noah-isme/sma-adp-api/pkg/jobs"
	"github.com/noah-isme/sma-adp-api/pkg/response"
)

const exportJobType = "export_generate"

// ExportHandler enqueues assignment exports and serves their signed downloads.
type ExportHandler struct {
	jobs    *repository.ExportJobRepository
	queue   *jobs.Queue
	service *service.ExportService
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(jobRepo *repository.ExportJobRepository, queue *jobs.Queue, svc *service.ExportService) *ExportHandler {
	return &ExportHandler{jobs: jobRepo, queue: queue, service: svc}
}

// Create godoc
// @Summary Request an assignment export
// @Description Enqueues an asynchronous csv, pdf, or ical rendering of the caller's assignments for a date range
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.CreateExportJobRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateExportJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	switch req.Format {
	case models.ExportFormatCSV, models.ExportFormatPDF, models.ExportFormatICal:
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be one of csv, pdf, ical"))
		return
	}

	job := &models.ExportJob{
		UserID:    claims.UserID,
		Format:    req.Format,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := h.jobs.Create(c.Request.Context(), job); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.queue.Enqueue(jobs.Job{ID: job.ID, Type: exportJobType, Payload: job.ID}); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job"))
		return
	}

	response.JSON(c, http.StatusAccepted, job, nil)
}

// List godoc
// @Summary List recent exports
// @Description Returns the caller's most recent export jobs
// @Tags Exports
// @Produce json
// @Param limit query int false "Maximum results (default 20, max 100)"
// @Success 200 {object} response.Envelope
// @Router /exports [get]
func (h *ExportHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.jobs.ListByUser(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Download godoc
// @Summary Download an export
// @Description Streams the rendered file referenced by a signed download token
// @Tags Exports
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Param("token")
	_, relPath, _, err := h.service.ParseToken(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "download link invalid or expired"))
		return
	}

	file, err := h.service.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file not found"))
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", "attachment")
	c.FileAttachment(file.Name(), filepath.Base(file.Name()))
}
