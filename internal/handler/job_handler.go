// internal/handler/job_handler.go
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"escpos-service/internal/model"
	"escpos-service/internal/repository"
	"escpos-service/internal/service"
	"escpos-service/internal/utils"
	"escpos-service/pkg/escpos"
)

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobService     *service.JobService
	maxImportBytes int64
	logger         *utils.ServiceLogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobService *service.JobService, maxImportBytes int64, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobService:     jobService,
		maxImportBytes: maxImportBytes,
		logger:         utils.NewServiceLogger(logger, "job-handler"),
	}
}

// RegisterRoutes registers job-related routes
func (h *JobHandler) RegisterRoutes(router *gin.RouterGroup) {
	jobs := router.Group("/jobs")
	{
		jobs.GET("", h.ListJobs)
		jobs.POST("", h.ImportJob)
		jobs.DELETE("", h.ClearJobs)
		jobs.POST("/reparse", h.ReparseJobs)

		jobs.GET("/:id", h.GetJob)
		jobs.DELETE("/:id", h.DeleteJob)
		jobs.POST("/:id/reparse", h.ReparseJob)
		jobs.GET("/:id/commands", h.GetCommands)
		jobs.GET("/:id/commands/:index/barcode", h.GetBarcode)
		jobs.GET("/:id/listing", h.GetListing)
		jobs.GET("/:id/hex", h.GetHexDump)
		jobs.GET("/:id/raw", h.GetRaw)
	}

	router.GET("/capture/status", h.GetCaptureStatus)
	router.GET("/capture/serial-ports", h.ListSerialPorts)
}

// ListJobs lists stored jobs
// @Summary List jobs
// @Description List captured jobs, oldest first
// @Tags Jobs
// @Produce json
// @Param source_type query string false "TCP, SERIAL or IMPORT"
// @Param since query string false "RFC3339 receive time lower bound"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} utils.APIResponse{data=[]model.PrintJob}
// @Failure 400 {object} utils.APIResponse
// @Router /api/v1/jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	filter := &model.JobFilter{}

	if sourceType := c.Query("source_type"); sourceType != "" {
		st := model.SourceType(strings.ToUpper(sourceType))
		filter.SourceType = &st
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid since parameter", err)
			return
		}
		filter.Since = &t
	}

	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid limit parameter", err)
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid offset parameter", err)
		return
	}

	jobs, total, err := h.jobService.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list jobs", err)
		return
	}

	utils.PageResponse(c, "Jobs retrieved successfully", jobs, utils.PageInfo{
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// ImportJob stores a raw ESC/POS file as a job
// @Summary Import job
// @Description Submit raw printer bytes as the request body, or as a multipart "file" field
// @Tags Jobs
// @Accept application/octet-stream
// @Produce json
// @Param label query string false "Job label"
// @Success 201 {object} utils.APIResponse{data=model.PrintJob}
// @Failure 400 {object} utils.APIResponse
// @Failure 413 {object} utils.APIResponse
// @Router /api/v1/jobs [post]
func (h *JobHandler) ImportJob(c *gin.Context) {
	label := c.Query("label")
	payload, err := h.readImport(c, &label)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Job file too large", err)
			return
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to read job file", err)
		return
	}

	job, err := h.jobService.Import(c.Request.Context(), label, payload)
	if err != nil {
		h.respondError(c, "Failed to import job", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Job imported successfully", job)
}

func (h *JobHandler) readImport(c *gin.Context, label *string) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImportBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, err
		}
		if *label == "" {
			*label = header.Filename
		}
		file, err := header.Open()
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	return io.ReadAll(c.Request.Body)
}

// GetJob returns one job
// @Summary Get job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} utils.APIResponse{data=model.PrintJob}
// @Failure 404 {object} utils.APIResponse
// @Router /api/v1/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.jobService.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Failed to get job", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Job retrieved successfully", job)
}

// DeleteJob removes one job
// @Summary Delete job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Router /api/v1/jobs/{id} [delete]
func (h *JobHandler) DeleteJob(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	if err := h.jobService.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, "Failed to delete job", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Job deleted successfully", nil)
}

// ClearJobs removes every job
// @Summary Clear jobs
// @Tags Jobs
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /api/v1/jobs [delete]
func (h *JobHandler) ClearJobs(c *gin.Context) {
	deleted, err := h.jobService.Clear(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to clear jobs", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Jobs cleared successfully", gin.H{"deleted": deleted})
}

// ReparseJobs decodes every job again with another code page
// @Summary Reparse jobs
// @Description Decode all stored jobs with the given code page, which also applies to new jobs
// @Tags Jobs
// @Produce json
// @Param codepage query string true "utf8, cp437, cp850 or windows1252"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Router /api/v1/jobs/reparse [post]
func (h *JobHandler) ReparseJobs(c *gin.Context) {
	cp, ok := h.codePage(c)
	if !ok {
		return
	}

	updated, err := h.jobService.Reparse(c.Request.Context(), cp)
	if err != nil {
		h.respondError(c, "Failed to reparse jobs", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Jobs reparsed successfully", gin.H{
		"code_page": cp.String(),
		"jobs":      updated,
	})
}

// ReparseJob decodes one job again with another code page
// @Summary Reparse job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Param codepage query string true "utf8, cp437, cp850 or windows1252"
// @Success 200 {object} utils.APIResponse{data=model.PrintJob}
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Router /api/v1/jobs/{id}/reparse [post]
func (h *JobHandler) ReparseJob(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}
	cp, ok := h.codePage(c)
	if !ok {
		return
	}

	job, err := h.jobService.ReparseJob(c.Request.Context(), id, cp)
	if err != nil {
		h.respondError(c, "Failed to reparse job", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Job reparsed successfully", job)
}

// GetCommands returns the decoded commands of a job
// @Summary Decoded commands
// @Description Decode a job into commands with the printer state at each
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Param merge query bool false "Join adjacent text runs of the same line style"
// @Success 200 {object} utils.APIResponse{data=[]model.CommandView}
// @Failure 404 {object} utils.APIResponse
// @Router /api/v1/jobs/{id}/commands [get]
func (h *JobHandler) GetCommands(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	merge, _ := strconv.ParseBool(c.DefaultQuery("merge", "false"))
	commands, err := h.jobService.Commands(c.Request.Context(), id, merge)
	if err != nil {
		h.respondError(c, "Failed to decode job", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Commands decoded successfully", commands)
}

// GetBarcode encodes one barcode command into module runs
// @Summary Barcode modules
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Param index path int true "Command index"
// @Success 200 {object} utils.APIResponse{data=model.BarcodeView}
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Router /api/v1/jobs/{id}/commands/{index}/barcode [get]
func (h *JobHandler) GetBarcode(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid command index", err)
		return
	}

	view, err := h.jobService.Barcode(c.Request.Context(), id, index)
	if err != nil {
		h.respondError(c, "Failed to encode barcode", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Barcode encoded successfully", view)
}

// GetListing returns the debug listing of a job
// @Summary Command listing
// @Description One line per decoded command. format=text returns plain text.
// @Tags Jobs
// @Produce json,plain
// @Param id path string true "Job ID"
// @Param format query string false "json or text"
// @Success 200 {object} utils.APIResponse{data=[]string}
// @Failure 404 {object} utils.APIResponse
// @Router /api/v1/jobs/{id}/listing [get]
func (h *JobHandler) GetListing(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	lines, err := h.jobService.Listing(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Failed to decode job", err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, "%s", strings.Join(lines, "\n")+"\n")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Listing generated successfully", lines)
}

// GetHexDump returns the job bytes as a hex dump
// @Summary Hex dump
// @Tags Jobs
// @Produce plain
// @Param id path string true "Job ID"
// @Success 200 {string} string
// @Failure 404 {object} utils.APIResponse
// @Router /api/v1/jobs/{id}/hex [get]
func (h *JobHandler) GetHexDump(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	dump, err := h.jobService.HexDump(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Failed to read job", err)
		return
	}

	c.String(http.StatusOK, "%s", dump+"\n")
}

// GetRaw returns the captured job bytes
// @Summary Raw job bytes
// @Tags Jobs
// @Produce octet-stream
// @Param id path string true "Job ID"
// @Success 200 {file} binary
// @Failure 404 {object} utils.APIResponse
// @Router /api/v1/jobs/{id}/raw [get]
func (h *JobHandler) GetRaw(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	payload, err := h.jobService.Raw(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Failed to read job", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+id.String()+`.bin"`)
	c.Data(http.StatusOK, "application/octet-stream", payload)
}

// GetCaptureStatus reports the capture sources
// @Summary Capture status
// @Tags Capture
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]service.CaptureStatus}
// @Router /api/v1/capture/status [get]
func (h *JobHandler) GetCaptureStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Capture status retrieved successfully", gin.H{
		"code_page": h.jobService.CodePage().String(),
		"sources":   h.jobService.CaptureStatus(),
		"stats":     h.jobService.Stats(),
	})
}

// ListSerialPorts lists host serial ports
// @Summary Serial ports
// @Description List serial ports available for capture
// @Tags Capture
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]capture.SerialPortInfo}
// @Failure 500 {object} utils.APIResponse
// @Router /api/v1/capture/serial-ports [get]
func (h *JobHandler) ListSerialPorts(c *gin.Context) {
	ports, err := h.jobService.SerialPorts()
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list serial ports", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Serial ports retrieved successfully", ports)
}

func (h *JobHandler) jobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid job ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *JobHandler) codePage(c *gin.Context) (escpos.CodePage, bool) {
	name, ok := c.GetQuery("codepage")
	if !ok || strings.TrimSpace(name) == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Code page is required", nil)
		return 0, false
	}
	cp, err := escpos.ParseCodePage(name)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid code page", err)
		return 0, false
	}
	return cp, true
}

// respondError maps service errors to HTTP status codes
func (h *JobHandler) respondError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Job not found", err)
	case errors.Is(err, service.ErrCommandIndex), errors.Is(err, service.ErrUnsupportedBarcode):
		utils.ErrorResponse(c, http.StatusNotFound, message, err)
	case errors.Is(err, service.ErrNotBarcode), errors.Is(err, service.ErrEmptyPayload):
		utils.ErrorResponse(c, http.StatusBadRequest, message, err)
	default:
		h.logger.Error(message, zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, message, err)
	}
}

func queryInt(c *gin.Context, name string) (int, error) {
	value := c.Query(name)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New(name + " must not be negative")
	}
	return n, nil
}
