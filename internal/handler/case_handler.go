package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-clearance-api/internal/dto"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/internal/service"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
	"github.com/noah-isme/campus-clearance-api/pkg/response"
)

// CaseHandler exposes the per-case review endpoints: detail, queue, submit,
// decide, evidence, and history.
type CaseHandler struct {
	reviews     *service.ReviewService
	submissions *service.SubmissionService
	metrics     *service.MetricsService
}

// NewCaseHandler constructs a case handler.
func NewCaseHandler(reviews *service.ReviewService, submissions *service.SubmissionService, metrics *service.MetricsService) *CaseHandler {
	return &CaseHandler{reviews: reviews, submissions: submissions, metrics: metrics}
}

// Get godoc
// @Summary Get a review case with its checklist
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /clearance/cases/{id} [get]
func (h *CaseHandler) Get(c *gin.Context) {
	detail, err := h.reviews.GetCase(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Queue godoc
// @Summary Review queue for the caller's unit
// @Tags Cases
// @Produce json
// @Param status query string false "Comma separated case statuses"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /clearance/cases/queue [get]
func (h *CaseHandler) Queue(c *gin.Context) {
	var query dto.CaseQueue
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			query.Status = append(query.Status, models.CaseStatus(strings.ToUpper(raw)))
		}
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	queue, err := h.reviews.Queue(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, queue, nil)
}

// Submit godoc
// @Summary Submit a case for review
// @Description Moves a ready case into the review queue, guarded by the caller's expected status
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.SubmitCaseRequest true "Expected status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /clearance/cases/{id}/submit [post]
func (h *CaseHandler) Submit(c *gin.Context) {
	var req dto.SubmitCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	reviewCase, err := h.reviews.Submit(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		h.recordConflict(err)
		response.Error(c, err)
		return
	}
	h.metrics.RecordCaseTransition(string(reviewCase.Status))
	response.JSON(c, http.StatusOK, reviewCase, nil)
}

// Decide godoc
// @Summary Decide a submitted case
// @Description Approve, reject, or hold a submitted case. Rejections and holds require remarks.
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.DecideCaseRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clearance/cases/{id}/decision [post]
func (h *CaseHandler) Decide(c *gin.Context) {
	var req dto.DecideCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	reviewCase, err := h.reviews.Decide(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		h.recordConflict(err)
		response.Error(c, err)
		return
	}
	h.metrics.RecordCaseTransition(string(reviewCase.Status))
	response.JSON(c, http.StatusOK, reviewCase, nil)
}

// History godoc
// @Summary Case status history
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /clearance/cases/{id}/history [get]
func (h *CaseHandler) History(c *gin.Context) {
	entries, err := h.reviews.CaseHistory(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// UploadEvidence godoc
// @Summary Upload requirement evidence
// @Description Stores the uploaded file against the requirement; re-uploads replace the earlier file
// @Tags Cases
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Case ID"
// @Param requirementId path string true "Requirement ID"
// @Param file formData file true "Evidence file"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /clearance/cases/{id}/requirements/{requirementId}/evidence [put]
func (h *CaseHandler) UploadEvidence(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "an evidence file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file"))
		return
	}
	defer file.Close()

	resp, err := h.submissions.UpsertEvidence(
		c.Request.Context(),
		c.Param("id"),
		c.Param("requirementId"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
		claimsFromContext(c),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// ClearEvidence godoc
// @Summary Clear requirement evidence
// @Description Drops the submission back to pending; the stored file is retained
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Param requirementId path string true "Requirement ID"
// @Success 200 {object} response.Envelope
// @Router /clearance/cases/{id}/requirements/{requirementId}/evidence [delete]
func (h *CaseHandler) ClearEvidence(c *gin.Context) {
	submission, err := h.submissions.ClearEvidence(c.Request.Context(), c.Param("id"), c.Param("requirementId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Acknowledge godoc
// @Summary Acknowledge a requirement
// @Description Toggles an acknowledgment-only requirement
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param requirementId path string true "Requirement ID"
// @Param payload body dto.AcknowledgeRequirementRequest true "Acknowledgment"
// @Success 200 {object} response.Envelope
// @Router /clearance/cases/{id}/requirements/{requirementId}/acknowledgment [put]
func (h *CaseHandler) Acknowledge(c *gin.Context) {
	var req dto.AcknowledgeRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.submissions.Acknowledge(c.Request.Context(), c.Param("id"), c.Param("requirementId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

func (h *CaseHandler) recordConflict(err error) {
	if appErrors.FromError(err).Code == appErrors.ErrStaleState.Code {
		h.metrics.RecordStaleConflict()
	}
}

// EvidenceURL godoc
// @Summary Signed evidence download link
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Param requirementId path string true "Requirement ID"
// @Success 200 {object} response.Envelope
// @Router /clearance/cases/{id}/requirements/{requirementId}/evidence [get]
func (h *CaseHandler) EvidenceURL(c *gin.Context) {
	resp, err := h.submissions.EvidenceURL(c.Request.Context(), c.Param("id"), c.Param("requirementId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
