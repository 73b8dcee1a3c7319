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

// ClearanceHandler exposes the clearance request lifecycle endpoints.
type ClearanceHandler struct {
	service *service.ClearanceService
	metrics *service.MetricsService
}

// NewClearanceHandler constructs a clearance handler.
func NewClearanceHandler(svc *service.ClearanceService, metrics *service.MetricsService) *ClearanceHandler {
	return &ClearanceHandler{service: svc, metrics: metrics}
}

// Create godoc
// @Summary Open a clearance request
// @Description Opens a clearance request and fans out one review case per approving unit
// @Tags Clearance
// @Accept json
// @Produce json
// @Param payload body dto.CreateClearanceRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clearance/requests [post]
func (h *ClearanceHandler) Create(c *gin.Context) {
	var req dto.CreateClearanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.service.CreateRequest(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordRequestOpened()
	response.Created(c, detail)
}

// Get godoc
// @Summary Get a clearance request with its cases
// @Tags Clearance
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /clearance/requests/{id} [get]
func (h *ClearanceHandler) Get(c *gin.Context) {
	detail, err := h.service.GetRequest(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List clearance requests
// @Tags Clearance
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Request type"
// @Param period query string false "Academic period"
// @Param student_id query string false "Student ID (admin only)"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /clearance/requests [get]
func (h *ClearanceHandler) List(c *gin.Context) {
	var query dto.ClearanceQuery
	query.StudentID = c.Query("student_id")
	query.Type = models.RequestType(strings.ToUpper(c.Query("type")))
	query.Period = c.Query("period")
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			query.Status = append(query.Status, models.RequestStatus(strings.ToUpper(raw)))
		}
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	requests, err := h.service.ListRequests(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Withdraw godoc
// @Summary Withdraw a clearance request
// @Description Permanently closes a request that is not yet terminal
// @Tags Clearance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.WithdrawRequest true "Withdrawal remarks"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clearance/requests/{id}/withdraw [post]
func (h *ClearanceHandler) Withdraw(c *gin.Context) {
	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.service.Withdraw(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// History godoc
// @Summary Request status history
// @Tags Clearance
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /clearance/requests/{id}/history [get]
func (h *ClearanceHandler) History(c *gin.Context) {
	entries, err := h.service.RequestHistory(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Recompute godoc
// @Summary Recompute the aggregate request status
// @Description Re-derives the request status from its cases, for admin repair
// @Tags Clearance
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /clearance/requests/{id}/recompute [post]
func (h *ClearanceHandler) Recompute(c *gin.Context) {
	status, err := h.service.Recompute(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": status}, nil)
}
