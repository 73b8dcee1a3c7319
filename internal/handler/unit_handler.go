package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/internal/service"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
	"github.com/noah-isme/campus-clearance-api/pkg/response"
)

// UnitHandler serves the approving unit directory and period settings.
type UnitHandler struct {
	service *service.UnitService
}

// NewUnitHandler constructs a unit handler.
func NewUnitHandler(svc *service.UnitService) *UnitHandler {
	return &UnitHandler{service: svc}
}

// List godoc
// @Summary List active approving units
// @Tags Units
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /units [get]
func (h *UnitHandler) List(c *gin.Context) {
	units, err := h.service.Units(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, units, nil)
}

// Requirements godoc
// @Summary List a unit's active requirements
// @Tags Units
// @Produce json
// @Param type path string true "Unit type"
// @Param id path string true "Unit ID"
// @Success 200 {object} response.Envelope
// @Router /units/{type}/{id}/requirements [get]
func (h *UnitHandler) Requirements(c *gin.Context) {
	unitType := models.UnitType(strings.ToUpper(c.Param("type")))
	if !models.ValidUnitType(unitType) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown unit type"))
		return
	}
	requirements, err := h.service.Requirements(c.Request.Context(), unitType, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requirements, nil)
}

// PeriodSettings godoc
// @Summary Active clearance period settings
// @Tags Units
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /settings/period [get]
func (h *UnitHandler) PeriodSettings(c *gin.Context) {
	settings, err := h.service.PeriodSettings(c.Request.Context())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no clearance period is configured"))
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// InvalidateCaches godoc
// @Summary Drop cached checklists and settings
// @Tags Units
// @Produce json
// @Success 204 {object} response.Envelope
// @Router /settings/cache [delete]
func (h *UnitHandler) InvalidateCaches(c *gin.Context) {
	if err := h.service.InvalidateCaches(c.Request.Context()); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate caches"))
		return
	}
	response.NoContent(c)
}
