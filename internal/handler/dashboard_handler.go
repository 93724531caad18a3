package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskmanager/internal/service"
)

// DashboardHandler serves dashboard aggregates.
type DashboardHandler struct {
	dashboardService service.DashboardService
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(dashboardService service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboardData godoc
// @Summary Global dashboard
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Dashboard
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /tasks/dashboard-data [get]
func (h *DashboardHandler) GetDashboardData(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	d, err := h.dashboardService.Global(c.Request().Context(), p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// GetUserDashboardData godoc
// @Summary Dashboard over the caller's assigned tasks
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Dashboard
// @Failure 401 {object} errors.ErrorResponse
// @Router /tasks/user-dashboard-data [get]
func (h *DashboardHandler) GetUserDashboardData(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	d, err := h.dashboardService.ForUser(c.Request().Context(), p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}
