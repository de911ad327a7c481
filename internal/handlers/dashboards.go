// dashboards.go
//
// Form builder data service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of formsdb.
// formsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// formsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with formsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/localnerve/formsdb/internal/services"
	"github.com/localnerve/formsdb/internal/utils"
)

type DashboardHandler struct {
	Dashboards *services.DashboardService
}

// ListDashboards handles GET /api/dashboards
// @Summary List the caller's dashboards
// @Tags Dashboards
// @Produce json
// @Success 200 {array} models.Dashboard
// @Security CookieAuth
// @Router /dashboards [get]
func (h *DashboardHandler) ListDashboards(c *fiber.Ctx) error {
	list, err := h.Dashboards.ListDashboards(c.UserContext(), ownerID(c))
	if err != nil {
		return respondError(c, err, "dashboards.list")
	}
	return utils.SuccessResponse(c, list, fiber.StatusOK)
}

// GetDashboard handles GET /api/dashboards/:id
// @Summary Get a dashboard
// @Tags Dashboards
// @Produce json
// @Param id path string true "Dashboard ID"
// @Success 200 {object} models.Dashboard
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /dashboards/{id} [get]
func (h *DashboardHandler) GetDashboard(c *fiber.Ctx) error {
	dashboard, err := h.Dashboards.GetDashboard(c.UserContext(), ownerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "dashboards.get")
	}
	return utils.SuccessResponse(c, dashboard, fiber.StatusOK)
}

// CreateDashboard handles POST /api/dashboards
// @Summary Create a dashboard
// @Tags Dashboards
// @Accept json
// @Produce json
// @Param body body services.DashboardInput true "Dashboard"
// @Success 201 {object} models.Dashboard
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /dashboards [post]
func (h *DashboardHandler) CreateDashboard(c *fiber.Ctx) error {
	var body services.DashboardInput
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "dashboards.validation.input")
	}
	if err := utils.ValidateStruct(body); err != nil {
		return badInput(c, err.Error(), "dashboards.validation.input")
	}

	dashboard, err := h.Dashboards.CreateDashboard(c.UserContext(), ownerID(c), body)
	if err != nil {
		return respondError(c, err, "dashboards.create")
	}
	return utils.SuccessResponse(c, dashboard, fiber.StatusCreated)
}

// UpdateDashboard handles PUT /api/dashboards/:id
// @Summary Replace a dashboard
// @Tags Dashboards
// @Accept json
// @Produce json
// @Param id path string true "Dashboard ID"
// @Param body body services.DashboardInput true "Dashboard"
// @Success 200 {object} models.Dashboard
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /dashboards/{id} [put]
func (h *DashboardHandler) UpdateDashboard(c *fiber.Ctx) error {
	var body services.DashboardInput
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "dashboards.validation.input")
	}
	if err := utils.ValidateStruct(body); err != nil {
		return badInput(c, err.Error(), "dashboards.validation.input")
	}

	dashboard, err := h.Dashboards.UpdateDashboard(c.UserContext(), ownerID(c), c.Params("id"), body)
	if err != nil {
		return respondError(c, err, "dashboards.update")
	}
	return utils.SuccessResponse(c, dashboard, fiber.StatusOK)
}

// DeleteDashboard handles DELETE /api/dashboards/:id
// @Summary Delete a dashboard
// @Tags Dashboards
// @Param id path string true "Dashboard ID"
// @Success 204
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /dashboards/{id} [delete]
func (h *DashboardHandler) DeleteDashboard(c *fiber.Ctx) error {
	if err := h.Dashboards.DeleteDashboard(c.UserContext(), ownerID(c), c.Params("id")); err != nil {
		return respondError(c, err, "dashboards.delete")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DashboardData handles GET /api/dashboards/:id/data
// @Summary Compute every widget of a dashboard
// @Tags Dashboards
// @Produce json
// @Param id path string true "Dashboard ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /dashboards/{id}/data [get]
func (h *DashboardHandler) DashboardData(c *fiber.Ctx) error {
	data, err := h.Dashboards.DashboardData(c.UserContext(), ownerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "dashboards.data")
	}
	return utils.SuccessResponse(c, fiber.Map{"widgets": data}, fiber.StatusOK)
}
