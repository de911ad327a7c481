// forms.go
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
	"github.com/localnerve/formsdb/internal/types"
	"github.com/localnerve/formsdb/internal/utils"
)

type FormHandler struct {
	Forms *services.FormService
}

type formBody struct {
	services.FormInput
	Version types.FlexUint64 `json:"version"`
}

// CreateForm handles POST /api/forms
// @Summary Create a form
// @Tags Forms
// @Accept json
// @Produce json
// @Param body body services.FormInput true "Form settings"
// @Success 201 {object} models.Form
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /forms [post]
func (h *FormHandler) CreateForm(c *fiber.Ctx) error {
	var body services.FormInput
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "forms.validation.input")
	}
	if err := utils.ValidateStruct(body); err != nil {
		return badInput(c, err.Error(), "forms.validation.input")
	}

	form, err := h.Forms.CreateForm(c.UserContext(), ownerID(c), body)
	if err != nil {
		return respondError(c, err, "forms.create")
	}
	return utils.SuccessResponse(c, form, fiber.StatusCreated)
}

// ListForms handles GET /api/forms
// @Summary List the caller's forms
// @Tags Forms
// @Produce json
// @Success 200 {array} models.Form
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /forms [get]
func (h *FormHandler) ListForms(c *fiber.Ctx) error {
	forms, err := h.Forms.ListForms(c.UserContext(), ownerID(c))
	if err != nil {
		return respondError(c, err, "forms.list")
	}
	return utils.SuccessResponse(c, forms, fiber.StatusOK)
}

// GetForm handles GET /api/forms/:id
// @Summary Get a form
// @Tags Forms
// @Produce json
// @Param id path string true "Form ID"
// @Success 200 {object} models.Form
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /forms/{id} [get]
func (h *FormHandler) GetForm(c *fiber.Ctx) error {
	form, err := h.Forms.GetForm(c.UserContext(), ownerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "forms.get")
	}
	return utils.SuccessResponse(c, form, fiber.StatusOK)
}

// UpdateForm handles PUT /api/forms/:id
// @Summary Update form settings
// @Description The body carries the version it was edited from; a stale version is rejected with E_VERSION.
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path string true "Form ID"
// @Param body body services.FormInput true "Form settings with version"
// @Success 200 {object} models.Form
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /forms/{id} [put]
func (h *FormHandler) UpdateForm(c *fiber.Ctx) error {
	var body formBody
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "forms.validation.input")
	}
	if err := utils.ValidateStruct(body.FormInput); err != nil {
		return badInput(c, err.Error(), "forms.validation.input")
	}

	form, err := h.Forms.UpdateForm(c.UserContext(), ownerID(c), c.Params("id"), body.Version.Uint64(), body.FormInput)
	if err != nil {
		return respondError(c, err, "forms.update")
	}
	return utils.SuccessResponse(c, form, fiber.StatusOK)
}

// DeleteForm handles DELETE /api/forms/:id
// @Summary Delete a form with its fields and responses
// @Tags Forms
// @Param id path string true "Form ID"
// @Success 204
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /forms/{id} [delete]
func (h *FormHandler) DeleteForm(c *fiber.Ctx) error {
	if err := h.Forms.DeleteForm(c.UserContext(), ownerID(c), c.Params("id")); err != nil {
		return respondError(c, err, "forms.delete")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
