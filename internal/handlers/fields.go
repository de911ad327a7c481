// fields.go
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

// FieldHandler serves the form editor's field definitions.
type FieldHandler struct {
	Fields *services.FieldService
}

// saveFieldsBody accepts a single field object or an array under "fields".
type saveFieldsBody struct {
	Version *types.FlexUint64                   `json:"version"`
	Fields  types.FlexList[services.FieldInput] `json:"fields"`
}

// GetFields handles GET /api/forms/:id/fields
// @Summary List a form's fields
// @Tags Fields
// @Produce json
// @Param id path string true "Form ID"
// @Success 200 {array} models.FormField
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /forms/{id}/fields [get]
func (h *FieldHandler) GetFields(c *fiber.Ctx) error {
	list, err := h.Fields.ListFields(c.UserContext(), ownerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "fields.list")
	}
	return utils.SuccessResponse(c, list, fiber.StatusOK)
}

// SaveFields handles PUT /api/forms/:id/fields
// @Summary Create or update fields
// @Description Upserts the given fields by id. The resulting conditional logic must be acyclic.
// @Tags Fields
// @Accept json
// @Produce json
// @Param id path string true "Form ID"
// @Param body body object true "Optional version and the field definitions"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /forms/{id}/fields [put]
func (h *FieldHandler) SaveFields(c *fiber.Ctx) error {
	var body saveFieldsBody
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "fields.validation.input")
	}

	defs := body.Fields.Slice()
	if len(defs) == 0 {
		return badInput(c, "No fields given", "fields.validation.input")
	}
	for _, def := range defs {
		if err := utils.ValidateStruct(def); err != nil {
			return badInput(c, err.Error(), "fields.validation.input")
		}
	}

	var version *uint64
	if body.Version != nil {
		v := body.Version.Uint64()
		version = &v
	}

	saved, newVersion, err := h.Fields.SaveFields(c.UserContext(), ownerID(c), c.Params("id"), version, defs)
	if err != nil {
		return respondError(c, err, "fields.save")
	}

	return utils.SuccessResponse(c, fiber.Map{
		"fields":  saved,
		"version": newVersion,
	}, fiber.StatusOK)
}
