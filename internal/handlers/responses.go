// responses.go
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
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/localnerve/formsdb/internal/middleware"
	"github.com/localnerve/formsdb/internal/models"
	"github.com/localnerve/formsdb/internal/services"
	"github.com/localnerve/formsdb/internal/types"
	"github.com/localnerve/formsdb/internal/utils"
)

// ResponseHandler serves public form rendering and submission, and the
// owner's view of collected responses.
type ResponseHandler struct {
	Responses *services.ResponseService
}

type submitBody struct {
	ResponseData map[string]any `json:"response_data"`
}

type visibilityBody struct {
	Answers map[string]any `json:"answers"`
}

// GetPublicForm handles GET /api/forms/:id/public
// @Summary Get an active form with its active fields
// @Tags Public
// @Produce json
// @Param id path string true "Form ID"
// @Success 200 {object} services.PublicForm
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{id}/public [get]
func (h *ResponseHandler) GetPublicForm(c *fiber.Ctx) error {
	public, err := h.Responses.GetPublicForm(c.UserContext(), c.Params("id"))
	if err != nil {
		return publicError(c, err, "public.form")
	}
	return utils.SuccessResponse(c, public, fiber.StatusOK)
}

// Visibility handles POST /api/forms/:id/public/visibility
// @Summary Evaluate conditional logic against partial answers
// @Tags Public
// @Accept json
// @Produce json
// @Param id path string true "Form ID"
// @Param body body object true "Answers keyed by field id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Router /forms/{id}/public/visibility [post]
func (h *ResponseHandler) Visibility(c *fiber.Ctx) error {
	var body visibilityBody
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "public.validation.input")
	}

	result, err := h.Responses.Visibility(c.UserContext(), c.Params("id"), body.Answers)
	if err != nil {
		return publicError(c, err, "public.visibility")
	}
	return utils.SuccessResponse(c, fiber.Map{"visibility": result}, fiber.StatusOK)
}

// Submit handles POST /api/forms/:id/responses
// @Summary Submit a response
// @Description Answers are validated against the form's current fields. Nothing is stored when any answer is rejected.
// @Tags Public
// @Accept json
// @Produce json
// @Param id path string true "Form ID"
// @Param body body object true "response_data: answers keyed by field id"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 429 {object} utils.ErrorResponseStruct
// @Router /forms/{id}/responses [post]
func (h *ResponseHandler) Submit(c *fiber.Ctx) error {
	var body submitBody
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "public.validation.input")
	}
	if body.ResponseData == nil {
		return utils.ValidationErrorResponse(c, "Validation failed", []types.FieldError{
			{FieldID: "response_data", Reason: "is required"},
		})
	}

	receipt, err := h.Responses.Submit(c.UserContext(), services.SubmitInput{
		FormID:  c.Params("id"),
		Answers: body.ResponseData,
		UserID:  middleware.CurrentUserID(c),
		Metadata: models.ResponseMetadata{
			UserAgent: c.Get(fiber.HeaderUserAgent),
			IP:        c.IP(),
		},
	})
	if err != nil {
		return publicError(c, err, "public.submit")
	}

	return utils.SuccessResponse(c, fiber.Map{"response": receipt}, fiber.StatusCreated)
}

// ListResponses handles GET /api/forms/:id/responses
// @Summary List a form's responses
// @Tags Responses
// @Produce json
// @Param id path string true "Form ID"
// @Success 200 {array} models.FormResponse
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /forms/{id}/responses [get]
func (h *ResponseHandler) ListResponses(c *fiber.Ctx) error {
	list, err := h.Responses.ListResponses(c.UserContext(), ownerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "responses.list")
	}
	return utils.SuccessResponse(c, list, fiber.StatusOK)
}

// GetResponse handles GET /api/forms/:id/responses/:responseId
// @Summary Get one response with its values
// @Tags Responses
// @Produce json
// @Param id path string true "Form ID"
// @Param responseId path string true "Response ID"
// @Success 200 {object} models.FormResponse
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /forms/{id}/responses/{responseId} [get]
func (h *ResponseHandler) GetResponse(c *fiber.Ctx) error {
	response, err := h.Responses.GetResponse(c.UserContext(), ownerID(c), c.Params("id"), c.Params("responseId"))
	if err != nil {
		return respondError(c, err, "responses.get")
	}
	return utils.SuccessResponse(c, response, fiber.StatusOK)
}

// publicError reports a missing form the same way as an inactive one.
func publicError(c *fiber.Ctx, err error, errorType string) error {
	var notFound *types.NotFoundError
	if errors.As(err, &notFound) && notFound.Entity == "form" {
		return utils.NotFoundResponse(c, "Form not available")
	}
	return respondError(c, err, errorType)
}
