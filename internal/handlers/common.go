// common.go
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
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/localnerve/formsdb/internal/logging"
	"github.com/localnerve/formsdb/internal/middleware"
	"github.com/localnerve/formsdb/internal/types"
	"github.com/localnerve/formsdb/internal/utils"
)

// respondError maps a service error to its HTTP response. errorType names
// the failing operation for unexpected errors.
func respondError(c *fiber.Ctx, err error, errorType string) error {
	var (
		notFound    *types.NotFoundError
		inactive    *types.InactiveFormError
		authn       *types.AuthenticationRequiredError
		invalid     *types.ValidationError
		forbidden   *types.AuthorizationError
		config      *types.ConfigurationError
		version     *types.VersionError
		limit       *types.SubmissionLimitError
		customError *types.CustomError
		fiberError  *fiber.Error
	)

	switch {
	case errors.As(err, &notFound):
		return utils.NotFoundResponse(c, capitalize(notFound.Entity)+" not found")
	case errors.As(err, &inactive):
		return utils.NotFoundResponse(c, "Form not available")
	case errors.As(err, &authn):
		return utils.ErrorResponse(c, authn.Error(), fiber.StatusUnauthorized, "forms.authentication")
	case errors.As(err, &invalid):
		return utils.ValidationErrorResponse(c, "Validation failed", invalid.Fields)
	case errors.As(err, &forbidden):
		return utils.ErrorResponse(c, "Forbidden: missing permission "+forbidden.Permission,
			fiber.StatusForbidden, "forms.authorization")
	case errors.As(err, &config):
		fields := make([]types.FieldError, len(config.FieldIDs))
		for i, id := range config.FieldIDs {
			fields[i] = types.FieldError{FieldID: id, Reason: config.Reason}
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"status":    fiber.StatusUnprocessableEntity,
			"message":   config.Error(),
			"fields":    fields,
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
			"type":      "forms.configuration",
		})
	case errors.As(err, &version):
		return utils.VersionErrorResponse(c)
	case errors.As(err, &limit):
		return utils.ErrorResponse(c, limit.Error(), fiber.StatusConflict, "forms.submission_limit")
	case errors.As(err, &customError):
		return utils.ErrorResponse(c, customError.Message, customError.Code, customError.Type)
	case errors.As(err, &fiberError):
		return utils.ErrorResponse(c, fiberError.Message, fiberError.Code, errorType)
	}

	logging.LogError(errorType, err, map[string]interface{}{
		"method": c.Method(),
		"url":    c.OriginalURL(),
	})
	return utils.ErrorResponse(c, "Internal server error", fiber.StatusInternalServerError, errorType)
}

// ErrorHandler is the fiber error handler: errors returned by middleware and
// handlers get the same envelope as handled ones.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err, "unknown")
}

// NotFound answers routes that matched nothing.
func NotFound(c *fiber.Ctx) error {
	return utils.NotFoundResponse(c, "[404] Resource Not Found")
}

func badInput(c *fiber.Ctx, message, errorType string) error {
	return utils.ErrorResponse(c, message, fiber.StatusBadRequest, errorType)
}

// ownerID is the id of the authenticated caller; admin routes run behind Auth.Required.
func ownerID(c *fiber.Ctx) string {
	if identity := middleware.CurrentIdentity(c); identity != nil {
		return identity.ID
	}
	return ""
}

func uintParam(c *fiber.Ctx, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Params(name), 10, 64)
	return n, err == nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
