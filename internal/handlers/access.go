// access.go
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

	"github.com/localnerve/formsdb/internal/middleware"
	"github.com/localnerve/formsdb/internal/services"
	"github.com/localnerve/formsdb/internal/utils"
)

// AccessHandler administers roles, permissions and user role assignments.
type AccessHandler struct {
	Access *services.AccessService
}

type rolePermissionsBody struct {
	Permissions []string `json:"permissions"`
}

type assignRoleBody struct {
	Role string `json:"role"`
}

// Me handles GET /api/me
// @Summary The caller's identity and permissions
// @Tags Access
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /me [get]
func (h *AccessHandler) Me(c *fiber.Ctx) error {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		return utils.ErrorResponse(c, "Authentication required", fiber.StatusUnauthorized, "forms.authentication")
	}

	permissions, err := h.Access.Permissions(c.UserContext(), identity.ID)
	if err != nil {
		return respondError(c, err, "access.me")
	}
	return utils.SuccessResponse(c, fiber.Map{
		"identity":    identity,
		"permissions": permissions,
	}, fiber.StatusOK)
}

// ListRoles handles GET /api/roles
// @Summary List roles with their permissions
// @Tags Access
// @Produce json
// @Success 200 {array} models.Role
// @Security CookieAuth
// @Router /roles [get]
func (h *AccessHandler) ListRoles(c *fiber.Ctx) error {
	roles, err := h.Access.ListRoles(c.UserContext())
	if err != nil {
		return respondError(c, err, "access.roles.list")
	}
	return utils.SuccessResponse(c, roles, fiber.StatusOK)
}

// GetRole handles GET /api/roles/:id
// @Summary Get a role
// @Tags Access
// @Produce json
// @Param id path int true "Role ID"
// @Success 200 {object} models.Role
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /roles/{id} [get]
func (h *AccessHandler) GetRole(c *fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return badInput(c, "Invalid role id", "access.validation.input")
	}

	role, err := h.Access.GetRole(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "access.roles.get")
	}
	return utils.SuccessResponse(c, role, fiber.StatusOK)
}

// CreateRole handles POST /api/roles
// @Summary Create a role
// @Tags Access
// @Accept json
// @Produce json
// @Param body body services.RoleInput true "Role"
// @Success 201 {object} models.Role
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /roles [post]
func (h *AccessHandler) CreateRole(c *fiber.Ctx) error {
	var body services.RoleInput
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "access.validation.input")
	}
	if err := utils.ValidateStruct(body); err != nil {
		return badInput(c, err.Error(), "access.validation.input")
	}

	role, err := h.Access.CreateRole(c.UserContext(), body)
	if err != nil {
		return respondError(c, err, "access.roles.create")
	}
	return utils.SuccessResponse(c, role, fiber.StatusCreated)
}

// UpdateRole handles PUT /api/roles/:id
// @Summary Update a role
// @Tags Access
// @Accept json
// @Produce json
// @Param id path int true "Role ID"
// @Param body body services.RoleInput true "Role"
// @Success 200 {object} models.Role
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /roles/{id} [put]
func (h *AccessHandler) UpdateRole(c *fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return badInput(c, "Invalid role id", "access.validation.input")
	}

	var body services.RoleInput
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "access.validation.input")
	}
	if err := utils.ValidateStruct(body); err != nil {
		return badInput(c, err.Error(), "access.validation.input")
	}

	role, err := h.Access.UpdateRole(c.UserContext(), id, body)
	if err != nil {
		return respondError(c, err, "access.roles.update")
	}
	return utils.SuccessResponse(c, role, fiber.StatusOK)
}

// DeleteRole handles DELETE /api/roles/:id
// @Summary Delete a role
// @Tags Access
// @Param id path int true "Role ID"
// @Success 204
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /roles/{id} [delete]
func (h *AccessHandler) DeleteRole(c *fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return badInput(c, "Invalid role id", "access.validation.input")
	}
	if err := h.Access.DeleteRole(c.UserContext(), id); err != nil {
		return respondError(c, err, "access.roles.delete")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetRolePermissions handles PUT /api/roles/:id/permissions
// @Summary Replace the permissions granted by a role
// @Tags Access
// @Accept json
// @Produce json
// @Param id path int true "Role ID"
// @Param body body object true "permissions: list of permission slugs"
// @Success 200 {object} models.Role
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /roles/{id}/permissions [put]
func (h *AccessHandler) SetRolePermissions(c *fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return badInput(c, "Invalid role id", "access.validation.input")
	}

	var body rolePermissionsBody
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "access.validation.input")
	}

	role, err := h.Access.SetRolePermissions(c.UserContext(), id, body.Permissions)
	if err != nil {
		return respondError(c, err, "access.roles.permissions")
	}
	return utils.SuccessResponse(c, role, fiber.StatusOK)
}

// ListPermissions handles GET /api/permissions
// @Summary List permissions
// @Tags Access
// @Produce json
// @Success 200 {array} models.Permission
// @Security CookieAuth
// @Router /permissions [get]
func (h *AccessHandler) ListPermissions(c *fiber.Ctx) error {
	list, err := h.Access.ListPermissions(c.UserContext())
	if err != nil {
		return respondError(c, err, "access.permissions.list")
	}
	return utils.SuccessResponse(c, list, fiber.StatusOK)
}

// CreatePermission handles POST /api/permissions
// @Summary Create a permission
// @Tags Access
// @Accept json
// @Produce json
// @Param body body services.PermissionInput true "Permission"
// @Success 201 {object} models.Permission
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /permissions [post]
func (h *AccessHandler) CreatePermission(c *fiber.Ctx) error {
	var body services.PermissionInput
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "access.validation.input")
	}
	if err := utils.ValidateStruct(body); err != nil {
		return badInput(c, err.Error(), "access.validation.input")
	}

	permission, err := h.Access.CreatePermission(c.UserContext(), body)
	if err != nil {
		return respondError(c, err, "access.permissions.create")
	}
	return utils.SuccessResponse(c, permission, fiber.StatusCreated)
}

// DeletePermission handles DELETE /api/permissions/:id
// @Summary Delete a permission
// @Tags Access
// @Param id path int true "Permission ID"
// @Success 204
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /permissions/{id} [delete]
func (h *AccessHandler) DeletePermission(c *fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return badInput(c, "Invalid permission id", "access.validation.input")
	}
	if err := h.Access.DeletePermission(c.UserContext(), id); err != nil {
		return respondError(c, err, "access.permissions.delete")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListUsers handles GET /api/users
// @Summary List known users with their roles
// @Tags Access
// @Produce json
// @Success 200 {array} models.User
// @Security CookieAuth
// @Router /users [get]
func (h *AccessHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.Access.ListUsers(c.UserContext())
	if err != nil {
		return respondError(c, err, "access.users.list")
	}
	return utils.SuccessResponse(c, users, fiber.StatusOK)
}

// AssignRole handles PUT /api/users/:id/role
// @Summary Assign a role to a user
// @Description An empty role removes the user's role.
// @Tags Access
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param body body object true "role: role slug"
// @Success 200 {object} models.User
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /users/{id}/role [put]
func (h *AccessHandler) AssignRole(c *fiber.Ctx) error {
	var body assignRoleBody
	if err := c.BodyParser(&body); err != nil {
		return badInput(c, "Invalid input", "access.validation.input")
	}

	user, err := h.Access.AssignRole(c.UserContext(), c.Params("id"), body.Role)
	if err != nil {
		return respondError(c, err, "access.users.role")
	}
	return utils.SuccessResponse(c, user, fiber.StatusOK)
}
