package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/localnerve/formsdb/internal/handlers"
	"github.com/localnerve/formsdb/internal/middleware"
	"github.com/localnerve/formsdb/internal/services"
)

// Deps are the services the routes are served by.
type Deps struct {
	Auth       *middleware.Auth
	Access     *services.AccessService
	Forms      *services.FormService
	Fields     *services.FieldService
	Responses  *services.ResponseService
	Public     *services.ResponseService
	Dashboards *services.DashboardService
	Health     *handlers.HealthHandler

	SubmitLimit   int
	SubmitWindow  time.Duration
	SubmitStorage fiber.Storage
}

// Register mounts the API under /api, the health endpoint and the 404 fallback.
// It must be called after any global middleware.
func Register(app *fiber.App, deps Deps) {
	if deps.Health != nil {
		app.Get("/health", deps.Health.Health)
	}

	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	public := deps.Public
	if public == nil {
		public = deps.Responses
	}
	publicHandler := &handlers.ResponseHandler{Responses: public}

	// Public form rendering and submission, identity optional
	optional := deps.Auth.Optional()
	api.Get("/forms/:id/public", optional, publicHandler.GetPublicForm)
	api.Post("/forms/:id/public/visibility", optional, publicHandler.Visibility)
	api.Post("/forms/:id/responses",
		middleware.SubmitLimiter(deps.SubmitLimit, deps.SubmitWindow, deps.SubmitStorage),
		optional,
		publicHandler.Submit)

	accessHandler := &handlers.AccessHandler{Access: deps.Access}
	api.Get("/me", deps.Auth.Required(), accessHandler.Me)

	// Everything else is the admin application: admin.access plus the route's own permission
	required := deps.Auth.Required()
	adminAccess := deps.Auth.Permit(services.PermAdminAccess)
	guard := func(slug string, handler fiber.Handler) []fiber.Handler {
		return []fiber.Handler{required, adminAccess, deps.Auth.Permit(slug), handler}
	}

	formHandler := &handlers.FormHandler{Forms: deps.Forms}
	api.Get("/forms", guard(services.PermFormsRead, formHandler.ListForms)...)
	api.Post("/forms", guard(services.PermFormsWrite, formHandler.CreateForm)...)
	api.Get("/forms/:id", guard(services.PermFormsRead, formHandler.GetForm)...)
	api.Put("/forms/:id", guard(services.PermFormsWrite, formHandler.UpdateForm)...)
	api.Delete("/forms/:id", guard(services.PermFormsDelete, formHandler.DeleteForm)...)

	fieldHandler := &handlers.FieldHandler{Fields: deps.Fields}
	api.Get("/forms/:id/fields", guard(services.PermFormsRead, fieldHandler.GetFields)...)
	api.Put("/forms/:id/fields", guard(services.PermFormsWrite, fieldHandler.SaveFields)...)

	responseHandler := &handlers.ResponseHandler{Responses: deps.Responses}
	api.Get("/forms/:id/responses", guard(services.PermResponsesRead, responseHandler.ListResponses)...)
	api.Get("/forms/:id/responses/:responseId", guard(services.PermResponsesRead, responseHandler.GetResponse)...)

	dashboardHandler := &handlers.DashboardHandler{Dashboards: deps.Dashboards}
	api.Get("/dashboards", guard(services.PermDashboardsRead, dashboardHandler.ListDashboards)...)
	api.Post("/dashboards", guard(services.PermDashboardsWrite, dashboardHandler.CreateDashboard)...)
	api.Get("/dashboards/:id", guard(services.PermDashboardsRead, dashboardHandler.GetDashboard)...)
	api.Put("/dashboards/:id", guard(services.PermDashboardsWrite, dashboardHandler.UpdateDashboard)...)
	api.Delete("/dashboards/:id", guard(services.PermDashboardsWrite, dashboardHandler.DeleteDashboard)...)
	api.Get("/dashboards/:id/data", guard(services.PermDashboardsRead, dashboardHandler.DashboardData)...)

	api.Get("/roles", guard(services.PermRolesManage, accessHandler.ListRoles)...)
	api.Post("/roles", guard(services.PermRolesManage, accessHandler.CreateRole)...)
	api.Get("/roles/:id", guard(services.PermRolesManage, accessHandler.GetRole)...)
	api.Put("/roles/:id", guard(services.PermRolesManage, accessHandler.UpdateRole)...)
	api.Delete("/roles/:id", guard(services.PermRolesManage, accessHandler.DeleteRole)...)
	api.Put("/roles/:id/permissions", guard(services.PermRolesManage, accessHandler.SetRolePermissions)...)

	api.Get("/permissions", guard(services.PermRolesManage, accessHandler.ListPermissions)...)
	api.Post("/permissions", guard(services.PermRolesManage, accessHandler.CreatePermission)...)
	api.Delete("/permissions/:id", guard(services.PermRolesManage, accessHandler.DeletePermission)...)

	api.Get("/users", guard(services.PermUsersManage, accessHandler.ListUsers)...)
	api.Put("/users/:id/role", guard(services.PermUsersManage, accessHandler.AssignRole)...)

	app.Use(handlers.NotFound)
}
