package router

import (
	"github.com/ManuelReschke/LinkFox/app/controllers"
	"github.com/ManuelReschke/LinkFox/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/", controllers.HandleAdminDashboard)
	adminGroup.Get("/users", controllers.HandleAdminUsers)
	adminGroup.Get("/users/edit/:id", controllers.HandleAdminUserEdit)
	adminGroup.Post("/users/update/:id", controllers.HandleAdminUserUpdate)
	adminGroup.Post("/users/premium/:id", controllers.HandleAdminUserGrantPremium)
	adminGroup.Post("/users/premium/:id/revoke", controllers.HandleAdminUserRevokePremium)
	adminGroup.Post("/users/delete/:id", controllers.HandleAdminUserDelete)

	// Search + cache monitor
	adminGroup.Get("/search", controllers.HandleAdminSearch)
	adminGroup.Get("/queues", controllers.HandleAdminQueuesPage)
	adminGroup.Post("/queues/delete", controllers.HandleAdminQueuesDelete)
}
