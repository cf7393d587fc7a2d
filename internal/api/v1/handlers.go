package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/ManuelReschke/LinkFox/app/controllers"
	"github.com/ManuelReschke/LinkFox/internal/pkg/middleware"
)

// Pong is the response body of the ping endpoint.
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer implements the public v1 API
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// RegisterHandlers attaches all v1 routes to the given router group.
// Mutating routes require a logged-in session; the billing webhook is NOT
// registered here because Stripe posts to it unauthenticated (see HttpRouter).
func RegisterHandlers(router fiber.Router, si *APIServer) {
	router.Get("/ping", si.GetPing)

	// Link pages
	pages := router.Group("/pages", middleware.RequireAPISessionAuth)
	pages.Get("/", controllers.HandleListLinkPages)
	pages.Post("/", controllers.HandleCreateLinkPage)
	pages.Put("/:id", controllers.HandleUpdateLinkPage)
	pages.Delete("/:id", controllers.HandleDeleteLinkPage)

	// Short links
	redirects := router.Group("/redirects", middleware.RequireAPISessionAuth)
	redirects.Get("/", controllers.HandleListRedirects)
	redirects.Post("/", controllers.HandleCreateRedirect)
	redirects.Put("/:id", controllers.HandleUpdateRedirect)
	redirects.Delete("/:id", controllers.HandleDeleteRedirect)

	// Billing
	billing := router.Group("/billing", middleware.RequireAPISessionAuth)
	billing.Get("/status", controllers.HandleBillingStatus)
	billing.Post("/plan", controllers.HandleBillingPlan)
	billing.Post("/cancel", controllers.HandleBillingCancel)
}
