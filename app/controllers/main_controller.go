package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/LinkFox/internal/pkg/env"
	"github.com/ManuelReschke/LinkFox/internal/pkg/statistics"
	"github.com/ManuelReschke/LinkFox/internal/pkg/usercontext"
)

func HandleHome(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	appENV := env.GetEnv("APP_ENV", "prod")
	stats := statistics.GetStatisticsData()

	return c.Render("index", fiber.Map{
		"Title":          "LinkFox",
		"IsLoggedIn":     userCtx.IsLoggedIn,
		"Username":       userCtx.Username,
		"Flash":          flash.Get(c),
		"IsDev":          appENV == "dev",
		"TotalUsers":     stats.TotalUsers,
		"TotalPages":     stats.TotalPages,
		"TotalRedirects": stats.TotalRedirects,
	})
}
