package controllers

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/LinkFox/app/models"
	"github.com/ManuelReschke/LinkFox/app/repository"
	"github.com/ManuelReschke/LinkFox/internal/pkg/database"
	"github.com/ManuelReschke/LinkFox/internal/pkg/session"
	"github.com/ManuelReschke/LinkFox/internal/pkg/usercontext"
)

// AdminController handles admin-related HTTP requests using repository pattern
type AdminController struct {
	repos *repository.Repositories
}

// NewAdminController creates a new admin controller with repository dependencies
func NewAdminController(repos *repository.Repositories) *AdminController {
	return &AdminController{
		repos: repos,
	}
}

// HandleDashboard renders the admin dashboard
func (ac *AdminController) HandleDashboard(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	totalUsers, err := ac.repos.User.Count()
	if err != nil {
		return ac.handleError(c, "Failed to get user count", err)
	}
	totalPages, err := ac.repos.LinkPage.Count()
	if err != nil {
		return ac.handleError(c, "Failed to get page count", err)
	}
	totalRedirects, err := ac.repos.Redirect.Count()
	if err != nil {
		return ac.handleError(c, "Failed to get redirect count", err)
	}

	recentUsers, err := ac.repos.User.List(0, 5)
	if err != nil {
		return ac.handleError(c, "Failed to get recent users", err)
	}

	topRedirects, err := ac.repos.Redirect.TopByHits(5)
	if err != nil {
		log.Printf("Failed to load top redirects: %v", err)
	}

	userStats := ac.getLastSevenDaysUserStats()

	return c.Render("admin/dashboard", fiber.Map{
		"Title":          "Admin Dashboard",
		"Flash":          flash.Get(c),
		"IsAdmin":        userCtx.IsAdmin,
		"TotalUsers":     totalUsers,
		"TotalPages":     totalPages,
		"TotalRedirects": totalRedirects,
		"RecentUsers":    recentUsers,
		"TopRedirects":   topRedirects,
		"UserStats":      userStats,
	})
}

// HandleUsers renders the user management page
func (ac *AdminController) HandleUsers(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	page, _ := strconv.Atoi(c.Query("page", "1"))
	perPage := 20
	offset := (page - 1) * perPage

	totalUsers, err := ac.repos.User.Count()
	if err != nil {
		return ac.handleError(c, "Failed to get user count", err)
	}

	usersWithStats, err := ac.repos.User.GetWithStats(offset, perPage)
	if err != nil {
		return ac.handleError(c, "Failed to get users with statistics", err)
	}

	totalPages := int(totalUsers) / perPage
	if int(totalUsers)%perPage > 0 {
		totalPages++
	}
	pages := make([]int, totalPages)
	for i := range pages {
		pages[i] = i + 1
	}

	return c.Render("admin/users", fiber.Map{
		"Title":       "User Management",
		"Flash":       flash.Get(c),
		"IsAdmin":     userCtx.IsAdmin,
		"Users":       usersWithStats,
		"CurrentPage": page,
		"Pages":       pages,
	})
}

// HandleUserEdit renders the user edit page
func (ac *AdminController) HandleUserEdit(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Redirect("/admin/users")
	}

	user, err := ac.repos.User.GetByID(uint(id))
	if err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "User not found",
		}
		return flash.WithError(c, fm).Redirect("/admin/users")
	}

	ent, err := models.GetOrCreateEntitlement(database.GetDB(), user.ID)
	if err != nil {
		return ac.handleError(c, "Failed to load entitlement", err)
	}

	return c.Render("admin/user_edit", fiber.Map{
		"Title":       "Edit User",
		"Flash":       flash.Get(c),
		"IsAdmin":     userCtx.IsAdmin,
		"User":        user,
		"Entitlement": ent,
		"CSRF":        c.Locals("csrf"),
	})
}

// HandleUserUpdate handles user update with repository pattern
func (ac *AdminController) HandleUserUpdate(c *fiber.Ctx) error {
	userID := c.Params("id")
	id, err := strconv.ParseUint(userID, 10, 32)
	if err != nil {
		return c.Redirect("/admin/users")
	}

	user, err := ac.repos.User.GetByID(uint(id))
	if err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "User not found",
		}
		return flash.WithError(c, fm).Redirect("/admin/users")
	}

	user.Name = c.FormValue("name")
	user.Email = c.FormValue("email")
	user.Role = c.FormValue("role")
	user.Status = c.FormValue("status")

	if err := user.Validate(); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "Validation failed: " + err.Error(),
		}
		return flash.WithError(c, fm).Redirect("/admin/users/edit/" + userID)
	}

	if err := ac.repos.User.Update(user); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "Failed to update user: " + err.Error(),
		}
		return flash.WithError(c, fm).Redirect("/admin/users/edit/" + userID)
	}

	fm := fiber.Map{
		"type":    "success",
		"message": "User updated successfully",
	}

	return flash.WithSuccess(c, fm).Redirect("/admin/users")
}

// HandleUserGrantPremium grants premium manually. A manual grant is owned
// by staff: provider webhooks will not touch it until it is revoked here.
func (ac *AdminController) HandleUserGrantPremium(c *fiber.Ctx) error {
	userID := c.Params("id")
	id, err := strconv.ParseUint(userID, 10, 32)
	if err != nil {
		return c.Redirect("/admin/users")
	}

	db := database.GetDB()
	ent, err := models.GetOrCreateEntitlement(db, uint(id))
	if err != nil {
		fm := fiber.Map{"type": "error", "message": "Failed to load entitlement"}
		return flash.WithError(c, fm).Redirect("/admin/users/edit/" + userID)
	}

	ent.IsPremium = true
	ent.PremiumSource = models.PremiumSourceManual
	ent.PremiumUntil = nil
	if until := strings.TrimSpace(c.FormValue("premium_until")); until != "" {
		t, err := time.Parse("2006-01-02", until)
		if err != nil {
			fm := fiber.Map{"type": "error", "message": "Invalid expiry date, use YYYY-MM-DD"}
			return flash.WithError(c, fm).Redirect("/admin/users/edit/" + userID)
		}
		ent.PremiumUntil = &t
	}

	if err := db.Save(ent).Error; err != nil {
		fm := fiber.Map{"type": "error", "message": "Failed to save entitlement"}
		return flash.WithError(c, fm).Redirect("/admin/users/edit/" + userID)
	}

	fm := fiber.Map{"type": "success", "message": "Premium granted manually"}
	return flash.WithSuccess(c, fm).Redirect("/admin/users/edit/" + userID)
}

// HandleUserRevokePremium removes a manual grant. Provider-sourced premium
// is left to the billing webhooks.
func (ac *AdminController) HandleUserRevokePremium(c *fiber.Ctx) error {
	userID := c.Params("id")
	id, err := strconv.ParseUint(userID, 10, 32)
	if err != nil {
		return c.Redirect("/admin/users")
	}

	db := database.GetDB()
	ent, err := models.GetOrCreateEntitlement(db, uint(id))
	if err != nil {
		fm := fiber.Map{"type": "error", "message": "Failed to load entitlement"}
		return flash.WithError(c, fm).Redirect("/admin/users/edit/" + userID)
	}

	if !ent.HasManualGrant() {
		fm := fiber.Map{"type": "error", "message": "This user has no manual grant"}
		return flash.WithError(c, fm).Redirect("/admin/users/edit/" + userID)
	}

	ent.ClearProviderPremium()
	if err := db.Save(ent).Error; err != nil {
		fm := fiber.Map{"type": "error", "message": "Failed to save entitlement"}
		return flash.WithError(c, fm).Redirect("/admin/users/edit/" + userID)
	}

	fm := fiber.Map{"type": "success", "message": "Manual premium grant revoked"}
	return flash.WithSuccess(c, fm).Redirect("/admin/users/edit/" + userID)
}

// HandleUserDelete handles user deletion with repository pattern
func (ac *AdminController) HandleUserDelete(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return c.SendStatus(fiber.StatusMethodNotAllowed)
	}

	userID := c.Params("id")
	id, err := strconv.ParseUint(userID, 10, 32)
	if err != nil {
		return c.Redirect("/admin/users")
	}

	// Prevent self-deletion
	sess, _ := session.GetSessionStore().Get(c)
	currentUserID := sess.Get(usercontext.KeyUserID).(uint)

	if currentUserID == uint(id) {
		fm := fiber.Map{
			"type":    "error",
			"message": "You cannot delete your own account",
		}
		return flash.WithError(c, fm).Redirect("/admin/users")
	}

	if err := ac.repos.User.Delete(uint(id)); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "Failed to delete user: " + err.Error(),
		}
		return flash.WithError(c, fm).Redirect("/admin/users")
	}

	fm := fiber.Map{
		"type":    "success",
		"message": "User deleted successfully",
	}

	return flash.WithSuccess(c, fm).Redirect("/admin/users")
}

// HandleSearch handles admin user search
func (ac *AdminController) HandleSearch(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	query := c.Query("q", "")
	if query == "" {
		fm := fiber.Map{
			"type":    "error",
			"message": "Please enter a search term",
		}
		return flash.WithError(c, fm).Redirect("/admin/users")
	}

	usersWithStats, err := ac.repos.User.SearchWithStats(query)
	if err != nil {
		return ac.handleError(c, "Search failed", err)
	}

	fm := fiber.Map{
		"type":    "info",
		"message": "Search results for '" + query + "': " + strconv.Itoa(len(usersWithStats)) + " users found",
	}
	flash.WithInfo(c, fm)

	return c.Render("admin/users", fiber.Map{
		"Title":       "User Management",
		"Flash":       flash.Get(c),
		"IsAdmin":     userCtx.IsAdmin,
		"Users":       usersWithStats,
		"CurrentPage": 1,
		"Pages":       []int{1},
		"SearchQuery": query,
	})
}

func (ac *AdminController) getLastSevenDaysUserStats() []models.DailyStats {
	end := time.Now()
	start := end.AddDate(0, 0, -6)
	stats, err := ac.repos.User.GetDailyStats(start, end)
	if err != nil {
		log.Printf("Failed to load daily user stats: %v", err)
		return nil
	}
	return stats
}

func (ac *AdminController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Printf("%s: %v", message, err)
	fm := fiber.Map{
		"type":    "error",
		"message": message,
	}
	return flash.WithError(c, fm).Redirect("/admin")
}
