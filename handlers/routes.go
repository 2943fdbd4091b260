// handlers/routes.go
package handlers

import (
	"hackpot-service/middleware"
	"hackpot-service/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer talks to.
type Deps struct {
	DB           *gorm.DB
	Achievements *services.AchievementService
	Progression  *services.ProgressionService
	Users        *services.UserService
	Loops        *services.LoopService
	Referrals    *services.ReferralService
	AuthClient   *services.AuthServiceClient // optional; enables the SSE stream
}

// SetupRoutes mounts public, user (/user, gateway user headers) and admin
// (/admin, admin roles) routes.
func SetupRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	user := app.Group("/user", middleware.UserContextMiddleware())
	admin := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireRoles("admin", "super_admin"))

	SetupAchievementRoutes(app, user, d)
	SetupAdminAchievementRoutes(admin, d)
	SetupLoopRoutes(app, user, admin, d)
	SetupReferralRoutes(app, user, admin, d)
}

func currentUser(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
