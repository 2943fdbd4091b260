// handlers/achievement_routes.go
package handlers

import (
	"log"
	"strings"

	"hackpot-service/middleware"
	"hackpot-service/models"
	"hackpot-service/services"
	"hackpot-service/utils"

	"github.com/gofiber/fiber/v2"
)

type progressView struct {
	models.UserAchievementProgress
	State models.ProgressState `json:"state"`
}

func SetupAchievementRoutes(app *fiber.App, user fiber.Router, d Deps) {
	app.Get("/achievements", func(c *fiber.Ctx) error {
		list, err := d.Achievements.ListActive(c.UserContext())
		if err != nil {
			return fail(c, "failed to load achievements", err)
		}
		return c.JSON(list)
	})

	// EventSource cannot send gateway user headers; authenticated by query token.
	if d.AuthClient != nil {
		app.Get("/stream/achievements", middleware.SSEAuthMiddleware(d.AuthClient), d.Achievements.StreamUnlocksSSE)
	}

	user.Get("/profile", func(c *fiber.Ctx) error {
		userID := currentUser(c)
		email, _ := c.Locals("user_email").(string)
		if _, err := d.Users.EnsureUser(c.UserContext(), userID, email); err != nil {
			return fail(c, "failed to load profile", err)
		}
		profile, err := d.Users.GetProfile(c.UserContext(), userID)
		if err != nil {
			return fail(c, "failed to load profile", err)
		}
		return c.JSON(profile)
	})

	user.Get("/level", func(c *fiber.Ctx) error {
		summary, err := d.Progression.GetLevelSummary(c.UserContext(), currentUser(c))
		if err != nil {
			return fail(c, "failed to load level", err)
		}
		return c.JSON(summary)
	})

	user.Get("/achievements", func(c *fiber.Ctx) error {
		rows, err := d.Achievements.GetUserProgress(c.UserContext(), currentUser(c))
		if err != nil {
			return fail(c, "failed to load achievement progress", err)
		}
		out := make([]progressView, 0, len(rows))
		for _, r := range rows {
			out = append(out, progressView{UserAchievementProgress: r, State: r.State()})
		}
		return c.JSON(out)
	})

	user.Post("/achievements/:id/claim", func(c *fiber.Ctx) error {
		row, err := d.Achievements.Claim(c.UserContext(), currentUser(c), c.Params("id"))
		if err != nil {
			return fail(c, "claim failed", err)
		}
		return c.JSON(progressView{UserAchievementProgress: *row, State: row.State()})
	})

	user.Get("/achievements/recent", func(c *fiber.Ctx) error {
		return c.JSON(d.Achievements.Notifier.Recent(currentUser(c)))
	})

	user.Delete("/achievements/recent", func(c *fiber.Ctx) error {
		d.Achievements.Notifier.Clear(currentUser(c))
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func SetupAdminAchievementRoutes(admin fiber.Router, d Deps) {
	admin.Post("/achievements", func(c *fiber.Ctx) error {
		var in services.AchievementInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		a, err := d.Achievements.CreateAchievement(c.UserContext(), in)
		if err != nil {
			return fail(c, "failed to create achievement", err)
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	})

	admin.Put("/achievements/:id", func(c *fiber.Ctx) error {
		var in services.AchievementInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		a, err := d.Achievements.UpdateAchievement(c.UserContext(), c.Params("id"), in)
		if err != nil {
			return fail(c, "failed to update achievement", err)
		}
		return c.JSON(a)
	})

	admin.Delete("/achievements/:id", func(c *fiber.Ctx) error {
		if err := d.Achievements.DeactivateAchievement(c.UserContext(), c.Params("id")); err != nil {
			return fail(c, "failed to deactivate achievement", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	admin.Post("/achievements/:id/icon", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("icon")
		if err != nil {
			return badRequest(c, "icon file is required", err)
		}
		url, err := utils.UploadAchievementIcon(c.UserContext(), fh)
		if err != nil {
			return fail(c, "icon upload failed", err)
		}
		if err := d.Achievements.SetIcon(c.UserContext(), c.Params("id"), url); err != nil {
			return fail(c, "failed to save icon", err)
		}
		return c.JSON(fiber.Map{"icon": url})
	})

	admin.Post("/achievements/:id/award", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
			return badRequest(c, "user_id is required", err)
		}
		unlocked, err := d.Achievements.AwardAchievement(c.UserContext(), req.UserID, c.Params("id"))
		if err != nil {
			return fail(c, "award failed", err)
		}
		log.Printf("🎖️ [ADMIN] %s awarded %s to %s (new=%t)", currentUser(c), c.Params("id"), req.UserID, unlocked)
		return c.JSON(fiber.Map{"user_id": req.UserID, "achievement_id": c.Params("id"), "unlocked": unlocked})
	})

	admin.Get("/achievements/stats", func(c *fiber.Ctx) error {
		stats, err := d.Achievements.GetAchievementStats(c.UserContext())
		if err != nil {
			return fail(c, "failed to load stats", err)
		}
		return c.JSON(stats)
	})

	// Custom kinds have no server-side metric; the admin supplies the value.
	admin.Post("/achievements/events", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id"`
			Type   string `json:"type"`
			Value  int64  `json:"value"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		if strings.TrimSpace(req.UserID) == "" {
			return badRequest(c, "user_id is required", nil)
		}
		unlocked, err := d.Achievements.EvaluateAndNotify(c.UserContext(), req.UserID, services.CustomEvent{Type: req.Type, Value: req.Value})
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{
				"error":    "event evaluation failed",
				"cause":    err.Error(),
				"unlocked": unlocked,
			})
		}
		return c.JSON(fiber.Map{"unlocked": unlocked})
	})
}
