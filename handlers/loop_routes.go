// handlers/loop_routes.go
package handlers

import (
	"strings"

	"hackpot-service/middleware"
	"hackpot-service/models"
	"hackpot-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLoopRoutes(app *fiber.App, user, admin fiber.Router, d Deps) {
	app.Get("/loops/active", func(c *fiber.Ctx) error {
		loop, err := d.Loops.GetActiveLoop(c.UserContext())
		if err != nil {
			return fail(c, "no active loop", err)
		}
		return c.JSON(loop)
	})

	app.Post("/loops/:id/entries", middleware.UserContextMiddleware(), func(c *fiber.Ctx) error {
		var in services.EnterLoopInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		in.LoopID = c.Params("id")

		entry, err := d.Loops.EnterLoop(c.UserContext(), currentUser(c), in)
		if err != nil {
			return fail(c, "entry failed", err)
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	})

	user.Get("/wallets", func(c *fiber.Ctx) error {
		wallets, err := d.Users.ListWallets(c.UserContext(), currentUser(c))
		if err != nil {
			return fail(c, "failed to load wallets", err)
		}
		return c.JSON(wallets)
	})

	user.Get("/entries", func(c *fiber.Ctx) error {
		address := strings.TrimSpace(c.Query("wallet"))
		if address == "" {
			return badRequest(c, "wallet query parameter is required", nil)
		}
		entries, err := d.Loops.ListEntries(c.UserContext(), currentUser(c), address)
		if err != nil {
			return fail(c, "failed to load entries", err)
		}
		return c.JSON(entries)
	})

	admin.Get("/loops", func(c *fiber.Ctx) error {
		loops, err := d.Loops.ListLoops(c.UserContext(), models.LoopStatus(c.Query("status")))
		if err != nil {
			return fail(c, "failed to list loops", err)
		}
		return c.JSON(loops)
	})

	admin.Post("/loops", func(c *fiber.Ctx) error {
		var in services.CreateLoopInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		loop, err := d.Loops.CreateLoop(c.UserContext(), in)
		if err != nil {
			return fail(c, "failed to create loop", err)
		}
		return c.Status(fiber.StatusCreated).JSON(loop)
	})

	admin.Post("/loops/:id/complete", func(c *fiber.Ctx) error {
		var req struct {
			WinnerAddress string `json:"winner_address"`
		}
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.WinnerAddress) == "" {
			return badRequest(c, "winner_address is required", err)
		}
		loop, err := d.Loops.CompleteLoop(c.UserContext(), c.Params("id"), req.WinnerAddress)
		if err != nil {
			return fail(c, "failed to complete loop", err)
		}
		return c.JSON(loop)
	})

	admin.Post("/loops/:id/cancel", func(c *fiber.Ctx) error {
		loop, err := d.Loops.CancelLoop(c.UserContext(), c.Params("id"))
		if err != nil {
			return fail(c, "failed to cancel loop", err)
		}
		return c.JSON(loop)
	})

	admin.Post("/loops/:id/draw", func(c *fiber.Ctx) error {
		loop, err := d.Loops.DrawWinner(c.UserContext(), c.Params("id"))
		if err != nil {
			return fail(c, "draw failed", err)
		}
		return c.JSON(loop)
	})
}
