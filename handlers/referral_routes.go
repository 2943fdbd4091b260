// handlers/referral_routes.go
package handlers

import (
	"errors"

	"hackpot-service/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

func SetupReferralRoutes(app *fiber.App, user, admin fiber.Router, d Deps) {
	app.Get("/referrals/tiers", func(c *fiber.Ctx) error {
		tiers, err := d.Referrals.ListTiers(c.UserContext())
		if err != nil {
			return fail(c, "failed to load tiers", err)
		}
		return c.JSON(tiers)
	})

	app.Get("/referrals/validate/:code", func(c *fiber.Ctx) error {
		_, err := d.Referrals.ValidateCode(c.UserContext(), c.Params("code"))
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"valid": true})
		case errors.Is(err, services.ErrInvalidReferralCode):
			return c.JSON(fiber.Map{"valid": false})
		default:
			return fail(c, "failed to validate code", err)
		}
	})

	user.Get("/referrals/stats", func(c *fiber.Ctx) error {
		stats, err := d.Referrals.GetStats(c.UserContext(), currentUser(c))
		if err != nil {
			return fail(c, "failed to load referral stats", err)
		}
		return c.JSON(stats)
	})

	user.Get("/referrals/history", func(c *fiber.Ctx) error {
		items, err := d.Referrals.GetHistory(c.UserContext(), currentUser(c))
		if err != nil {
			return fail(c, "failed to load referral history", err)
		}
		return c.JSON(items)
	})

	user.Post("/referrals/signup", func(c *fiber.Ctx) error {
		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		history, err := d.Referrals.ProcessSignup(c.UserContext(), currentUser(c), req.Code)
		if err != nil {
			return fail(c, "referral signup failed", err)
		}
		return c.Status(fiber.StatusCreated).JSON(history)
	})

	user.Post("/referrals/:id/claim", func(c *fiber.Ctx) error {
		history, err := d.Referrals.ClaimCommission(c.UserContext(), currentUser(c), c.Params("id"))
		if err != nil {
			return fail(c, "failed to claim commission", err)
		}
		return c.JSON(history)
	})

	admin.Get("/referrals/summary", func(c *fiber.Ctx) error {
		summary, err := d.Referrals.GetSummary(c.UserContext())
		if err != nil {
			return fail(c, "failed to load referral summary", err)
		}
		return c.JSON(summary)
	})

	admin.Post("/referrals/:id/commission", func(c *fiber.Ctx) error {
		var req struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		history, err := d.Referrals.ConfirmCommission(c.UserContext(), c.Params("id"), req.Amount)
		if err != nil {
			return fail(c, "failed to confirm commission", err)
		}
		return c.JSON(history)
	})
}
