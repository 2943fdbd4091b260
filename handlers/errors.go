package handlers

import (
	"errors"

	"hackpot-service/models"
	"hackpot-service/services"
	"hackpot-service/utils"

	"github.com/gofiber/fiber/v2"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidEvent),
		errors.Is(err, services.ErrInvalidAchievement),
		errors.Is(err, services.ErrInvalidLoop),
		errors.Is(err, services.ErrInvalidReferralCode),
		errors.Is(err, services.ErrSelfReferral),
		errors.Is(err, services.ErrInvalidCommission),
		errors.Is(err, models.ErrInvalidCriteria),
		errors.Is(err, utils.ErrUnsupportedIcon):
		return fiber.StatusBadRequest

	case errors.Is(err, services.ErrWalletNotLinked):
		return fiber.StatusForbidden

	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrAchievementNotFound),
		errors.Is(err, services.ErrProgressNotFound),
		errors.Is(err, services.ErrLoopNotFound),
		errors.Is(err, services.ErrReferralNotFound):
		return fiber.StatusNotFound

	case errors.Is(err, services.ErrNotUnlocked),
		errors.Is(err, services.ErrLoopClosed),
		errors.Is(err, services.ErrLoopSoldOut),
		errors.Is(err, services.ErrDuplicateEntry),
		errors.Is(err, services.ErrWinnerNotEntrant),
		errors.Is(err, services.ErrNoEntries),
		errors.Is(err, services.ErrAlreadyReferred),
		errors.Is(err, services.ErrCommissionPaid),
		errors.Is(err, services.ErrCommissionPending):
		return fiber.StatusConflict

	case errors.Is(err, utils.ErrStorageDisabled):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, msg string, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string, err error) error {
	body := fiber.Map{"error": msg}
	if err != nil {
		body["cause"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}
