package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func ResponseError(ctx *fiber.Ctx, status int, msg string) error {
	return ctx.Status(status).JSON(fiber.Map{"error": msg})
}

// ResponseFromErr maps a service error onto the response envelope. A
// *fiber.Error carries its own status; anything else is an internal error.
func ResponseFromErr(ctx *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return ResponseError(ctx, fe.Code, fe.Message)
	}
	return ResponseError(ctx, fiber.StatusInternalServerError, "internal server error")
}

func ResponseSuccess(ctx *fiber.Ctx, status int, data interface{}) error {
	return ctx.Status(status).JSON(fiber.Map{"data": data})
}

func ResponseMessage(ctx *fiber.Ctx, status int, msg string) error {
	return ctx.Status(status).JSON(fiber.Map{"message": msg})
}
