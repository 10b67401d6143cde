package middleware

import (
	"errors"

	"ineed/internal/apperrors"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse writes err as {success:false, message, code} with the status of
// its kind.
func ErrorResponse(c *fiber.Ctx, err error) error {
	appErr := apperrors.From(err)

	body := fiber.Map{
		"success": false,
		"message": appErr.Message,
		"code":    appErr.Code,
	}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}

	return c.Status(appErr.HTTPStatus()).JSON(body)
}

// ErrorHandler is the server-wide fallback for errors returned by handlers.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"success": false,
			"message": fiberErr.Message,
		})
	}
	return ErrorResponse(c, err)
}
