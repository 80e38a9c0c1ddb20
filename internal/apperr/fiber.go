package apperr

import (
	"errors"

	"backend-prolink/internal/logging"

	"github.com/gofiber/fiber/v2"
)

func Status(kind Kind) int {
	switch kind {
	case NotFound:
		return fiber.StatusNotFound
	case InvalidState, Conflict:
		return fiber.StatusConflict
	case InvalidOperation, Validation:
		return fiber.StatusBadRequest
	case Unauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusServiceUnavailable
	}
}

// FiberHandler renders *Error and *fiber.Error values as the JSON error body
// clients expect.
func FiberHandler(c *fiber.Ctx, err error) error {
	var appErr *Error
	if errors.As(err, &appErr) {
		status := Status(appErr.Kind)
		if appErr.Kind == Dependency {
			logging.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg("dependency failure")
		}
		body := fiber.Map{
			"success": false,
			"kind":    appErr.Kind,
			"code":    appErr.Code,
			"message": appErr.Message,
		}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
		return c.Status(status).JSON(body)
	}

	status := fiber.StatusInternalServerError
	message := err.Error()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
	}
	if status >= fiber.StatusInternalServerError {
		logging.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}
