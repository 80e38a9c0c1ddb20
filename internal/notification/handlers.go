package notification

import (
	"backend-prolink/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/get", authMiddleware, func(c *fiber.Ctx) error {
		list, err := svc.List(c.UserContext(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(list)
	})

	r.Delete("/deleteone/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), c.Params("id"), auth.UserID(c)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "notification deleted"})
	})

	r.Delete("/", authMiddleware, func(c *fiber.Ctx) error {
		n, err := svc.Clear(c.UserContext(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "notifications cleared", "deleted": n})
	})
}
