package connection

import (
	"backend-prolink/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/send/:id", authMiddleware, func(c *fiber.Ctx) error {
		req, err := svc.SendRequest(c.UserContext(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "connection request sent", "request": req})
	})

	r.Put("/accept/:connectionId", authMiddleware, func(c *fiber.Ctx) error {
		req, err := svc.AcceptRequest(c.UserContext(), c.Params("connectionId"), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "connection request accepted", "request": req})
	})

	r.Put("/reject/:connectionId", authMiddleware, func(c *fiber.Ctx) error {
		req, err := svc.RejectRequest(c.UserContext(), c.Params("connectionId"), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "connection request rejected", "request": req})
	})

	r.Get("/getstatus/:userId", authMiddleware, func(c *fiber.Ctx) error {
		rel, err := svc.GetStatus(c.UserContext(), auth.UserID(c), c.Params("userId"))
		if err != nil {
			return err
		}
		return c.JSON(rel)
	})

	r.Delete("/remove/:userId", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.RemoveConnection(c.UserContext(), auth.UserID(c), c.Params("userId")); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "connection removed"})
	})

	r.Get("/requests", authMiddleware, func(c *fiber.Ctx) error {
		list, err := svc.ListIncomingRequests(c.UserContext(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(list)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		list, err := svc.ListConnections(c.UserContext(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(list)
	})
}
