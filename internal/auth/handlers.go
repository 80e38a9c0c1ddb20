package auth

import (
	"time"

	"backend-prolink/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, secureCookie bool) {
	r.Post("/signup", func(c *fiber.Ctx) error {
		var req SignupRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Invalid("invalid payload")
		}
		user, tokens, err := svc.Signup(c.UserContext(), req)
		if err != nil {
			return err
		}
		setSessionCookie(c, tokens.AccessToken, secureCookie)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user, "tokens": tokens})
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Invalid("invalid payload")
		}
		user, tokens, err := svc.Login(c.UserContext(), req)
		if err != nil {
			return err
		}
		setSessionCookie(c, tokens.AccessToken, secureCookie)
		return c.JSON(fiber.Map{"user": user, "tokens": tokens})
	})

	r.Get("/logout", func(c *fiber.Ctx) error {
		refresh := c.Get("X-Refresh-Token", c.Query("refresh_token"))
		if err := svc.Logout(c.UserContext(), refresh); err != nil {
			return err
		}
		c.Cookie(&fiber.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			HTTPOnly: true,
			Secure:   secureCookie,
			SameSite: sameSite(secureCookie),
		})
		return c.JSON(fiber.Map{"message": "logged out"})
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return apperr.Invalid("refresh_token required")
		}
		tokens, err := svc.Refresh(c.UserContext(), req.RefreshToken)
		if err != nil {
			return err
		}
		setSessionCookie(c, tokens.AccessToken, secureCookie)
		return c.JSON(tokens)
	})

	r.Get("/jwt/verify", func(c *fiber.Ctx) error {
		token := tokenFromRequest(c)
		if token == "" {
			return apperr.Unauthorizedf("missing token")
		}

		userID, err := svc.ValidateAccessToken(token)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"user_id": userID})
	})
}

func setSessionCookie(c *fiber.Ctx, token string, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(accessTokenTTL),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: sameSite(secure),
	})
}

func sameSite(secure bool) string {
	if secure {
		return fiber.CookieSameSiteNoneMode
	}
	return fiber.CookieSameSiteLaxMode
}
