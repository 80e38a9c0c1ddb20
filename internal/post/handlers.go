package post

import (
	"strings"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/auth"
	"backend-prolink/internal/media"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/create", authMiddleware, func(c *fiber.Ctx) error {
		in, err := parseCreate(c)
		if err != nil {
			return err
		}
		post, err := svc.CreatePost(c.UserContext(), auth.UserID(c), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(post)
	})

	r.Get("/getpost", authMiddleware, func(c *fiber.Ctx) error {
		page, err := svc.Feed(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("limit", DefaultPageSize))
		if err != nil {
			return err
		}
		return c.JSON(page)
	})

	r.Get("/like/:id", authMiddleware, func(c *fiber.Ctx) error {
		liked, likes, err := svc.Like(c.UserContext(), c.Params("id"), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"liked": liked, "like": likes})
	})

	r.Post("/comment/:id", authMiddleware, func(c *fiber.Ctx) error {
		var in CommentInput
		if err := c.BodyParser(&in); err != nil {
			return apperr.Invalid("invalid payload")
		}
		comments, err := svc.Comment(c.UserContext(), c.Params("id"), auth.UserID(c), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"comment": comments})
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		post, err := svc.GetPost(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(post)
	})
}

// parseCreate accepts a multipart form with an optional image part, or a
// JSON body referencing an already uploaded image.
func parseCreate(c *fiber.Ctx) (CreateInput, error) {
	var in CreateInput
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(&in); err != nil {
			return CreateInput{}, apperr.Invalid("invalid payload")
		}
		return in, nil
	}

	in.Description = c.FormValue("description")
	fh, err := c.FormFile("image")
	if err != nil {
		return in, nil
	}
	data, err := media.ReadFormFile(fh)
	if err != nil {
		return CreateInput{}, err
	}
	in.Image = &Image{FileName: fh.Filename, Data: data}
	return in, nil
}
