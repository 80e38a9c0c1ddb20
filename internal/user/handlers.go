package user

import (
	"mime/multipart"
	"strings"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/auth"
	"backend-prolink/internal/media"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/currentuser", authMiddleware, func(c *fiber.Ctx) error {
		u, err := svc.Me(c.UserContext(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(u)
	})

	r.Put("/updateprofile", authMiddleware, func(c *fiber.Ctx) error {
		req, err := parseUpdate(c)
		if err != nil {
			return err
		}
		u, err := svc.UpdateProfile(c.UserContext(), auth.UserID(c), req)
		if err != nil {
			return err
		}
		return c.JSON(u)
	})

	r.Get("/profile/:userName", authMiddleware, func(c *fiber.Ctx) error {
		u, err := svc.Profile(c.UserContext(), c.Params("userName"))
		if err != nil {
			return err
		}
		return c.JSON(u)
	})

	r.Get("/search", authMiddleware, func(c *fiber.Ctx) error {
		list, err := svc.Search(c.UserContext(), c.Query("query"))
		if err != nil {
			return err
		}
		return c.JSON(list)
	})

	r.Get("/suggestedusers", authMiddleware, func(c *fiber.Ctx) error {
		list, err := svc.Suggested(c.UserContext(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(list)
	})
}

// parseUpdate accepts a JSON body, or a multipart form carrying the same
// fields plus optional profileImage and coverImage files. In the form,
// skills, education and experience are JSON encoded strings.
func parseUpdate(c *fiber.Ctx) (UpdateProfileRequest, error) {
	var req UpdateProfileRequest
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(&req); err != nil {
			return UpdateProfileRequest{}, apperr.Invalid("invalid payload")
		}
		return req, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return UpdateProfileRequest{}, apperr.Invalid("invalid form")
	}
	text := func(key string) *string {
		if v, ok := form.Value[key]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}
	req.FirstName = text("firstName")
	req.LastName = text("lastName")
	req.UserName = text("userName")
	req.Headline = text("headline")
	req.Location = text("location")
	req.Gender = text("gender")
	req.ProfileImage = text("profileImage")
	req.CoverImage = text("coverImage")

	for key, dst := range map[string]any{
		"skills":     &req.Skills,
		"education":  &req.Education,
		"experience": &req.Experience,
	} {
		raw := text(key)
		if raw == nil || *raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(*raw), dst); err != nil {
			return UpdateProfileRequest{}, apperr.Invalid("invalid " + key)
		}
	}

	if req.ProfileImageFile, err = formImage(form, "profileImage"); err != nil {
		return UpdateProfileRequest{}, err
	}
	if req.CoverImageFile, err = formImage(form, "coverImage"); err != nil {
		return UpdateProfileRequest{}, err
	}
	return req, nil
}

func formImage(form *multipart.Form, key string) (*Image, error) {
	files := form.File[key]
	if len(files) == 0 {
		return nil, nil
	}
	data, err := media.ReadFormFile(files[0])
	if err != nil {
		return nil, err
	}
	return &Image{FileName: files[0].Filename, Data: data}, nil
}
