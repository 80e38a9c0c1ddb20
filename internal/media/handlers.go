package media

import (
	"io"
	"mime/multipart"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/upload", authMiddleware, func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return apperr.Invalid("file required")
		}
		data, err := ReadFormFile(fh)
		if err != nil {
			return err
		}
		obj, err := svc.Upload(c.UserContext(), auth.UserID(c), fh.Filename, c.FormValue("kind"), data)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(obj)
	})
}

// ReadFormFile reads an uploaded part, refusing anything above
// MaxUploadSize.
func ReadFormFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > MaxUploadSize {
		return nil, ErrFileTooBig
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Invalid("unreadable file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		return nil, apperr.Invalid("unreadable file")
	}
	if len(data) > MaxUploadSize {
		return nil, ErrFileTooBig
	}
	return data, nil
}
