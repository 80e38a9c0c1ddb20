// Package media stores uploaded files on local disk and records them in the
// media_objects table.
package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/domain"
	"backend-prolink/internal/logging"
	"backend-prolink/internal/store"

	"github.com/google/uuid"
)

const MaxUploadSize = 10 << 20

var (
	ErrEmptyFile   = apperr.New(apperr.Validation, "empty_file", "file is empty")
	ErrFileTooBig  = apperr.New(apperr.Validation, "file_too_large", "file exceeds 10 MiB")
	ErrUnsupported = apperr.New(apperr.Validation, "unsupported_type", "only jpg, png, gif and webp images are accepted")
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var writeFileFn = os.WriteFile

type Service struct {
	store   store.Media
	dir     string
	baseURL string
}

func NewService(s store.Media, dir, baseURL string) *Service {
	return &Service{store: s, dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *Service) Dir() string {
	return s.dir
}

// Upload writes data under the media directory and returns the recorded
// object. The file is removed again if the row cannot be saved.
func (s *Service) Upload(ctx context.Context, userID, fileName, kind string, data []byte) (domain.MediaObject, error) {
	if len(data) == 0 {
		return domain.MediaObject{}, ErrEmptyFile
	}
	if len(data) > MaxUploadSize {
		return domain.MediaObject{}, ErrFileTooBig
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExt[ext] {
		return domain.MediaObject{}, ErrUnsupported
	}
	if kind == "" {
		kind = "image"
	}

	id := uuid.NewString()
	name := id + ext
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return domain.MediaObject{}, apperr.Wrap(err, "failed to prepare media directory")
	}
	path := filepath.Join(s.dir, name)
	if err := writeFileFn(path, data, 0o644); err != nil {
		return domain.MediaObject{}, apperr.Wrap(err, "failed to store file")
	}

	obj := domain.MediaObject{ID: id, UserID: userID, URL: s.baseURL + "/" + name, Kind: kind}
	if err := s.store.SaveMediaObject(ctx, &obj); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			logging.Ctx(ctx).Warn().Err(rmErr).Str("path", path).Msg("orphaned media file")
		}
		return domain.MediaObject{}, store.AppError(err, "media object")
	}
	logging.Ctx(ctx).Debug().Str("media_id", id).Str("user_id", userID).Int("bytes", len(data)).Msg("media stored")
	return obj, nil
}
