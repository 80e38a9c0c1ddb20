// Package user serves profiles, profile edits, search and suggestions.
package user

import (
	"context"
	"errors"
	"strings"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/domain"
	"backend-prolink/internal/store"
	"backend-prolink/internal/validation"
)

const (
	SearchLimit    = 20
	SuggestedLimit = 10
)

var ErrUserNameTaken = apperr.New(apperr.Conflict, "username_taken", "user name is already taken")

type UpdateProfileRequest struct {
	FirstName    *string              `json:"firstName" validate:"omitnil,min=1,max=50"`
	LastName     *string              `json:"lastName" validate:"omitnil,min=1,max=50"`
	UserName     *string              `json:"userName" validate:"omitnil,min=3,max=30,username"`
	Headline     *string              `json:"headline" validate:"omitempty,max=220"`
	Location     *string              `json:"location" validate:"omitempty,max=100"`
	Gender       *string              `json:"gender" validate:"omitempty,oneof=male female other"`
	Skills       *[]string            `json:"skills" validate:"omitempty,max=50,dive,min=1,max=50"`
	Education    *[]domain.Education  `json:"education" validate:"omitempty,max=20"`
	Experience   *[]domain.Experience `json:"experience" validate:"omitempty,max=30"`
	ProfileImage *string              `json:"profileImage" validate:"omitempty,url"`
	CoverImage   *string              `json:"coverImage" validate:"omitempty,url"`

	// Uploaded files replace the matching URL fields.
	ProfileImageFile *Image `json:"-"`
	CoverImageFile   *Image `json:"-"`
}

type Image struct {
	FileName string
	Data     []byte
}

// Uploader stores profile and cover images.
type Uploader interface {
	Upload(ctx context.Context, userID, fileName, kind string, data []byte) (domain.MediaObject, error)
}

var ErrUploadUnavailable = apperr.New(apperr.Dependency, "media_unavailable", "image upload is not available")

type Service struct {
	store    store.Users
	uploader Uploader
}

func NewService(s store.Users, uploader Uploader) *Service {
	return &Service{store: s, uploader: uploader}
}

func (s *Service) Me(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return domain.User{}, store.AppError(err, "user")
	}
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (domain.User, error) {
	for _, f := range []*string{req.FirstName, req.LastName, req.Headline, req.Location, req.ProfileImage, req.CoverImage} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	if req.UserName != nil {
		name := strings.ToLower(strings.TrimSpace(*req.UserName))
		req.UserName = &name
	}
	if err := validation.Struct(req); err != nil {
		return domain.User{}, err
	}
	if err := s.uploadImage(ctx, userID, "profile", req.ProfileImageFile, &req.ProfileImage); err != nil {
		return domain.User{}, err
	}
	if err := s.uploadImage(ctx, userID, "cover", req.CoverImageFile, &req.CoverImage); err != nil {
		return domain.User{}, err
	}

	u, err := s.store.UpdateProfile(ctx, userID, domain.ProfilePatch{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		UserName:     req.UserName,
		Headline:     req.Headline,
		Location:     req.Location,
		Gender:       req.Gender,
		Skills:       req.Skills,
		Education:    req.Education,
		Experience:   req.Experience,
		ProfileImage: req.ProfileImage,
		CoverImage:   req.CoverImage,
	})
	if errors.Is(err, store.ErrConflict) {
		return domain.User{}, ErrUserNameTaken
	}
	if err != nil {
		return domain.User{}, store.AppError(err, "user")
	}
	return u, nil
}

func (s *Service) uploadImage(ctx context.Context, userID, kind string, img *Image, url **string) error {
	if img == nil {
		return nil
	}
	if s.uploader == nil {
		return ErrUploadUnavailable
	}
	obj, err := s.uploader.Upload(ctx, userID, img.FileName, kind, img.Data)
	if err != nil {
		return apperr.Wrap(err, "image upload failed")
	}
	*url = &obj.URL
	return nil
}

// Profile looks a user up by user name, ignoring case.
func (s *Service) Profile(ctx context.Context, userName string) (domain.User, error) {
	u, err := s.store.UserByUserName(ctx, strings.TrimSpace(userName))
	if err != nil {
		return domain.User{}, store.AppError(err, "user")
	}
	return u, nil
}

// Search returns at most SearchLimit users matching query. An empty query
// matches nobody.
func (s *Service) Search(ctx context.Context, query string) ([]domain.UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.UserSummary{}, nil
	}
	list, err := s.store.SearchUsers(ctx, query, SearchLimit)
	if err != nil {
		return nil, store.AppError(err, "user")
	}
	return list, nil
}

// Suggested lists users that are neither userID nor already connected to it.
func (s *Service) Suggested(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	list, err := s.store.SuggestedUsers(ctx, userID, SuggestedLimit)
	if err != nil {
		return nil, store.AppError(err, "user")
	}
	return list, nil
}
