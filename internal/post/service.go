// Package post implements posts, the like toggle, comments and the feed.
package post

import (
	"context"
	"strings"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/domain"
	"backend-prolink/internal/fanout"
	"backend-prolink/internal/logging"
	"backend-prolink/internal/notification"
	"backend-prolink/internal/store"
	"backend-prolink/internal/validation"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var ErrEmptyPost = apperr.New(apperr.Validation, "empty_post", "a post needs a description or an image")

// Uploader stores post images.
type Uploader interface {
	Upload(ctx context.Context, userID, fileName, kind string, data []byte) (domain.MediaObject, error)
}

type Notifier interface {
	Notify()
}

type Image struct {
	FileName string
	Data     []byte
}

type CreateInput struct {
	Description string `json:"description" validate:"max=5000"`
	// ImageURL references an object uploaded earlier through /media/upload.
	ImageURL string `json:"image" validate:"omitempty,url"`
	Image    *Image `json:"-"`
}

type CommentInput struct {
	Content string `json:"content" validate:"required,max=1000"`
}

type Service struct {
	store    store.Store
	uploader Uploader
	notify   Notifier
}

func NewService(s store.Store, uploader Uploader, n Notifier) *Service {
	return &Service{store: s, uploader: uploader, notify: n}
}

func (s *Service) wake() {
	if s.notify != nil {
		s.notify.Notify()
	}
}

func (s *Service) CreatePost(ctx context.Context, authorID string, in CreateInput) (domain.PostView, error) {
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return domain.PostView{}, err
	}
	if in.Description == "" && in.ImageURL == "" && in.Image == nil {
		return domain.PostView{}, ErrEmptyPost
	}

	author, err := s.store.UserByID(ctx, authorID)
	if err != nil {
		return domain.PostView{}, store.AppError(err, "user")
	}

	image := in.ImageURL
	if in.Image != nil {
		obj, err := s.uploader.Upload(ctx, authorID, in.Image.FileName, "post", in.Image.Data)
		if err != nil {
			return domain.PostView{}, err
		}
		image = obj.URL
	}

	p := domain.Post{
		ID:          uuid.NewString(),
		AuthorID:    authorID,
		Description: in.Description,
		Image:       image,
	}
	if err := s.store.CreatePost(ctx, &p); err != nil {
		return domain.PostView{}, store.AppError(err, "post")
	}
	logging.Ctx(ctx).Info().Str("post_id", p.ID).Str("author_id", authorID).Msg("post created")
	return domain.PostView{
		ID:          p.ID,
		Author:      author.Summary(),
		Description: p.Description,
		Image:       p.Image,
		Likes:       []string{},
		Comments:    []domain.CommentView{},
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

func (s *Service) GetPost(ctx context.Context, postID string) (domain.PostView, error) {
	p, err := s.store.PostByID(ctx, postID)
	if err != nil {
		return domain.PostView{}, store.AppError(err, "post")
	}
	author, err := s.store.UserByID(ctx, p.AuthorID)
	if err != nil {
		return domain.PostView{}, store.AppError(err, "user")
	}
	comments, err := s.store.Comments(ctx, postID)
	if err != nil {
		return domain.PostView{}, store.AppError(err, "comment")
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	return domain.PostView{
		ID:          p.ID,
		Author:      author.Summary(),
		Description: p.Description,
		Image:       p.Image,
		Likes:       p.Likes,
		Comments:    comments,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

// Like toggles userID's like on the post and returns whether the user now
// likes it together with the resulting like set. Removing a like also
// removes the like notification it produced.
func (s *Service) Like(ctx context.Context, postID, userID string) (bool, []string, error) {
	var liked bool
	var likes []string
	err := s.store.InTx(ctx, func(tx store.Store) error {
		p, err := tx.PostByID(ctx, postID)
		if err != nil {
			return store.AppError(err, "post")
		}

		removed, err := tx.RemoveLike(ctx, postID, userID)
		if err != nil {
			return store.AppError(err, "like")
		}
		if removed {
			if userID != p.AuthorID {
				if _, err := tx.DeleteLikeNotification(ctx, p.AuthorID, userID, postID); err != nil {
					return store.AppError(err, "notification")
				}
			}
		} else {
			added, err := tx.AddLike(ctx, postID, userID)
			if err != nil {
				return store.AppError(err, "like")
			}
			// A concurrent identical like already inserted the row and its
			// notification.
			if added && userID != p.AuthorID {
				_, err := notification.Record(ctx, tx, domain.Notification{
					ReceiverID:    p.AuthorID,
					Type:          domain.NotificationLike,
					RelatedUserID: userID,
					RelatedPostID: postID,
				})
				if err != nil {
					return err
				}
			}
		}
		liked = !removed

		likes, err = tx.Likes(ctx, postID)
		if err != nil {
			return store.AppError(err, "like")
		}
		event, err := fanout.ToPostAudience(postID, p.AuthorID, domain.EventLikeUpdated, domain.LikeUpdate{PostID: postID, Likes: likes})
		if err != nil {
			return err
		}
		return store.AppError(tx.EnqueueEvents(ctx, event), "event")
	})
	if err != nil {
		return false, nil, err
	}
	s.wake()
	logging.Ctx(ctx).Debug().Str("post_id", postID).Str("user_id", userID).Bool("liked", liked).Msg("like toggled")
	return liked, likes, nil
}

// Comment appends a comment and returns the post's full comment list.
func (s *Service) Comment(ctx context.Context, postID, userID string, in CommentInput) ([]domain.CommentView, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var comments []domain.CommentView
	err := s.store.InTx(ctx, func(tx store.Store) error {
		p, err := tx.PostByID(ctx, postID)
		if err != nil {
			return store.AppError(err, "post")
		}
		c := domain.Comment{ID: uuid.NewString(), PostID: postID, UserID: userID, Content: in.Content}
		if err := tx.AddComment(ctx, &c); err != nil {
			return store.AppError(err, "comment")
		}
		if userID != p.AuthorID {
			_, err := notification.Record(ctx, tx, domain.Notification{
				ReceiverID:    p.AuthorID,
				Type:          domain.NotificationComment,
				RelatedUserID: userID,
				RelatedPostID: postID,
			})
			if err != nil {
				return err
			}
		}

		comments, err = tx.Comments(ctx, postID)
		if err != nil {
			return store.AppError(err, "comment")
		}
		event, err := fanout.ToPostAudience(postID, p.AuthorID, domain.EventCommentAdded, domain.CommentUpdate{PostID: postID, Comments: comments})
		if err != nil {
			return err
		}
		return store.AppError(tx.EnqueueEvents(ctx, event), "event")
	})
	if err != nil {
		return nil, err
	}
	s.wake()
	return comments, nil
}

// Feed returns one page of posts, newest first. page is 1-based; pageSize
// defaults to DefaultPageSize and is capped at MaxPageSize.
func (s *Service) Feed(ctx context.Context, page, pageSize int) (domain.FeedPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	posts, total, err := s.store.Feed(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return domain.FeedPage{}, store.AppError(err, "post")
	}
	return domain.FeedPage{
		Posts: posts,
		Total: total,
		Page:  page,
		Pages: (total + pageSize - 1) / pageSize,
	}, nil
}
