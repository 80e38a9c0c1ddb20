// Package store is the storage collaborator for every domain package. Two
// implementations exist: Postgres (pgx) for deployments and Memory for local
// runs without a database and for workflow tests.
package store

import (
	"context"
	"errors"
	"time"

	"backend-prolink/internal/domain"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrConflict reports a unique constraint violation.
	ErrConflict = errors.New("store: conflict")
	// ErrStale reports a conditional update that matched no row because the
	// row is no longer in the expected state.
	ErrStale = errors.New("store: stale state")
)

type Users interface {
	CreateUser(ctx context.Context, u *domain.User) error
	UserByID(ctx context.Context, id string) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	// UserByUserName matches case-insensitively.
	UserByUserName(ctx context.Context, userName string) (domain.User, error)
	UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (domain.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]domain.UserSummary, error)
	SuggestedUsers(ctx context.Context, userID string, limit int) ([]domain.UserSummary, error)

	// AddConnection and RemoveConnection touch one direction of the relation
	// and are idempotent set operations.
	AddConnection(ctx context.Context, userID, otherID string) error
	RemoveConnection(ctx context.Context, userID, otherID string) error
	IsConnected(ctx context.Context, userID, otherID string) (bool, error)
	Connections(ctx context.Context, userID string) ([]domain.UserSummary, error)
}

type ConnectionRequests interface {
	// CreateConnectionRequest returns ErrConflict when the unordered pair
	// already has a pending request.
	CreateConnectionRequest(ctx context.Context, r *domain.ConnectionRequest) error
	ConnectionRequestByID(ctx context.Context, id string) (domain.ConnectionRequest, error)
	// PendingRequestBetween looks in both directions.
	PendingRequestBetween(ctx context.Context, a, b string) (domain.ConnectionRequest, error)
	// TransitionConnectionRequest moves a request from one status to another,
	// returning ErrStale if it is not in status from.
	TransitionConnectionRequest(ctx context.Context, id string, from, to domain.ConnectionStatus) (domain.ConnectionRequest, error)
	IncomingRequests(ctx context.Context, receiverID string) ([]domain.IncomingRequest, error)
}

type Notifications interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	Notifications(ctx context.Context, receiverID string) ([]domain.NotificationView, error)
	DeleteNotification(ctx context.Context, id, receiverID string) (bool, error)
	ClearNotifications(ctx context.Context, receiverID string) (int64, error)
	DeleteLikeNotification(ctx context.Context, receiverID, relatedUserID, postID string) (bool, error)
}

type Posts interface {
	CreatePost(ctx context.Context, p *domain.Post) error
	PostByID(ctx context.Context, id string) (domain.Post, error)
	// AddLike reports whether the like was new; RemoveLike whether one existed.
	AddLike(ctx context.Context, postID, userID string) (bool, error)
	RemoveLike(ctx context.Context, postID, userID string) (bool, error)
	Likes(ctx context.Context, postID string) ([]string, error)
	AddComment(ctx context.Context, c *domain.Comment) error
	Comments(ctx context.Context, postID string) ([]domain.CommentView, error)
	Feed(ctx context.Context, offset, limit int) ([]domain.PostView, int, error)
}

type Media interface {
	SaveMediaObject(ctx context.Context, o *domain.MediaObject) error
}

type Tokens interface {
	SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	// LookupRefreshToken ignores revoked tokens.
	LookupRefreshToken(ctx context.Context, token string) (string, time.Time, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

type Outbox interface {
	EnqueueEvents(ctx context.Context, events ...domain.Event) error
	// PendingEvents returns undelivered events oldest first. Inside InTx the
	// Postgres implementation locks the rows it returns.
	PendingEvents(ctx context.Context, limit int) ([]domain.Event, error)
	MarkEventsDelivered(ctx context.Context, ids []int64) error
	PurgeDeliveredEvents(ctx context.Context, before time.Time) (int64, error)
}

type Store interface {
	Users
	ConnectionRequests
	Notifications
	Posts
	Media
	Tokens
	Outbox

	// InTx runs fn against a transactional view of the store. Everything fn
	// writes commits together or not at all. Nested calls join the outer
	// transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
