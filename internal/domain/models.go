package domain

import (
	"encoding/json"
	"time"
)

type Education struct {
	College      string `json:"college"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"fieldOfStudy"`
}

type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
}

type User struct {
	ID           string       `json:"id"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	UserName     string       `json:"userName"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	ProfileImage string       `json:"profileImage"`
	CoverImage   string       `json:"coverImage"`
	Headline     string       `json:"headline"`
	Location     string       `json:"location"`
	Gender       string       `json:"gender,omitempty"`
	Skills       []string     `json:"skills"`
	Education    []Education  `json:"education"`
	Experience   []Experience `json:"experience"`
	Connections  []string     `json:"connection"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// UserSummary is the public slice of a profile attached to other entities.
type UserSummary struct {
	ID           string   `json:"id"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	UserName     string   `json:"userName"`
	ProfileImage string   `json:"profileImage"`
	Headline     string   `json:"headline"`
	Skills       []string `json:"skills,omitempty"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		UserName:     u.UserName,
		ProfileImage: u.ProfileImage,
		Headline:     u.Headline,
	}
}

// ProfilePatch carries optional profile updates; nil fields are left alone.
type ProfilePatch struct {
	FirstName    *string
	LastName     *string
	UserName     *string
	Headline     *string
	Location     *string
	Gender       *string
	Skills       *[]string
	Education    *[]Education
	Experience   *[]Experience
	ProfileImage *string
	CoverImage   *string
}

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionRejected ConnectionStatus = "rejected"
)

type ConnectionRequest struct {
	ID         string           `json:"id"`
	SenderID   string           `json:"senderId"`
	ReceiverID string           `json:"receiverId"`
	Status     ConnectionStatus `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

type IncomingRequest struct {
	ConnectionRequest
	Sender UserSummary `json:"sender"`
}

// RelationStatus values double as the label of the connection button the
// client renders for the target user.
type RelationStatus string

const (
	RelationConnected       RelationStatus = "disconnect"
	RelationPendingSent     RelationStatus = "pending"
	RelationPendingReceived RelationStatus = "received"
	RelationNone            RelationStatus = "connect"
)

type Relation struct {
	Status    RelationStatus `json:"status"`
	RequestID string         `json:"requestId,omitempty"`
}

type NotificationType string

const (
	NotificationLike               NotificationType = "like"
	NotificationComment            NotificationType = "comment"
	NotificationConnectionAccepted NotificationType = "connectionAccepted"
)

type Notification struct {
	ID            string           `json:"id"`
	ReceiverID    string           `json:"receiverId"`
	Type          NotificationType `json:"type"`
	RelatedUserID string           `json:"relatedUserId"`
	RelatedPostID string           `json:"relatedPostId,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

type PostSummary struct {
	ID          string `json:"id"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description"`
}

type NotificationView struct {
	Notification
	RelatedUser *UserSummary `json:"relatedUser,omitempty"`
	RelatedPost *PostSummary `json:"relatedPost,omitempty"`
}

type Post struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"authorId"`
	Description string    `json:"description"`
	Image       string    `json:"image,omitempty"`
	Likes       []string  `json:"like"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type CommentView struct {
	Comment
	User UserSummary `json:"user"`
}

type PostView struct {
	ID          string        `json:"id"`
	Author      UserSummary   `json:"author"`
	Description string        `json:"description"`
	Image       string        `json:"image,omitempty"`
	Likes       []string      `json:"like"`
	Comments    []CommentView `json:"comment"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type FeedPage struct {
	Posts []PostView `json:"posts"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Pages int        `json:"pages"`
}

type MediaObject struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	URL       string    `json:"url"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event is an outbox row: a realtime push persisted with the state change
// that caused it. A non-empty PostID targets the post audience (RecipientID
// is then the post author) instead of a single user.
type Event struct {
	ID          int64           `json:"id"`
	RecipientID string          `json:"recipientId"`
	PostID      string          `json:"postId,omitempty"`
	Name        string          `json:"event"`
	Payload     json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"createdAt"`
}

const (
	EventStatusUpdate = "statusUpdate"
	EventLikeUpdated  = "likeUpdated"
	EventCommentAdded = "commentAdded"
	EventNotification = "notification"
)

type StatusUpdate struct {
	UpdatedUserID string         `json:"updatedUserId"`
	NewStatus     RelationStatus `json:"newStatus"`
}

type LikeUpdate struct {
	PostID string   `json:"postId"`
	Likes  []string `json:"likes"`
}

type CommentUpdate struct {
	PostID   string        `json:"postId"`
	Comments []CommentView `json:"comments"`
}
