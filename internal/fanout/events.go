// Package fanout turns outbox rows into realtime pushes.
package fanout

import (
	"backend-prolink/internal/domain"

	"github.com/goccy/go-json"
)

// ToUser builds an outbox event addressed to a single user.
func ToUser(recipientID, name string, payload any) (domain.Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{RecipientID: recipientID, Name: name, Payload: data}, nil
}

// ToPostAudience builds an outbox event for the author of postID and every
// client watching it.
func ToPostAudience(postID, authorID, name string, payload any) (domain.Event, error) {
	e, err := ToUser(authorID, name, payload)
	if err != nil {
		return domain.Event{}, err
	}
	e.PostID = postID
	return e, nil
}

func StatusUpdate(recipientID, otherUserID string, status domain.RelationStatus) (domain.Event, error) {
	return ToUser(recipientID, domain.EventStatusUpdate, domain.StatusUpdate{
		UpdatedUserID: otherUserID,
		NewStatus:     status,
	})
}
