package notification

import (
	"context"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/domain"
	"backend-prolink/internal/fanout"
	"backend-prolink/internal/metrics"
	"backend-prolink/internal/store"

	"github.com/google/uuid"
)

// Record writes n and queues a notification push to its receiver. Callers
// run it inside the transaction of the action that caused it.
func Record(ctx context.Context, tx store.Store, n domain.Notification) (domain.Notification, error) {
	n.ID = uuid.NewString()
	if err := tx.CreateNotification(ctx, &n); err != nil {
		return domain.Notification{}, store.AppError(err, "notification")
	}
	event, err := fanout.ToUser(n.ReceiverID, domain.EventNotification, n)
	if err != nil {
		return domain.Notification{}, err
	}
	if err := tx.EnqueueEvents(ctx, event); err != nil {
		return domain.Notification{}, store.AppError(err, "event")
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	return n, nil
}

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

func (s *Service) List(ctx context.Context, receiverID string) ([]domain.NotificationView, error) {
	list, err := s.store.Notifications(ctx, receiverID)
	if err != nil {
		return nil, store.AppError(err, "notification")
	}
	return list, nil
}

// Delete removes one notification owned by receiverID.
func (s *Service) Delete(ctx context.Context, id, receiverID string) error {
	deleted, err := s.store.DeleteNotification(ctx, id, receiverID)
	if err != nil {
		return store.AppError(err, "notification")
	}
	if !deleted {
		return apperr.NotFoundf("notification not found")
	}
	return nil
}

func (s *Service) Clear(ctx context.Context, receiverID string) (int64, error) {
	n, err := s.store.ClearNotifications(ctx, receiverID)
	if err != nil {
		return 0, store.AppError(err, "notification")
	}
	return n, nil
}
