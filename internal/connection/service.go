// Package connection implements the connection request lifecycle and the
// symmetric connection set between users.
package connection

import (
	"context"
	"errors"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/domain"
	"backend-prolink/internal/fanout"
	"backend-prolink/internal/logging"
	"backend-prolink/internal/notification"
	"backend-prolink/internal/store"

	"github.com/google/uuid"
)

var (
	ErrSelfRequest      = apperr.New(apperr.InvalidOperation, "self_request", "cannot connect with yourself")
	ErrAlreadyConnected = apperr.New(apperr.Conflict, "already_connected", "users are already connected")
	ErrDuplicatePending = apperr.New(apperr.Conflict, "duplicate_pending", "a connection request is already pending")
	ErrNotPending       = apperr.New(apperr.InvalidState, "not_pending", "connection request is not pending")
	ErrNotReceiver      = apperr.New(apperr.InvalidOperation, "not_receiver", "only the receiver can answer a connection request")
)

// Notifier is woken after a commit that queued realtime events.
type Notifier interface {
	Notify()
}

type Service struct {
	store  store.Store
	notify Notifier
}

func NewService(s store.Store, n Notifier) *Service {
	return &Service{store: s, notify: n}
}

func (s *Service) wake() {
	if s.notify != nil {
		s.notify.Notify()
	}
}

// SendRequest creates a pending request from senderID to receiverID. If the
// receiver already has a pending request towards the sender, that request is
// accepted instead and returned.
func (s *Service) SendRequest(ctx context.Context, senderID, receiverID string) (domain.ConnectionRequest, error) {
	if senderID == receiverID {
		return domain.ConnectionRequest{}, ErrSelfRequest
	}

	var req domain.ConnectionRequest
	err := s.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.UserByID(ctx, receiverID); err != nil {
			return store.AppError(err, "user")
		}
		connected, err := tx.IsConnected(ctx, senderID, receiverID)
		if err != nil {
			return store.AppError(err, "connection")
		}
		if connected {
			return ErrAlreadyConnected
		}

		pending, err := tx.PendingRequestBetween(ctx, senderID, receiverID)
		switch {
		case err == nil && pending.SenderID == senderID:
			return ErrDuplicatePending
		case err == nil:
			req, err = accept(ctx, tx, pending, senderID)
			return err
		case !errors.Is(err, store.ErrNotFound):
			return store.AppError(err, "connection request")
		}

		req = domain.ConnectionRequest{
			ID:         uuid.NewString(),
			SenderID:   senderID,
			ReceiverID: receiverID,
			Status:     domain.ConnectionPending,
		}
		if err := tx.CreateConnectionRequest(ctx, &req); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrDuplicatePending
			}
			return store.AppError(err, "connection request")
		}
		return enqueueStatus(ctx, tx,
			statusChange{recipient: receiverID, other: senderID, status: domain.RelationPendingReceived},
			statusChange{recipient: senderID, other: receiverID, status: domain.RelationPendingSent},
		)
	})
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	s.wake()
	logging.Ctx(ctx).Info().Str("request_id", req.ID).Str("sender_id", senderID).
		Str("receiver_id", receiverID).Str("status", string(req.Status)).Msg("connection request sent")
	return req, nil
}

// AcceptRequest accepts a pending request on behalf of its receiver.
func (s *Service) AcceptRequest(ctx context.Context, requestID, actingUserID string) (domain.ConnectionRequest, error) {
	var req domain.ConnectionRequest
	err := s.store.InTx(ctx, func(tx store.Store) error {
		current, err := answerable(ctx, tx, requestID, actingUserID)
		if err != nil {
			return err
		}
		req, err = accept(ctx, tx, current, actingUserID)
		return err
	})
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	s.wake()
	logging.Ctx(ctx).Info().Str("request_id", req.ID).Msg("connection request accepted")
	return req, nil
}

// RejectRequest rejects a pending request. Nobody is notified.
func (s *Service) RejectRequest(ctx context.Context, requestID, actingUserID string) (domain.ConnectionRequest, error) {
	var req domain.ConnectionRequest
	err := s.store.InTx(ctx, func(tx store.Store) error {
		if _, err := answerable(ctx, tx, requestID, actingUserID); err != nil {
			return err
		}
		var err error
		req, err = tx.TransitionConnectionRequest(ctx, requestID, domain.ConnectionPending, domain.ConnectionRejected)
		if errors.Is(err, store.ErrStale) {
			return ErrNotPending
		}
		return store.AppError(err, "connection request")
	})
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	return req, nil
}

func answerable(ctx context.Context, tx store.Store, requestID, actingUserID string) (domain.ConnectionRequest, error) {
	req, err := tx.ConnectionRequestByID(ctx, requestID)
	if err != nil {
		return domain.ConnectionRequest{}, store.AppError(err, "connection request")
	}
	if req.Status != domain.ConnectionPending {
		return domain.ConnectionRequest{}, ErrNotPending
	}
	if req.ReceiverID != actingUserID {
		return domain.ConnectionRequest{}, ErrNotReceiver
	}
	return req, nil
}

// accept moves req to accepted, links both users, notifies the sender and
// queues the status pushes. actingUserID is the receiver of req.
func accept(ctx context.Context, tx store.Store, req domain.ConnectionRequest, actingUserID string) (domain.ConnectionRequest, error) {
	accepted, err := tx.TransitionConnectionRequest(ctx, req.ID, domain.ConnectionPending, domain.ConnectionAccepted)
	if errors.Is(err, store.ErrStale) {
		return domain.ConnectionRequest{}, ErrNotPending
	}
	if err != nil {
		return domain.ConnectionRequest{}, store.AppError(err, "connection request")
	}

	if err := tx.AddConnection(ctx, req.SenderID, req.ReceiverID); err != nil {
		return domain.ConnectionRequest{}, store.AppError(err, "connection")
	}
	if err := tx.AddConnection(ctx, req.ReceiverID, req.SenderID); err != nil {
		return domain.ConnectionRequest{}, store.AppError(err, "connection")
	}

	_, err = notification.Record(ctx, tx, domain.Notification{
		ReceiverID:    req.SenderID,
		Type:          domain.NotificationConnectionAccepted,
		RelatedUserID: actingUserID,
	})
	if err != nil {
		return domain.ConnectionRequest{}, err
	}

	err = enqueueStatus(ctx, tx,
		statusChange{recipient: req.SenderID, other: req.ReceiverID, status: domain.RelationConnected},
		statusChange{recipient: req.ReceiverID, other: req.SenderID, status: domain.RelationConnected},
	)
	if err != nil {
		return domain.ConnectionRequest{}, err
	}
	return accepted, nil
}

// GetStatus describes the relation between currentUserID and targetUserID
// from the point of view of currentUserID.
func (s *Service) GetStatus(ctx context.Context, currentUserID, targetUserID string) (domain.Relation, error) {
	connected, err := s.store.IsConnected(ctx, currentUserID, targetUserID)
	if err != nil {
		return domain.Relation{}, store.AppError(err, "connection")
	}
	if connected {
		return domain.Relation{Status: domain.RelationConnected}, nil
	}

	pending, err := s.store.PendingRequestBetween(ctx, currentUserID, targetUserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Relation{Status: domain.RelationNone}, nil
	}
	if err != nil {
		return domain.Relation{}, store.AppError(err, "connection request")
	}
	if pending.SenderID == currentUserID {
		return domain.Relation{Status: domain.RelationPendingSent, RequestID: pending.ID}, nil
	}
	return domain.Relation{Status: domain.RelationPendingReceived, RequestID: pending.ID}, nil
}

// RemoveConnection drops the connection in both directions. Removing a
// connection that does not exist succeeds.
func (s *Service) RemoveConnection(ctx context.Context, userID, otherID string) error {
	if userID == otherID {
		return ErrSelfRequest
	}
	err := s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.RemoveConnection(ctx, userID, otherID); err != nil {
			return store.AppError(err, "connection")
		}
		if err := tx.RemoveConnection(ctx, otherID, userID); err != nil {
			return store.AppError(err, "connection")
		}
		return enqueueStatus(ctx, tx,
			statusChange{recipient: userID, other: otherID, status: domain.RelationNone},
			statusChange{recipient: otherID, other: userID, status: domain.RelationNone},
		)
	})
	if err != nil {
		return err
	}
	s.wake()
	logging.Ctx(ctx).Info().Str("user_id", userID).Str("other_id", otherID).Msg("connection removed")
	return nil
}

func (s *Service) ListIncomingRequests(ctx context.Context, userID string) ([]domain.IncomingRequest, error) {
	list, err := s.store.IncomingRequests(ctx, userID)
	if err != nil {
		return nil, store.AppError(err, "connection request")
	}
	return list, nil
}

func (s *Service) ListConnections(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		return nil, store.AppError(err, "user")
	}
	list, err := s.store.Connections(ctx, userID)
	if err != nil {
		return nil, store.AppError(err, "connection")
	}
	return list, nil
}

type statusChange struct {
	recipient string
	other     string
	status    domain.RelationStatus
}

func enqueueStatus(ctx context.Context, tx store.Store, changes ...statusChange) error {
	events := make([]domain.Event, 0, len(changes))
	for _, c := range changes {
		e, err := fanout.StatusUpdate(c.recipient, c.other, c.status)
		if err != nil {
			return err
		}
		events = append(events, e)
	}
	return store.AppError(tx.EnqueueEvents(ctx, events...), "event")
}
