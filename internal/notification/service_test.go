package notification

import (
	"context"
	"errors"
	"testing"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/domain"
	"backend-prolink/internal/store"

	"github.com/goccy/go-json"
)

func seeded(t *testing.T) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	for _, id := range []string{"alice", "bob"} {
		u := &domain.User{ID: id, FirstName: id, LastName: "Test", UserName: id, Email: id + "@example.com", PasswordHash: "x"}
		if err := m.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	return m
}

func record(t *testing.T, m *store.Memory, receiver, related string) domain.Notification {
	t.Helper()
	var n domain.Notification
	err := m.InTx(context.Background(), func(tx store.Store) error {
		var err error
		n, err = Record(context.Background(), tx, domain.Notification{
			ReceiverID:    receiver,
			Type:          domain.NotificationConnectionAccepted,
			RelatedUserID: related,
		})
		return err
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	return n
}

func TestRecordQueuesPush(t *testing.T) {
	m := seeded(t)
	n := record(t, m, "alice", "bob")
	if n.ID == "" || n.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", n)
	}

	events, err := m.PendingEvents(context.Background(), 10)
	if err != nil || len(events) != 1 {
		t.Fatalf("pending events: %v %d", err, len(events))
	}
	e := events[0]
	if e.RecipientID != "alice" || e.Name != domain.EventNotification || e.PostID != "" {
		t.Fatalf("unexpected event: %+v", e)
	}
	var pushed domain.Notification
	if err := json.Unmarshal(e.Payload, &pushed); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if pushed.ID != n.ID || pushed.RelatedUserID != "bob" {
		t.Fatalf("unexpected payload: %+v", pushed)
	}
}

func TestRecordRollsBackWithCaller(t *testing.T) {
	m := seeded(t)
	boom := errors.New("boom")
	err := m.InTx(context.Background(), func(tx store.Store) error {
		if _, err := Record(context.Background(), tx, domain.Notification{ReceiverID: "alice", Type: domain.NotificationLike, RelatedUserID: "bob"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if list, _ := m.Notifications(context.Background(), "alice"); len(list) != 0 {
		t.Fatalf("notification survived rollback")
	}
	if events, _ := m.PendingEvents(context.Background(), 10); len(events) != 0 {
		t.Fatalf("event survived rollback")
	}
}

func TestServiceListDeleteClear(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	svc := NewService(m)

	first := record(t, m, "alice", "bob")
	record(t, m, "alice", "bob")
	other := record(t, m, "bob", "alice")

	list, err := svc.List(ctx, "alice")
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %v %d", err, len(list))
	}
	if list[0].RelatedUser == nil || list[0].RelatedUser.UserName != "bob" {
		t.Fatalf("expected related user enrichment, got %+v", list[0])
	}

	if err := svc.Delete(ctx, other.ID, "alice"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("deleting someone else's notification: %v", err)
	}
	if err := svc.Delete(ctx, first.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, first.ID, "alice"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("second delete: %v", err)
	}

	n, err := svc.Clear(ctx, "alice")
	if err != nil || n != 1 {
		t.Fatalf("clear: %v %d", err, n)
	}
	if list, _ := svc.List(ctx, "bob"); len(list) != 1 {
		t.Fatalf("clear must not touch other receivers")
	}
}
