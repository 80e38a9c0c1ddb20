package post

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/domain"
	"backend-prolink/internal/fanout"
	"backend-prolink/internal/media"
	"backend-prolink/internal/presence"
	"backend-prolink/internal/store"

	"github.com/goccy/go-json"
)

type fakeUploader struct {
	err   error
	calls int
}

func (f *fakeUploader) Upload(ctx context.Context, userID, fileName, kind string, data []byte) (domain.MediaObject, error) {
	f.calls++
	if f.err != nil {
		return domain.MediaObject{}, f.err
	}
	return domain.MediaObject{ID: "m1", UserID: userID, URL: "http://cdn.test/media/m1.png", Kind: kind}, nil
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) Notify() {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	for _, id := range []string{"alice", "bob", "carol"} {
		u := &domain.User{ID: id, FirstName: id, LastName: "Test", UserName: id, Email: id + "@example.com", PasswordHash: "x"}
		if err := m.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	return NewService(m, &fakeUploader{}, &countingNotifier{}), m
}

func mustPost(t *testing.T, svc *Service, author, description string) domain.PostView {
	t.Helper()
	p, err := svc.CreatePost(context.Background(), author, CreateInput{Description: description})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

func likeNotifications(t *testing.T, m *store.Memory, receiver string) []domain.NotificationView {
	t.Helper()
	list, err := m.Notifications(context.Background(), receiver)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	out := []domain.NotificationView{}
	for _, n := range list {
		if n.Type == domain.NotificationLike {
			out = append(out, n)
		}
	}
	return out
}

func TestCreatePost(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	_ = m.CreateUser(ctx, &domain.User{ID: "alice", UserName: "alice", Email: "alice@example.com"})
	up := &fakeUploader{}
	svc := NewService(m, up, nil)

	p, err := svc.CreatePost(ctx, "alice", CreateInput{Description: "  hello  ", Image: &Image{FileName: "a.png", Data: []byte("x")}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Description != "hello" || p.Image != "http://cdn.test/media/m1.png" || p.Author.ID != "alice" {
		t.Fatalf("unexpected post: %+v", p)
	}
	if up.calls != 1 {
		t.Fatalf("expected one upload, got %d", up.calls)
	}

	if _, err := svc.CreatePost(ctx, "alice", CreateInput{ImageURL: "http://cdn.test/media/other.png"}); err != nil {
		t.Fatalf("image only post: %v", err)
	}

	if _, err := svc.CreatePost(ctx, "alice", CreateInput{Description: "   "}); !errors.Is(err, ErrEmptyPost) {
		t.Fatalf("expected empty post, got %v", err)
	}
	long := CreateInput{Description: strings.Repeat("a", 5001)}
	if _, err := svc.CreatePost(ctx, "alice", long); apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.CreatePost(ctx, "ghost", CreateInput{Description: "hi"}); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected unknown author, got %v", err)
	}

	up.err = media.ErrUnsupported
	if _, err := svc.CreatePost(ctx, "alice", CreateInput{Image: &Image{FileName: "a.exe", Data: []byte("x")}}); !errors.Is(err, media.ErrUnsupported) {
		t.Fatalf("expected upload error, got %v", err)
	}
}

func TestGetPost(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := mustPost(t, svc, "alice", "hello")
	_, _ = svc.Comment(ctx, p.ID, "bob", CommentInput{Content: "nice"})
	_, _, _ = svc.Like(ctx, p.ID, "carol")

	got, err := svc.GetPost(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Author.UserName != "alice" || len(got.Comments) != 1 || got.Comments[0].User.ID != "bob" {
		t.Fatalf("unexpected view: %+v", got)
	}
	if len(got.Likes) != 1 || got.Likes[0] != "carol" {
		t.Fatalf("unexpected likes: %v", got.Likes)
	}
	if _, err := svc.GetPost(ctx, "missing"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLikeToggleScenario(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestService(t)
	p := mustPost(t, svc, "bob", "hello")

	// An unrelated notification of bob's must survive the unlike.
	_, _ = svc.Comment(ctx, p.ID, "carol", CommentInput{Content: "first"})
	_, _, _ = svc.Like(ctx, p.ID, "carol")

	liked, likes, err := svc.Like(ctx, p.ID, "alice")
	if err != nil || !liked {
		t.Fatalf("like: %v %v", liked, err)
	}
	if len(likes) != 2 {
		t.Fatalf("expected two likes, got %v", likes)
	}
	notes := likeNotifications(t, m, "bob")
	if len(notes) != 2 {
		t.Fatalf("expected two like notifications, got %d", len(notes))
	}
	var fromAlice int
	for _, n := range notes {
		if n.RelatedUserID == "alice" && n.RelatedPostID == p.ID {
			fromAlice++
		}
	}
	if fromAlice != 1 {
		t.Fatalf("expected one like notification from alice, got %d", fromAlice)
	}

	liked, likes, err = svc.Like(ctx, p.ID, "alice")
	if err != nil || liked {
		t.Fatalf("unlike: %v %v", liked, err)
	}
	if len(likes) != 1 || likes[0] != "carol" {
		t.Fatalf("expected only carol left, got %v", likes)
	}
	notes = likeNotifications(t, m, "bob")
	if len(notes) != 1 || notes[0].RelatedUserID != "carol" {
		t.Fatalf("unlike must only drop alice's notification, got %+v", notes)
	}
	all, _ := m.Notifications(ctx, "bob")
	if len(all) != 2 {
		t.Fatalf("comment notification must survive, got %d", len(all))
	}
}

func TestLikeOwnPostNoNotification(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestService(t)
	p := mustPost(t, svc, "alice", "mine")

	if liked, _, err := svc.Like(ctx, p.ID, "alice"); err != nil || !liked {
		t.Fatalf("like own: %v", err)
	}
	if list, _ := m.Notifications(ctx, "alice"); len(list) != 0 {
		t.Fatalf("self like must not notify")
	}
	if _, _, err := svc.Like(ctx, "missing", "alice"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentLikesNeverDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := mustPost(t, svc, "bob", "hello")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.Like(ctx, p.ID, "alice"); err != nil {
				t.Errorf("like: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := svc.GetPost(ctx, p.ID)
	if len(got.Likes) != 0 {
		t.Fatalf("two toggles must cancel out, got %v", got.Likes)
	}

	_, likes, _ := svc.Like(ctx, p.ID, "alice")
	if len(likes) != 1 {
		t.Fatalf("expected exactly one like entry, got %v", likes)
	}
}

// lostLikeRace reports every like insert as already present, the way the
// Postgres store does when a concurrent transaction inserted the row first.
type lostLikeRace struct {
	store.Store
}

func (s lostLikeRace) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.InTx(ctx, func(tx store.Store) error {
		return fn(lostLikeRace{Store: tx})
	})
}

func (s lostLikeRace) AddLike(ctx context.Context, postID, userID string) (bool, error) {
	if _, err := s.Store.AddLike(ctx, postID, userID); err != nil {
		return false, err
	}
	return false, nil
}

func TestLikeLosingInsertRaceSkipsNotification(t *testing.T) {
	ctx := context.Background()
	base, m := newTestService(t)
	p := mustPost(t, base, "bob", "hello")

	// The winning transaction's notification.
	err := m.CreateNotification(ctx, &domain.Notification{
		ID:            "n-winner",
		ReceiverID:    "bob",
		Type:          domain.NotificationLike,
		RelatedUserID: "alice",
		RelatedPostID: p.ID,
	})
	if err != nil {
		t.Fatalf("seed notification: %v", err)
	}

	svc := NewService(lostLikeRace{Store: m}, &fakeUploader{}, &countingNotifier{})
	liked, likes, err := svc.Like(ctx, p.ID, "alice")
	if err != nil || !liked {
		t.Fatalf("like: %v %v", liked, err)
	}
	if len(likes) != 1 || likes[0] != "alice" {
		t.Fatalf("expected alice's like, got %v", likes)
	}
	if notes := likeNotifications(t, m, "bob"); len(notes) != 1 {
		t.Fatalf("expected exactly one like notification, got %d", len(notes))
	}
}

func TestCommentScenario(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestService(t)
	p := mustPost(t, svc, "alice", "hello")

	comments, err := svc.Comment(ctx, p.ID, "alice", CommentInput{Content: "self"})
	if err != nil || len(comments) != 1 {
		t.Fatalf("self comment: %v %d", err, len(comments))
	}
	if list, _ := m.Notifications(ctx, "alice"); len(list) != 0 {
		t.Fatalf("self comment must not notify")
	}

	comments, err = svc.Comment(ctx, p.ID, "bob", CommentInput{Content: "  nice post "})
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if len(comments) != 2 || comments[1].Content != "nice post" || comments[1].User.UserName != "bob" {
		t.Fatalf("unexpected comments: %+v", comments)
	}
	list, _ := m.Notifications(ctx, "alice")
	if len(list) != 1 || list[0].Type != domain.NotificationComment || list[0].RelatedUserID != "bob" {
		t.Fatalf("expected one comment notification, got %+v", list)
	}

	if _, err := svc.Comment(ctx, p.ID, "bob", CommentInput{Content: " "}); apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Comment(ctx, "missing", "bob", CommentInput{Content: "x"}); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInteractionEventsTargetAudience(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestService(t)
	p := mustPost(t, svc, "alice", "hello")
	_, _, _ = svc.Like(ctx, p.ID, "bob")
	_, _ = svc.Comment(ctx, p.ID, "bob", CommentInput{Content: "hi"})

	events, err := m.PendingEvents(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	var names []string
	for _, e := range events {
		names = append(names, e.Name)
		if e.Name == domain.EventLikeUpdated || e.Name == domain.EventCommentAdded {
			if e.PostID != p.ID || e.RecipientID != "alice" {
				t.Fatalf("audience event misaddressed: %+v", e)
			}
		}
		if e.Name == domain.EventLikeUpdated {
			var lu domain.LikeUpdate
			_ = json.Unmarshal(e.Payload, &lu)
			if len(lu.Likes) != 1 || lu.Likes[0] != "bob" {
				t.Fatalf("unexpected like payload: %+v", lu)
			}
		}
	}
	want := []string{domain.EventNotification, domain.EventLikeUpdated, domain.EventNotification, domain.EventCommentAdded}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("events: want %v, got %v", want, names)
	}
}

func TestOfflineAuthorKeepsNotification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, m := newTestService(t)
	dir := presence.NewDirectory()
	go func() { _ = dir.Serve(ctx) }()
	relay := fanout.NewRelay(m, dir, fanout.Config{Interval: time.Hour})

	p := mustPost(t, svc, "alice", "hello")
	_, _, _ = svc.Like(ctx, p.ID, "bob")
	_, _ = svc.Comment(ctx, p.ID, "bob", CommentInput{Content: "hi"})

	n, err := relay.Drain(ctx)
	if err != nil {
		t.Fatalf("drain with nobody online: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected all events acknowledged, got %d", n)
	}
	list, _ := m.Notifications(ctx, "alice")
	if len(list) != 2 {
		t.Fatalf("notifications must persist for offline author, got %d", len(list))
	}
}

func TestFeedPaging(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	for i := 0; i < 5; i++ {
		mustPost(t, svc, "alice", "post")
	}
	last := mustPost(t, svc, "bob", "newest")

	page, err := svc.Feed(ctx, 1, 4)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if page.Total != 6 || page.Pages != 2 || page.Page != 1 || len(page.Posts) != 4 {
		t.Fatalf("unexpected first page: total=%d pages=%d len=%d", page.Total, page.Pages, len(page.Posts))
	}
	if page.Posts[0].ID != last.ID || page.Posts[0].Author.UserName != "bob" {
		t.Fatalf("expected newest first, got %s", page.Posts[0].ID)
	}

	page, _ = svc.Feed(ctx, 2, 4)
	if len(page.Posts) != 2 {
		t.Fatalf("expected two posts on page 2, got %d", len(page.Posts))
	}
	page, _ = svc.Feed(ctx, 9, 4)
	if len(page.Posts) != 0 || page.Total != 6 {
		t.Fatalf("expected empty page past the end")
	}

	page, _ = svc.Feed(ctx, 0, 0)
	if page.Page != 1 || page.Pages != 1 || len(page.Posts) != 6 {
		t.Fatalf("defaults: page=%d pages=%d len=%d", page.Page, page.Pages, len(page.Posts))
	}
	page, _ = svc.Feed(ctx, 1, 1000)
	if page.Pages != 1 {
		t.Fatalf("expected page size capped, got %d pages", page.Pages)
	}
}
