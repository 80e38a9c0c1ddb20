package user

import (
	"context"
	"errors"
	"testing"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/domain"
	"backend-prolink/internal/store"

	"github.com/pashagolub/pgxmock/v3"
)

var errBoom = errors.New("boom")

func strPtr(s string) *string { return &s }

func seeded(t *testing.T) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	users := []domain.User{
		{ID: "u1", FirstName: "Ada", LastName: "Lovelace", UserName: "ada", Email: "ada@example.com", Skills: []string{"math"}},
		{ID: "u2", FirstName: "Grace", LastName: "Hopper", UserName: "grace", Email: "grace@example.com", Skills: []string{"cobol"}},
		{ID: "u3", FirstName: "Alan", LastName: "Turing", UserName: "alan", Email: "alan@example.com"},
	}
	for i := range users {
		if err := m.CreateUser(context.Background(), &users[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return m
}

func TestMeAndProfile(t *testing.T) {
	ctx := context.Background()
	svc := NewService(seeded(t), nil)

	me, err := svc.Me(ctx, "u1")
	if err != nil || me.UserName != "ada" {
		t.Fatalf("me: %v %+v", err, me)
	}
	if _, err := svc.Me(ctx, "ghost"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	p, err := svc.Profile(ctx, " GRACE ")
	if err != nil || p.ID != "u2" {
		t.Fatalf("profile: %v %+v", err, p)
	}
	if _, err := svc.Profile(ctx, "nobody"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc := NewService(seeded(t), nil)

	skills := []string{"go", "postgres"}
	u, err := svc.UpdateProfile(ctx, "u1", UpdateProfileRequest{
		Headline: strPtr("  Analyst  "),
		UserName: strPtr("Ada.L"),
		Skills:   &skills,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Headline != "Analyst" || u.UserName != "ada.l" || len(u.Skills) != 2 {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.FirstName != "Ada" {
		t.Fatalf("untouched fields must stay, got %q", u.FirstName)
	}

	if _, err := svc.UpdateProfile(ctx, "u1", UpdateProfileRequest{UserName: strPtr("GRACE")}); !errors.Is(err, ErrUserNameTaken) {
		t.Fatalf("expected user name taken, got %v", err)
	}

	invalid := map[string]UpdateProfileRequest{
		"user name":  {UserName: strPtr("no spaces")},
		"gender":     {Gender: strPtr("robot")},
		"image url":  {ProfileImage: strPtr("not a url")},
		"first name": {FirstName: strPtr("   ")},
	}
	for name, req := range invalid {
		if _, err := svc.UpdateProfile(ctx, "u1", req); apperr.KindOf(err) != apperr.Validation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if _, err := svc.UpdateProfile(ctx, "ghost", UpdateProfileRequest{Headline: strPtr("x")}); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	svc := NewService(seeded(t), nil)

	list, err := svc.Search(ctx, "  ")
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("empty query must return an empty list: %v %v", err, list)
	}
	list, _ = svc.Search(ctx, "HOP")
	if len(list) != 1 || list[0].ID != "u2" {
		t.Fatalf("name search: %+v", list)
	}
	list, _ = svc.Search(ctx, "math")
	if len(list) != 1 || list[0].ID != "u1" {
		t.Fatalf("skill search: %+v", list)
	}
	list, _ = svc.Search(ctx, "a")
	if len(list) != 3 {
		t.Fatalf("substring search: %+v", list)
	}
}

func TestSuggestedSkipsSelfAndConnections(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	_ = m.AddConnection(ctx, "u1", "u2")
	_ = m.AddConnection(ctx, "u2", "u1")
	svc := NewService(m, nil)

	list, err := svc.Suggested(ctx, "u1")
	if err != nil {
		t.Fatalf("suggested: %v", err)
	}
	if len(list) != 1 || list[0].ID != "u3" {
		t.Fatalf("unexpected suggestions: %+v", list)
	}
}

func TestSearchPostgresFallsBackToSubstring(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	cols := []string{"id", "first_name", "last_name", "user_name", "profile_image", "headline"}
	mock.ExpectQuery(`plainto_tsquery`).
		WithArgs("lov", SearchLimit).
		WillReturnRows(pgxmock.NewRows(cols))
	mock.ExpectQuery(`ILIKE`).
		WithArgs("%lov%", SearchLimit).
		WillReturnRows(pgxmock.NewRows(cols).AddRow("u1", "Ada", "Lovelace", "ada", "", "Analyst"))

	svc := NewService(store.NewPostgres(mock), nil)
	list, err := svc.Search(context.Background(), "lov")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(list) != 1 || list[0].LastName != "Lovelace" {
		t.Fatalf("unexpected result: %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSearchPostgresError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`plainto_tsquery`).WithArgs("x", SearchLimit).WillReturnError(errBoom)

	svc := NewService(store.NewPostgres(mock), nil)
	if _, err := svc.Search(context.Background(), "x"); apperr.KindOf(err) != apperr.Dependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

type fakeUploader struct {
	err   error
	kinds []string
}

func (f *fakeUploader) Upload(ctx context.Context, userID, fileName, kind string, data []byte) (domain.MediaObject, error) {
	if f.err != nil {
		return domain.MediaObject{}, f.err
	}
	f.kinds = append(f.kinds, kind)
	return domain.MediaObject{ID: kind, UserID: userID, URL: "http://localhost/media/" + kind + ".png", Kind: kind}, nil
}

func TestUpdateProfileUploadsImages(t *testing.T) {
	ctx := context.Background()
	up := &fakeUploader{}
	svc := NewService(seeded(t), up)

	u, err := svc.UpdateProfile(ctx, "u1", UpdateProfileRequest{
		ProfileImage:     strPtr("http://example.com/old.png"),
		ProfileImageFile: &Image{FileName: "me.png", Data: []byte("png")},
		CoverImageFile:   &Image{FileName: "cover.jpg", Data: []byte("jpg")},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.ProfileImage != "http://localhost/media/profile.png" || u.CoverImage != "http://localhost/media/cover.png" {
		t.Fatalf("expected uploaded urls, got %q %q", u.ProfileImage, u.CoverImage)
	}
	if len(up.kinds) != 2 {
		t.Fatalf("expected two uploads, got %v", up.kinds)
	}

	up.err = errBoom
	_, err = svc.UpdateProfile(ctx, "u1", UpdateProfileRequest{
		Headline:         strPtr("changed"),
		ProfileImageFile: &Image{FileName: "me.png", Data: []byte("png")},
	})
	if !errors.Is(err, errBoom) || apperr.KindOf(err) != apperr.Dependency {
		t.Fatalf("expected upload failure, got %v", err)
	}
	me, _ := svc.Me(ctx, "u1")
	if me.Headline == "changed" {
		t.Fatalf("profile must not change when the upload fails")
	}

	noUploads := NewService(seeded(t), nil)
	_, err = noUploads.UpdateProfile(ctx, "u1", UpdateProfileRequest{CoverImageFile: &Image{FileName: "c.png", Data: []byte("x")}})
	if !errors.Is(err, ErrUploadUnavailable) {
		t.Fatalf("expected upload unavailable, got %v", err)
	}
}
