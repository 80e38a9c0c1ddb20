package user

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/domain"

	"github.com/gofiber/fiber/v2"
)

func TestUserHandlers(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberHandler})
	RegisterRoutes(app.Group("/user"), NewService(seeded(t), nil), func(c *fiber.Ctx) error {
		c.Locals("user_id", "u1")
		return c.Next()
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/user/currentuser", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("currentuser: %v", err)
	}
	var me domain.User
	_ = json.NewDecoder(resp.Body).Decode(&me)
	if me.ID != "u1" {
		t.Fatalf("unexpected current user: %+v", me)
	}

	req := httptest.NewRequest(http.MethodPut, "/user/updateprofile", strings.NewReader(`{"headline":"Engineer","skills":["go"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	var updated domain.User
	_ = json.NewDecoder(resp.Body).Decode(&updated)
	if resp.StatusCode != http.StatusOK || updated.Headline != "Engineer" {
		t.Fatalf("update: %d %+v", resp.StatusCode, updated)
	}

	req = httptest.NewRequest(http.MethodPut, "/user/updateprofile", strings.NewReader(`{"userName":"grace"}`))
	req.Header.Set("Content-Type", "application/json")
	if resp, _ = app.Test(req); resp.StatusCode != http.StatusConflict {
		t.Fatalf("taken user name status: %d", resp.StatusCode)
	}

	if resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/user/profile/Alan", nil)); resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status: %d", resp.StatusCode)
	}
	if resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/user/profile/nobody", nil)); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing profile status: %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/user/search?query=grace", nil))
	var found []domain.UserSummary
	_ = json.NewDecoder(resp.Body).Decode(&found)
	if len(found) != 1 || found[0].UserName != "grace" {
		t.Fatalf("search: %+v", found)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/user/suggestedusers", nil))
	var suggested []domain.UserSummary
	_ = json.NewDecoder(resp.Body).Decode(&suggested)
	if len(suggested) != 2 {
		t.Fatalf("suggested: %+v", suggested)
	}
}

func TestUpdateProfileMultipart(t *testing.T) {
	up := &fakeUploader{}
	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberHandler})
	RegisterRoutes(app.Group("/user"), NewService(seeded(t), up), func(c *fiber.Ctx) error {
		c.Locals("user_id", "u1")
		return c.Next()
	})

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("headline", "Engineer")
	_ = w.WriteField("skills", `["go","sql"]`)
	part, _ := w.CreateFormFile("profileImage", "me.png")
	_, _ = part.Write([]byte("png"))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPut, "/user/updateprofile", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	var updated domain.User
	_ = json.NewDecoder(resp.Body).Decode(&updated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status: %d", resp.StatusCode)
	}
	if updated.Headline != "Engineer" || len(updated.Skills) != 2 || updated.ProfileImage != "http://localhost/media/profile.png" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if updated.FirstName != "Ada" {
		t.Fatalf("absent form fields must be left alone, got %q", updated.FirstName)
	}

	body.Reset()
	w = multipart.NewWriter(&body)
	_ = w.WriteField("skills", "not json")
	_ = w.Close()
	req = httptest.NewRequest(http.MethodPut, "/user/updateprofile", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if resp, _ = app.Test(req); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad skills status: %d", resp.StatusCode)
	}
}
