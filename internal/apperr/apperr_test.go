package apperr

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

var errDuplicate = New(Conflict, "duplicate_pending", "request already exists")

func TestIsMatchesKindAndCode(t *testing.T) {
	err := fmt.Errorf("send: %w", New(Conflict, "duplicate_pending", "request already exists"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict kind match")
	}
	if !errors.Is(err, errDuplicate) {
		t.Fatalf("expected code match")
	}
	if errors.Is(err, New(Conflict, "already_connected", "")) {
		t.Fatalf("different code must not match")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("different kind must not match")
	}
}

func TestWrapClassifiesDependency(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(base, "load user")
	if KindOf(err) != Dependency {
		t.Fatalf("expected dependency kind")
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause")
	}
	if Wrap(nil, "noop") != nil {
		t.Fatalf("expected nil")
	}
	nf := NotFoundf("post %s not found", "p1")
	if Wrap(nf, "ignored") != nf {
		t.Fatalf("classified errors pass through")
	}
}

func TestFiberHandlerMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{NotFoundf("missing"), http.StatusNotFound},
		{New(InvalidState, "not_pending", "request under process"), http.StatusConflict},
		{New(InvalidOperation, "self", "no"), http.StatusBadRequest},
		{errDuplicate, http.StatusConflict},
		{Wrap(errors.New("boom"), "db"), http.StatusServiceUnavailable},
		{Unauthorizedf("bad token"), http.StatusUnauthorized},
		{fiber.NewError(http.StatusTeapot, "teapot"), http.StatusTeapot},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		app := fiber.New(fiber.Config{ErrorHandler: FiberHandler})
		failing := tc.err
		app.Get("/", func(c *fiber.Ctx) error { return failing })
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%v: expected %d got %d", tc.err, tc.status, resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), `"success":false`) {
			t.Fatalf("unexpected body: %s", body)
		}
	}
}
