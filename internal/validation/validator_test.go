package validation

import (
	"errors"
	"strings"
	"testing"

	"backend-prolink/internal/apperr"
)

type signup struct {
	UserName string `json:"userName" validate:"required,min=3,max=30,username"`
	Email    string `json:"email" validate:"required,email"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female other"`
}

func TestStructValid(t *testing.T) {
	if err := Struct(signup{UserName: "jane.doe", Email: "jane@example.com"}); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
}

func TestStructCollectsFields(t *testing.T) {
	err := Struct(signup{UserName: "no spaces", Email: "nope", Gender: "x"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var appErr *apperr.Error
	errors.As(err, &appErr)
	fields, _ := appErr.Details["fields"].([]map[string]string)
	if len(fields) != 3 {
		t.Fatalf("expected 3 failing fields, got %d", len(fields))
	}
	if !strings.Contains(appErr.Message, "userName can only contain") {
		t.Fatalf("expected json field names in message: %s", appErr.Message)
	}
}

func TestStructRequired(t *testing.T) {
	err := Struct(signup{})
	if err == nil || !strings.Contains(err.Error(), "userName is required") {
		t.Fatalf("expected required message, got %v", err)
	}
}
