package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(Config{})

	Info().Str("user_id", "user-1").Msg("hello")
	out := buf.String()
	if !strings.Contains(out, `"user_id":"user-1"`) || !strings.Contains(out, `"message":"hello"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Output: &buf})
	defer Init(Config{})

	Info().Msg("dropped")
	Warn().Msg("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("unexpected filtering: %s", out)
	}
}

func TestCtxCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(Config{})

	ctx := ContextWithRequestID(context.Background(), "req-42")
	Ctx(ctx).Info().Msg("scoped")
	if !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Fatalf("expected request id in output: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("bogus").String() != "info" {
		t.Fatalf("expected info fallback")
	}
	if parseLevel("WARNING").String() != "warn" {
		t.Fatalf("expected warn")
	}
}

func TestRequestIDFromEmptyContext(t *testing.T) {
	if RequestIDFromContext(context.Background()) != "" {
		t.Fatalf("expected empty request id")
	}
	if GenerateRequestID() == "" {
		t.Fatalf("expected generated id")
	}
}
