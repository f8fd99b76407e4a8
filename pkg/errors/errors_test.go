package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("row locked")
	err := Wrap(CodeDependency, cause, "decrement stock")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %q", err.Code())
	}
}

func TestAsUnwrapsThroughFmtErrorf(t *testing.T) {
	t.Parallel()

	inner := New(CodeOutOfStock, "tier depleted")
	wrapped := fmt.Errorf("purchase failed: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeOutOfStock {
		t.Fatalf("unexpected code %q", typed.Code())
	}
}

func TestAsReturnsNilForPlainErrors(t *testing.T) {
	t.Parallel()

	if typed := As(stdErrors.New("plain")); typed != nil {
		t.Fatalf("expected nil, got %v", typed)
	}
	if typed := As(nil); typed != nil {
		t.Fatalf("expected nil for nil input")
	}
}

func TestMetadataForKnownAndUnknownCodes(t *testing.T) {
	t.Parallel()

	if meta := MetadataFor(CodeOutOfStock); meta.HTTPStatus != http.StatusConflict {
		t.Fatalf("unexpected status %d for out of stock", meta.HTTPStatus)
	}
	if meta := MetadataFor(CodeNotFound); meta.HTTPStatus != http.StatusNotFound {
		t.Fatalf("unexpected status %d for not found", meta.HTTPStatus)
	}
	if meta := MetadataFor(Code("BOGUS")); meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown codes should fall back to internal, got %d", meta.HTTPStatus)
	}
}

func TestWithDetails(t *testing.T) {
	t.Parallel()

	err := New(CodeValidation, "quantity out of range").WithDetails(map[string]any{"max": 10})
	details, ok := err.Details().(map[string]any)
	if !ok {
		t.Fatalf("unexpected details type %T", err.Details())
	}
	if details["max"] != 10 {
		t.Fatalf("unexpected details %v", details)
	}
}
