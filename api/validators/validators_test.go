package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/bidfinderz-backend/pkg/errors"
)

type samplePayload struct {
	AmountCents int    `json:"amountCents" validate:"required,gt=0"`
	Note        string `json:"note,omitempty" validate:"max=10"`
}

func TestDecodeJSONBody(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amountCents":1500}`))
		var payload samplePayload
		if err := DecodeJSONBody(req, &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.AmountCents != 1500 {
			t.Fatalf("unexpected payload %+v", payload)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amountCents":`))
		var payload samplePayload
		err := DecodeJSONBody(req, &payload)
		if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amountCents":1,"extra":true}`))
		var payload samplePayload
		if err := DecodeJSONBody(req, &payload); err == nil {
			t.Fatal("expected unknown field rejection")
		}
	})

	t.Run("field errors use json names", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"note":"this note is way too long"}`))
		var payload samplePayload
		err := DecodeJSONBody(req, &payload)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
		details, ok := typed.Details().(map[string]string)
		if !ok {
			t.Fatalf("expected field details, got %T", typed.Details())
		}
		if _, ok := details["amountCents"]; !ok {
			t.Fatalf("details must key on json names, got %v", details)
		}
		if _, ok := details["note"]; !ok {
			t.Fatalf("expected note error, got %v", details)
		}
	})
}

func TestPagination(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		limit, offset, err := Pagination(req)
		if err != nil {
			t.Fatalf("pagination: %v", err)
		}
		if limit != 50 || offset != 0 {
			t.Fatalf("expected defaults 50/0, got %d/%d", limit, offset)
		}
	})

	t.Run("explicit values", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?limit=10&offset=30", nil)
		limit, offset, err := Pagination(req)
		if err != nil {
			t.Fatalf("pagination: %v", err)
		}
		if limit != 10 || offset != 30 {
			t.Fatalf("expected 10/30, got %d/%d", limit, offset)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?limit=zero", nil)
		if _, _, err := Pagination(req); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("negative offset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?offset=-1", nil)
		if _, _, err := Pagination(req); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
