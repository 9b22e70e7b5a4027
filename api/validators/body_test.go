package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/orderrecon/pkg/errors"
)

type invoiceBody struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
	Token   string `json:"token" validate:"required"`
}

func TestDecodeJSONBodyValid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"order_id":"7b0e1f5e-2f0a-4b1c-9a0e-3e1b2c4d5e6f","token":"tok"}`))
	var body invoiceBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Token != "tok" {
		t.Fatalf("unexpected token %q", body.Token)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"tok","extra":1}`))
	var body invoiceBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"order_id":"nope"}`))
	var body invoiceBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["order_id"] != "must be a valid uuid" {
		t.Fatalf("unexpected order_id message %q", details["order_id"])
	}
	if details["token"] != "is required" {
		t.Fatalf("unexpected token message %q", details["token"])
	}
}
