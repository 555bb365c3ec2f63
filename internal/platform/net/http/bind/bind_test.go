package bind

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "authgate/internal/platform/errors"
	pnet "authgate/internal/platform/net"
	kit "authgate/internal/platform/testkit"
)

// shared payload for many tests
type payload struct {
	Name string `json:"name" validate:"required,min=2"`
	Age  int    `json:"age" validate:"min=1"`
}

func TestPayload_FromRawBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Alice","age":3}`))
	got, err := Payload[payload](req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Alice" || got.Age != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestPayload_PrefersParsedBody(t *testing.T) {
	// the raw body is already drained by the body stage in the real chain
	req := httptest.NewRequest("POST", "/", http.NoBody)
	ctx := pnet.WithBody(req.Context(), pnet.Body{Raw: json.RawMessage(`{"name":"Bob","age":2}`)})
	got, err := Payload[payload](req.WithContext(ctx))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Bob" {
		t.Fatalf("got %+v", got)
	}
}

func TestPayload_EmptyBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", http.NoBody)
	_, err := Payload[payload](req)
	if perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("expected JSON error code, got %v (%v)", perr.CodeOf(err), err)
	}
}

func TestPayload_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{`))
	_, err := Payload[payload](req)
	if perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("expected JSON error code, got %v (%v)", perr.CodeOf(err), err)
	}
}

func TestPayload_UnknownField(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Al","age":3,"boom":1}`))
	if _, err := Payload[payload](req); perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("expected JSON error for unknown field, got %v", err)
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Al","age":3,"extra":"ok"}`))
	if _, err := Payload[payload](req, Options{DisallowUnknown: false}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestPayload_TrailingData_Seam(t *testing.T) {
	kit.Serial(t)
	kit.Swap(t, &jsonMore, func(_ *json.Decoder) bool { return true })

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Al","age":3}`))
	_, err := Payload[payload](req)
	if perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("expected JSON error for trailing data, got %v (%v)", perr.CodeOf(err), err)
	}
}

func TestPayload_ValidationErrorCarriesField(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"A","age":3}`))
	_, err := Payload[payload](req)
	if perr.CodeOf(err) != perr.ErrorCodeValidation {
		t.Fatalf("expected validation error code, got %v (%v)", perr.CodeOf(err), err)
	}
	e, _ := perr.As(err)
	if e.Field() != "name" || e.Error() != "name must be at least 2" {
		t.Fatalf("unexpected validation detail: field=%q msg=%q", e.Field(), e.Error())
	}
}

func TestPayload_MaxBytes(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Alice","age":3}`))
	_, err := Payload[payload](req, Options{MaxBytes: 5, DisallowUnknown: true})
	if perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("expected JSON error due to size limit, got %v (%v)", perr.CodeOf(err), err)
	}
}

func TestPayload_NonStructValidation(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`5`))
	_, err := Payload[int](req)
	if perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("expected JSON-coded error, got %v (%v)", perr.CodeOf(err), err)
	}
}

func TestTagNameFunc(t *testing.T) {
	Init()
	cases := []struct {
		name string
		v    any
		want string
	}{
		{"json tag trimmed", struct {
			Val int `json:"foo,omitempty" validate:"min=1"`
		}{}, "foo"},
		{"dash uses field name", struct {
			Secret int `json:"-" validate:"min=1"`
		}{}, "Secret"},
		{"no tag uses field name", struct {
			Plain int `validate:"min=1"`
		}{}, "Plain"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			field, msg := ValidationFieldAndMessage(Get().Validator.Struct(c.v))
			if field != c.want {
				t.Fatalf("field = %q, want %q", field, c.want)
			}
			if !strings.Contains(msg, "at least") {
				t.Fatalf("unexpected message: %q", msg)
			}
		})
	}
}

func TestSlugTag(t *testing.T) {
	type s struct {
		Service string `json:"service" validate:"slug"`
	}
	if err := Validate(s{Service: "billing-v2"}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	err := Validate(s{Service: "Billing!"})
	if perr.CodeOf(err) != perr.ErrorCodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err.Error() != "service must be lowercase letters, digits or dashes" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if IsSlug("") || IsSlug("-lead") || !IsSlug("a") {
		t.Fatalf("IsSlug edge cases failed")
	}
}

func TestMaxTranslation(t *testing.T) {
	type s struct {
		Count int `json:"count" validate:"max=5"`
	}
	_, msg := ValidationFieldAndMessage(Get().Validator.Struct(s{Count: 6}))
	if msg != "count must be at most 5" {
		t.Fatalf("unexpected max message: %q", msg)
	}
}

func TestValidationFieldAndMessage_GenericError(t *testing.T) {
	field, msg := ValidationFieldAndMessage(errors.New("boom"))
	if field != "" || msg != "boom" {
		t.Fatalf("expected generic passthrough, got field=%q msg=%q", field, msg)
	}
	if f, m := ValidationFieldAndMessage(nil); f != "" || m != "" {
		t.Fatalf("nil should produce empty strings")
	}
}

func TestRegisterValidation_Overwrites(t *testing.T) {
	if err := RegisterValidation("dupe_tag", func(fl FieldLevel) bool { return false }); err != nil {
		t.Fatalf("unexpected error on first register: %v", err)
	}
	if err := RegisterValidation("dupe_tag", func(fl FieldLevel) bool { return true }); err != nil {
		t.Fatalf("unexpected error on second register: %v", err)
	}
	type S struct {
		N int `json:"n" validate:"dupe_tag"`
	}
	if err := Get().Validator.Struct(S{N: 0}); err != nil {
		t.Fatalf("expected validation to pass after overwrite, got %v", err)
	}
}
